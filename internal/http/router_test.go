package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database"
	"github.com/pagemark/reader/internal/database/bookmarks"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/database/settings"
	"github.com/pagemark/reader/internal/importers"
	"github.com/pagemark/reader/internal/reader"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tiers"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

type routerFixture struct {
	router    *gin.Engine
	db        *database.Database
	booksRepo *books.Repository
	library   *storage.Library
}

func setupRouter(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "http_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lib, err := storage.NewLibrary(t.TempDir())
	require.NoError(t, err)

	booksRepo := books.NewRepository(db.DB)
	highlightsRepo := highlights.NewRepository(db.DB)
	bookmarksRepo := bookmarks.NewRepository(db.DB)
	settingsRepo := settings.NewRepository(db.DB)
	tierMgr := tiers.NewManager(tiers.NewFastTier(), nil, booksRepo, 20*time.Millisecond)

	readerCfg := config.Reader{
		LocationInterval:    32,
		DebounceQuiet:       20 * time.Millisecond,
		StabilizeDelay:      0,
		TickEpsilon:         0.1,
		ChapterMatchEpsilon: 0.05,
	}
	readerSvc := reader.NewService(booksRepo, highlightsRepo, lib, tierMgr, readerCfg)
	t.Cleanup(readerSvc.CloseAll)

	router := NewRouter(RouterConfig{
		Database:         db,
		BooksRepo:        booksRepo,
		HighlightsRepo:   highlightsRepo,
		BookmarksRepo:    bookmarksRepo,
		SettingsRepo:     settingsRepo,
		Library:          lib,
		Importer:         importers.NewPipeline(booksRepo, lib),
		ReaderService:    readerSvc,
		TierManager:      tierMgr,
		LocationInterval: 32,
		Version:          "test",
	})
	return &routerFixture{router: router, db: db, booksRepo: booksRepo, library: lib}
}

func (f *routerFixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/books", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
