package http

import (
	"github.com/pagemark/reader/internal/auth"
	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database"
	"github.com/pagemark/reader/internal/database/bookmarks"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/database/settings"
	"github.com/pagemark/reader/internal/importers"
	"github.com/pagemark/reader/internal/reader"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tasks"
	"github.com/pagemark/reader/internal/tiers"
)

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router. This replaces a long parameter list in NewRouter.
type RouterConfig struct {
	// Core dependencies
	Database       *database.Database
	BooksRepo      *books.Repository
	HighlightsRepo *highlights.Repository
	BookmarksRepo  *bookmarks.Repository
	SettingsRepo   *settings.Repository
	Library        *storage.Library
	Importer       *importers.Pipeline
	ReaderService  *reader.Service
	TierManager    *tiers.Manager

	// Authentication (all optional; nil disables the concern)
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth
	CSRFSecret     []byte

	// Task queue client (optional)
	TaskClient       *tasks.Client
	LocationInterval int

	// Application info
	Version string
}
