package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/database"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/importers"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tasks"
	"github.com/pagemark/reader/internal/tiers"
)

// BookSummary is the listing shape for one library entry.
type BookSummary struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author,omitempty"`
	Filename    string  `json:"filename"`
	LastPercent float64 `json:"last_percent"`
	HasCover    bool    `json:"has_cover"`
	CreatedAt   string  `json:"created_at"`
}

// LibraryController manages the book catalog and its files.
type LibraryController struct {
	db         *database.Database
	booksRepo  *books.Repository
	library    *storage.Library
	importer   *importers.Pipeline
	tierMgr    *tiers.Manager
	taskClient *tasks.Client
	interval   int
}

func NewLibraryController(
	db *database.Database,
	booksRepo *books.Repository,
	library *storage.Library,
	importer *importers.Pipeline,
	tierMgr *tiers.Manager,
	taskClient *tasks.Client,
	interval int,
) *LibraryController {
	return &LibraryController{
		db:         db,
		booksRepo:  booksRepo,
		library:    library,
		importer:   importer,
		tierMgr:    tierMgr,
		taskClient: taskClient,
		interval:   interval,
	}
}

// ListBooks returns the catalog. The fast tier overrides stored progress
// percentages so the listing reflects positions not yet flushed durably.
func (lc *LibraryController) ListBooks(c *gin.Context) {
	all, err := lc.booksRepo.GetAll()
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	summaries := make([]BookSummary, 0, len(all))
	for _, b := range all {
		percent := b.LastPercent
		if saved, ok := lc.tierMgr.Fast().ReadProgress(b.Title); ok && saved.Token != "" {
			percent = saved.Percent
		}
		summaries = append(summaries, BookSummary{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Filename:    b.Filename,
			LastPercent: percent,
			HasCover:    b.Cover != "",
			CreatedAt:   b.CreatedAt.Format("2006-01-02"),
		})
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": summaries, "count": len(summaries)})
}

// UploadBook imports a book file from a multipart form.
func (lc *LibraryController) UploadBook(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondInternalError(c, err, "open upload")
		return
	}
	defer f.Close()

	res, err := lc.importer.Import(fileHeader.Filename, f)
	if err != nil {
		respondInternalError(c, err, "import book")
		return
	}
	if !res.Created {
		c.JSON(http.StatusOK, gin.H{"book": res.Book, "duplicate": true})
		return
	}

	if lc.taskClient != nil {
		if _, err := lc.taskClient.Add(tasks.BuildLocationsTask{BookID: res.Book.ID, Interval: lc.interval}).Save(); err != nil {
			// The first open builds the index on demand.
			respondCreated(c, gin.H{"book": res.Book})
			return
		}
	}
	respondCreated(c, gin.H{"book": res.Book})
}

func (lc *LibraryController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := lc.booksRepo.GetByID(id)
	if err != nil {
		respondNotFound(c, "book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

// GetBookContent streams the stored book file.
func (lc *LibraryController) GetBookContent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := lc.booksRepo.GetByID(id)
	if err != nil {
		respondNotFound(c, "book")
		return
	}
	content, err := lc.library.ReadAll(book.Filename)
	if err != nil {
		respondNotFound(c, "book file")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", content)
}

// GetCover serves the stored cover image.
func (lc *LibraryController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := lc.booksRepo.GetByID(id)
	if err != nil || book.Cover == "" {
		respondNotFound(c, "cover")
		return
	}
	c.File(lc.library.CoverPath(book.Cover))
}

// UploadCover stores a cover image for the book.
func (lc *LibraryController) UploadCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := lc.booksRepo.GetByID(id)
	if err != nil {
		respondNotFound(c, "book")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respondInternalError(c, err, "open cover upload")
		return
	}
	defer f.Close()

	name, err := lc.library.SaveCover(book.Filename, f)
	if err != nil {
		respondInternalError(c, err, "store cover")
		return
	}
	if err := lc.booksRepo.UpdateCover(book.ID, name); err != nil {
		respondInternalError(c, err, "record cover")
		return
	}
	respondSuccess(c, "cover updated")
}

// DeleteBook removes a book, its annotations, its stored file and any
// in-memory progress.
func (lc *LibraryController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := lc.booksRepo.GetByID(id)
	if err != nil {
		respondNotFound(c, "book")
		return
	}

	if err := lc.booksRepo.Delete(book.ID); err != nil {
		respondInternalError(c, err, "delete book")
		return
	}
	if err := lc.library.Remove(book.Filename); err != nil {
		respondInternalError(c, err, "remove book file")
		return
	}
	lc.tierMgr.Fast().Delete(book.Title)
	respondSuccess(c, "book deleted")
}

// WipeAll clears the whole catalog: database rows, stored files, and
// in-memory progress.
func (lc *LibraryController) WipeAll(c *gin.Context) {
	if err := lc.db.WipeAll(); err != nil {
		respondInternalError(c, err, "wipe database")
		return
	}
	names, err := lc.library.Filenames()
	if err == nil {
		for _, name := range names {
			_ = lc.library.Remove(name)
		}
	}
	for _, id := range lc.tierMgr.Fast().DocumentIDs() {
		lc.tierMgr.Fast().Delete(id)
	}
	respondSuccess(c, "all data wiped")
}
