package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/database/bookmarks"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/exporters"
)

// ExportController renders a book's annotations as a markdown document.
type ExportController struct {
	booksRepo      *books.Repository
	highlightsRepo *highlights.Repository
	bookmarksRepo  *bookmarks.Repository
	exporter       *exporters.MarkdownExporter
}

func NewExportController(booksRepo *books.Repository, highlightsRepo *highlights.Repository, bookmarksRepo *bookmarks.Repository) *ExportController {
	return &ExportController{
		booksRepo:      booksRepo,
		highlightsRepo: highlightsRepo,
		bookmarksRepo:  bookmarksRepo,
		exporter:       exporters.NewMarkdownExporter(),
	}
}

func (ec *ExportController) ExportBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := ec.booksRepo.GetByID(bookID)
	if err != nil {
		respondNotFound(c, "book")
		return
	}
	hs, err := ec.highlightsRepo.GetForBook(bookID)
	if err != nil {
		respondInternalError(c, err, "list highlights")
		return
	}
	bms, err := ec.bookmarksRepo.GetForBook(bookID)
	if err != nil {
		respondInternalError(c, err, "list bookmarks")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.Title+".md"))
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := ec.exporter.Export(c.Writer, book, hs, bms); err != nil {
		// Headers are already out; all we can do is log through gin's recovery.
		_ = c.Error(err)
	}
}
