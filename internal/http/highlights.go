package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/reader"
)

// HighlightsController manages stored highlights. Mutations re-reconcile
// the overlays of any live session showing the same book.
type HighlightsController struct {
	highlightsRepo *highlights.Repository
	booksRepo      *books.Repository
	readerSvc      *reader.Service
}

func NewHighlightsController(highlightsRepo *highlights.Repository, booksRepo *books.Repository, readerSvc *reader.Service) *HighlightsController {
	return &HighlightsController{
		highlightsRepo: highlightsRepo,
		booksRepo:      booksRepo,
		readerSvc:      readerSvc,
	}
}

func (hc *HighlightsController) GetForBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	hs, err := hc.highlightsRepo.GetForBook(bookID)
	if err != nil {
		respondInternalError(c, err, "list highlights")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"highlights": hs, "count": len(hs)})
}

type createHighlightRequest struct {
	RangeToken string `json:"range_token" binding:"required"`
	Text       string `json:"text"`
	Color      string `json:"color"`
	Notes      string `json:"notes"`
}

func (hc *HighlightsController) Create(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req createHighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "range_token is required")
		return
	}
	if !engine.ValidToken(req.RangeToken) {
		respondBadRequest(c, "malformed range token")
		return
	}

	h, err := hc.highlightsRepo.Create(&entities.Highlight{
		BookID:     bookID,
		RangeToken: req.RangeToken,
		Text:       req.Text,
		Color:      req.Color,
		Notes:      req.Notes,
	})
	if err != nil {
		respondInternalError(c, err, "create highlight")
		return
	}
	hc.resyncSessions(bookID)
	respondCreated(c, h)
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (hc *HighlightsController) UpdateNotes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if err := hc.highlightsRepo.UpdateNotes(id, req.Notes); err != nil {
		respondNotFound(c, "highlight")
		return
	}
	respondSuccess(c, "notes updated")
}

func (hc *HighlightsController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	h, err := hc.highlightsRepo.GetByID(id)
	if err != nil {
		respondNotFound(c, "highlight")
		return
	}
	if err := hc.highlightsRepo.Delete(id); err != nil {
		respondInternalError(c, err, "delete highlight")
		return
	}
	hc.resyncSessions(h.BookID)
	respondSuccess(c, "highlight deleted")
}

// resyncSessions pushes the stored highlight set onto live sessions for
// the book. Best effort; a failed reconcile retries on the next sync.
func (hc *HighlightsController) resyncSessions(bookID uint) {
	book, err := hc.booksRepo.GetByID(bookID)
	if err != nil {
		return
	}
	hs, err := hc.highlightsRepo.GetForBook(bookID)
	if err != nil {
		return
	}
	for _, sess := range hc.readerSvc.ForDocument(book.Title) {
		sess.SyncHighlights(hs)
	}
}
