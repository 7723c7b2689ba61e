package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/reader"
)

// SessionsController exposes reading sessions: opening a book, navigating
// inside it, and reading the progress display values.
type SessionsController struct {
	readerSvc      *reader.Service
	booksRepo      *books.Repository
	highlightsRepo *highlights.Repository
}

func NewSessionsController(readerSvc *reader.Service, booksRepo *books.Repository, highlightsRepo *highlights.Repository) *SessionsController {
	return &SessionsController{
		readerSvc:      readerSvc,
		booksRepo:      booksRepo,
		highlightsRepo: highlightsRepo,
	}
}

func (sc *SessionsController) session(c *gin.Context) (*reader.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid session id")
		return nil, false
	}
	sess, ok := sc.readerSvc.Get(id)
	if !ok {
		respondNotFound(c, "session")
		return nil, false
	}
	return sess, true
}

// Open starts a reading session for a book.
func (sc *SessionsController) Open(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	sess, err := sc.readerSvc.OpenBook(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, reader.ErrDisplayFailed) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "document cannot be displayed"})
			return
		}
		respondInternalError(c, err, "open book")
		return
	}

	respondCreated(c, gin.H{
		"session_id":  sess.ID,
		"document_id": sess.DocumentID,
		"progress":    sess.Tuple(),
		"ticks":       sess.Ticks(),
		"index_ready": sess.IndexReady(),
	})
}

// Close ends a session. Per-session reading state is discarded.
func (sc *SessionsController) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid session id")
		return
	}
	sc.readerSvc.Close(id)
	respondSuccess(c, "session closed")
}

// Progress returns the current display tuple.
func (sc *SessionsController) Progress(c *gin.Context) {
	sess, ok := sc.session(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"progress":    sess.Tuple(),
		"index_ready": sess.IndexReady(),
	})
}

// Ticks returns the chapter markers for the scrubber.
func (sc *SessionsController) Ticks(c *gin.Context) {
	sess, ok := sc.session(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"ticks": sess.Ticks()})
}

type gotoRequest struct {
	Token string `json:"token" binding:"required"`
}

// Goto navigates the session to an exact position token.
func (sc *SessionsController) Goto(c *gin.Context) {
	sess, ok := sc.session(c)
	if !ok {
		return
	}
	var req gotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token is required")
		return
	}
	if err := sess.JumpToToken(req.Token); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	respondSuccess(c, "position updated")
}

type scrubRequest struct {
	ChapterPercent *float64 `json:"chapter_percent" binding:"required"`
}

// Scrub handles scrubber release: the chapter-relative percentage maps
// through the current chapter onto the global axis.
func (sc *SessionsController) Scrub(c *gin.Context) {
	sess, ok := sc.session(c)
	if !ok {
		return
	}
	var req scrubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "chapter_percent is required")
		return
	}
	if err := sess.SetChapterRelativePercent(*req.ChapterPercent); err != nil {
		if errors.Is(err, reader.ErrIndexUnavailable) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "locations index not ready yet"})
			return
		}
		respondBadRequest(c, err.Error())
		return
	}
	respondSuccess(c, "position updated")
}

// SyncHighlights reconciles the session's drawn overlays with the stored
// highlight set.
func (sc *SessionsController) SyncHighlights(c *gin.Context) {
	sess, ok := sc.session(c)
	if !ok {
		return
	}
	book, err := sc.booksRepo.GetByTitle(sess.DocumentID)
	if err != nil {
		respondNotFound(c, "book")
		return
	}
	hs, err := sc.highlightsRepo.GetForBook(book.ID)
	if err != nil {
		respondInternalError(c, err, "load highlights")
		return
	}
	applied, removed := sess.SyncHighlights(hs)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "removed": removed})
}
