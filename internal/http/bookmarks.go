package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/database/bookmarks"
	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
)

type BookmarksController struct {
	bookmarksRepo *bookmarks.Repository
}

func NewBookmarksController(bookmarksRepo *bookmarks.Repository) *BookmarksController {
	return &BookmarksController{bookmarksRepo: bookmarksRepo}
}

func (bc *BookmarksController) GetForBook(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	bs, err := bc.bookmarksRepo.GetForBook(bookID)
	if err != nil {
		respondInternalError(c, err, "list bookmarks")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"bookmarks": bs, "count": len(bs)})
}

type createBookmarkRequest struct {
	Token string `json:"token" binding:"required"`
	Label string `json:"label"`
}

func (bc *BookmarksController) Create(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req createBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token is required")
		return
	}
	if !engine.ValidToken(req.Token) {
		respondBadRequest(c, "malformed position token")
		return
	}

	b, err := bc.bookmarksRepo.Create(&entities.Bookmark{
		BookID: bookID,
		Token:  req.Token,
		Label:  req.Label,
	})
	if err != nil {
		respondInternalError(c, err, "create bookmark")
		return
	}
	respondCreated(c, b)
}

func (bc *BookmarksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.bookmarksRepo.Delete(id); err != nil {
		respondNotFound(c, "bookmark")
		return
	}
	respondSuccess(c, "bookmark deleted")
}
