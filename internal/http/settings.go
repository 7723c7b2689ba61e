package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/database/settings"
)

// writableKeys are the settings clients may change over the API. The auth
// password hash is managed through the auth endpoints only.
var writableKeys = map[string]bool{
	settings.KeyTheme:    true,
	settings.KeyFontSize: true,
}

type SettingsController struct {
	settingsRepo *settings.Repository
}

func NewSettingsController(settingsRepo *settings.Repository) *SettingsController {
	return &SettingsController{settingsRepo: settingsRepo}
}

func (sc *SettingsController) GetAll(c *gin.Context) {
	all, err := sc.settingsRepo.All()
	if err != nil {
		respondInternalError(c, err, "list settings")
		return
	}
	out := make(map[string]string, len(all))
	for _, s := range all {
		if writableKeys[s.Key] {
			out[s.Key] = s.Value
		}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"settings": out})
}

type setSettingRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (sc *SettingsController) Set(c *gin.Context) {
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "key is required")
		return
	}
	if !writableKeys[req.Key] {
		respondBadRequest(c, "unknown setting key")
		return
	}
	if err := sc.settingsRepo.Set(req.Key, req.Value); err != nil {
		respondInternalError(c, err, "store setting")
		return
	}
	respondSuccess(c, "setting updated")
}
