package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the login lifecycle over HTTP.
type Handlers struct {
	service  *Service
	sessions *SessionManager
}

func NewHandlers(service *Service, sessions *SessionManager) *Handlers {
	return &Handlers{service: service, sessions: sessions}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login verifies the password and establishes a session.
func (h *Handlers) Login(c *gin.Context) {
	if !h.service.Enabled() {
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "mode": h.service.Mode()})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if err := h.service.Authenticate(req.Password); err != nil {
		switch {
		case errors.Is(err, ErrNoPasswordSet):
			c.JSON(http.StatusConflict, gin.H{"error": "no password configured, set one first"})
		case errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	if err := h.sessions.CreateSession(c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// Logout destroys the session.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.sessions.DestroySession(c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to destroy session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

type setPasswordRequest struct {
	Password    string `json:"password" binding:"required"`
	OldPassword string `json:"old_password"`
}

// SetPassword performs initial password setup, or rotates the password when
// one is already configured. Rotation requires the current password, so the
// route can stay outside the auth gate.
func (h *Handlers) SetPassword(c *gin.Context) {
	if !h.service.Enabled() {
		c.JSON(http.StatusConflict, gin.H{"error": "authentication is disabled"})
		return
	}

	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	hasPassword, err := h.service.HasPassword()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read auth state"})
		return
	}

	if hasPassword {
		err = h.service.ChangePassword(req.OldPassword, req.Password)
	} else {
		err = h.service.SetPassword(req.Password)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store password"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_password": true})
}

// Status reports the auth mode and whether this request is authenticated.
func (h *Handlers) Status(c *gin.Context) {
	authenticated := !h.service.Enabled() || h.sessions.IsAuthenticated(c.Request)
	hasPassword, err := h.service.HasPassword()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read auth state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":          h.service.Mode(),
		"authenticated": authenticated,
		"has_password":  hasPassword,
	})
}
