package http

import (
	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability and
// reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CSRF must run before session so that session context is preserved.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	library := NewLibraryController(cfg.Database, cfg.BooksRepo, cfg.Library, cfg.Importer, cfg.TierManager, cfg.TaskClient, cfg.LocationInterval)
	sessions := NewSessionsController(cfg.ReaderService, cfg.BooksRepo, cfg.HighlightsRepo)
	highlights := NewHighlightsController(cfg.HighlightsRepo, cfg.BooksRepo, cfg.ReaderService)
	bookmarks := NewBookmarksController(cfg.BookmarksRepo)
	export := NewExportController(cfg.BooksRepo, cfg.HighlightsRepo, cfg.BookmarksRepo)
	settings := NewSettingsController(cfg.SettingsRepo)

	// Health endpoints stay open regardless of auth mode.
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := router.Group("/api")
	if cfg.AuthService != nil && cfg.SessionManager != nil {
		authHandlers := auth.NewHandlers(cfg.AuthService, cfg.SessionManager)
		api.POST("/auth/login", authHandlers.Login)
		api.POST("/auth/logout", authHandlers.Logout)
		api.GET("/auth/status", authHandlers.Status)
		api.POST("/auth/password", authHandlers.SetPassword)

		api.Use(auth.RequireAuth(cfg.AuthService, cfg.SessionManager))
	}

	// Library
	api.GET("/books", library.ListBooks)
	api.POST("/books", library.UploadBook)
	api.GET("/books/:id", library.GetBook)
	api.GET("/books/:id/content", library.GetBookContent)
	api.GET("/books/:id/cover", library.GetCover)
	api.POST("/books/:id/cover", library.UploadCover)
	api.DELETE("/books/:id", library.DeleteBook)
	api.POST("/admin/wipe", library.WipeAll)

	// Reading sessions
	api.POST("/books/:id/session", sessions.Open)
	api.DELETE("/sessions/:id", sessions.Close)
	api.GET("/sessions/:id/progress", sessions.Progress)
	api.GET("/sessions/:id/ticks", sessions.Ticks)
	api.POST("/sessions/:id/goto", sessions.Goto)
	api.POST("/sessions/:id/scrub", sessions.Scrub)
	api.POST("/sessions/:id/highlights/sync", sessions.SyncHighlights)

	// Annotations
	api.GET("/books/:id/highlights", highlights.GetForBook)
	api.POST("/books/:id/highlights", highlights.Create)
	api.PATCH("/highlights/:id/notes", highlights.UpdateNotes)
	api.DELETE("/highlights/:id", highlights.Delete)
	api.GET("/books/:id/bookmarks", bookmarks.GetForBook)
	api.POST("/books/:id/bookmarks", bookmarks.Create)
	api.DELETE("/bookmarks/:id", bookmarks.Delete)
	api.GET("/books/:id/export", export.ExportBook)

	// Settings
	api.GET("/settings", settings.GetAll)
	api.PUT("/settings", settings.Set)

	return router
}
