package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagemark/reader/internal/auth"
	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database"
	"github.com/pagemark/reader/internal/database/bookmarks"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/database/settings"
	http_controllers "github.com/pagemark/reader/internal/http"
	"github.com/pagemark/reader/internal/importers"
	"github.com/pagemark/reader/internal/reader"
	"github.com/pagemark/reader/internal/scheduler"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tasks"
	"github.com/pagemark/reader/internal/tiers"
	"github.com/pagemark/reader/internal/watcher"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to close reading sessions and
	// stop the task queue) so that pending state lands before the server dies.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Pagemark v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	booksRepo := books.NewRepository(db.DB)
	highlightsRepo := highlights.NewRepository(db.DB)
	bookmarksRepo := bookmarks.NewRepository(db.DB)
	settingsRepo := settings.NewRepository(db.DB)

	// File store for imported book content
	library, err := storage.NewLibrary(cfg.Library.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize library at %s: %v", cfg.Library.Dir, err)
	}

	// Progress tiers: in-memory fast tier, optional read-only legacy
	// database, and the catalog as the authoritative store.
	fastTier := tiers.NewFastTier()
	var legacyTier *tiers.LegacyTier
	if cfg.Legacy.DatabasePath != "" {
		if _, err := os.Stat(cfg.Legacy.DatabasePath); err == nil {
			log.Printf("Legacy progress database found at %s", cfg.Legacy.DatabasePath)
			legacyTier = tiers.NewLegacyTier(cfg.Legacy.DatabasePath)
		}
	}
	tierManager := tiers.NewManager(fastTier, legacyTier, booksRepo, cfg.Reader.DebounceQuiet)

	readerService := reader.NewService(booksRepo, highlightsRepo, library, tierManager, cfg.Reader)
	importer := importers.NewPipeline(booksRepo, library)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewBuildLocationsQueue(booksRepo, library),
			tasks.NewImportBookQueue(importer, taskClient, cfg.Reader.LocationInterval),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Watch the drop folder for new books if configured
	var watcherCancel context.CancelFunc
	if cfg.Library.WatchDir != "" {
		enqueue := func(path string) {
			if taskClient != nil {
				if _, err := taskClient.Add(tasks.ImportBookTask{Path: path}).Save(); err != nil {
					log.Printf("Failed to queue import for %s: %v", path, err)
				}
				return
			}
			// No task queue: import inline.
			if _, err := importer.ImportFile(path); err != nil {
				log.Printf("Failed to import %s: %v", path, err)
			}
		}

		w := watcher.New(cfg.Library.WatchDir, enqueue)
		var watchCtx context.Context
		watchCtx, watcherCancel = context.WithCancel(context.Background())
		go func() {
			if err := w.Run(watchCtx); err != nil {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	}

	// Maintenance scheduler prunes fast-tier entries and library files that
	// no longer have a catalog row.
	var maintenance *scheduler.MaintenanceScheduler
	if cfg.Maintenance.Enabled {
		maintenance = scheduler.NewMaintenanceScheduler(booksRepo, fastTier, library, cfg.Maintenance.Schedule)
		if err := maintenance.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to start maintenance scheduler: %v", err)
			maintenance = nil
		} else {
			log.Printf("Maintenance scheduled: %s", cfg.Maintenance.Schedule)
		}
	}

	// Initialize authentication if enabled
	var authService *auth.Service
	var sessionManager *auth.SessionManager
	var csrfSecret []byte

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		authService = auth.NewService(settingsRepo, cfg.Auth)

		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}

		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		// Generate or use configured CSRF secret
		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				log.Fatalf("Failed to generate CSRF secret: %v", err)
			}
			csrfSecret, _ = hex.DecodeString(secret)
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		if ok, _ := authService.HasPassword(); !ok {
			log.Printf("No password set. POST a password to /api/auth/password to finish setup.")
		}
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:         db,
		BooksRepo:        booksRepo,
		HighlightsRepo:   highlightsRepo,
		BookmarksRepo:    bookmarksRepo,
		SettingsRepo:     settingsRepo,
		Library:          library,
		Importer:         importer,
		ReaderService:    readerService,
		TierManager:      tierManager,
		AuthService:      authService,
		SessionManager:   sessionManager,
		AuthConfig:       cfg.Auth,
		CSRFSecret:       csrfSecret,
		TaskClient:       taskClient,
		LocationInterval: cfg.Reader.LocationInterval,
		Version:          version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup. Sessions close first so that
	// engines stop emitting before the tiers go away.
	onShutdown := func(ctx context.Context) {
		readerService.CloseAll()
		if watcherCancel != nil {
			watcherCancel()
		}
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
