package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeLocal AuthMode = "local" // Local password with sessions
)

type (
	Config struct {
		HTTP
		Database
		Legacy
		Library
		Reader
		Tasks
		Auth
		Maintenance
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Legacy struct {
		DatabasePath string // Previous app version's flat progress store (read-only)
	}
	Library struct {
		Dir      string // Directory for imported book files
		WatchDir string // Drop folder watched for new books; empty disables watching
	}
	Reader struct {
		LocationInterval    int           // Content-size interval between index locations (characters)
		DebounceQuiet       time.Duration // Quiet period before an authoritative progress write
		StabilizeDelay      time.Duration // Settling window after first display; events inside it are not persisted
		TickEpsilon         float64       // Chapter ticks closer than this are collapsed (percentage points)
		ChapterMatchEpsilon float64       // Slack when matching the active chapter tick
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
	}
	Maintenance struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8288)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("legacy_database_path", DefaultLegacyDatabasePath)
	v.SetDefault("library_dir", DefaultLibraryDir)
	v.SetDefault("library_watch_dir", "")

	// Reader engine defaults. The debounce quiet period and stabilization
	// window are deliberate: bursts of position events (drag-scrubbing,
	// initial layout settling) must not reach the durable store.
	v.SetDefault("reader_location_interval", 1024)
	v.SetDefault("reader_debounce_quiet", "1s")
	v.SetDefault("reader_stabilize_delay", "500ms")
	v.SetDefault("reader_tick_epsilon", 0.1)
	v.SetDefault("reader_chapter_match_epsilon", 0.05)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "30s")
	v.SetDefault("task_timeout", "2m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)

	// Maintenance defaults
	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_schedule", "0 3 * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Legacy: Legacy{
			DatabasePath: v.GetString("LEGACY_DATABASE_PATH"),
		},
		Library: Library{
			Dir:      v.GetString("LIBRARY_DIR"),
			WatchDir: v.GetString("LIBRARY_WATCH_DIR"),
		},
		Reader: Reader{
			LocationInterval:    v.GetInt("READER_LOCATION_INTERVAL"),
			DebounceQuiet:       v.GetDuration("READER_DEBOUNCE_QUIET"),
			StabilizeDelay:      v.GetDuration("READER_STABILIZE_DELAY"),
			TickEpsilon:         v.GetFloat64("READER_TICK_EPSILON"),
			ChapterMatchEpsilon: v.GetFloat64("READER_CHAPTER_MATCH_EPSILON"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Auth: Auth{
			Mode:            AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
		},
		Maintenance: Maintenance{
			Enabled:  v.GetBool("MAINTENANCE_ENABLED"),
			Schedule: v.GetString("MAINTENANCE_SCHEDULE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
