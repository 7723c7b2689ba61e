package config

// Default paths for databases and the book library
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./reader.db"

	// DefaultLegacyDatabasePath is where pre-rewrite installations kept their
	// flat progress store. Read-only; used as a fallback when a book has no
	// fast-tier position yet.
	DefaultLegacyDatabasePath = "./reader-legacy.db"

	// DefaultLibraryDir is where imported book files are stored
	DefaultLibraryDir = "./library"
)
