package tiers

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// LegacyTier reads the flat books table kept by pre-rewrite installations.
// It is strictly read-only: records are consulted during open-time
// resolution for users migrating old libraries, never written.
type LegacyTier struct {
	dbPath string
}

func NewLegacyTier(dbPath string) *LegacyTier {
	return &LegacyTier{dbPath: dbPath}
}

func (l *LegacyTier) Name() string { return "legacy" }

// ReadProgress looks the document up by title in the legacy database. A
// missing file or table simply means no legacy record; the chain moves on.
func (l *LegacyTier) ReadProgress(documentID string) (Saved, bool) {
	if l.dbPath == "" {
		return Saved{}, false
	}
	if _, err := os.Stat(l.dbPath); err != nil {
		return Saved{}, false
	}

	db, err := sql.Open("sqlite3", l.dbPath+"?mode=ro")
	if err != nil {
		log.Printf("legacy tier: open %s: %v", l.dbPath, err)
		return Saved{}, false
	}
	defer db.Close()

	var saved Saved
	err = db.QueryRow(
		`SELECT last_cfi, last_percentage FROM books WHERE title = ?`,
		documentID,
	).Scan(&saved.Token, &saved.Percent)
	if err == sql.ErrNoRows {
		return Saved{}, false
	}
	if err != nil {
		log.Printf("legacy tier: read %q: %v", documentID, err)
		return Saved{}, false
	}
	return saved, true
}
