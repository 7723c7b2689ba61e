// Package database owns the durable application store: the library of
// books, their highlights and bookmarks, and application settings.
//
// This is the authoritative persistence tier for reading progress. It is
// deliberately the slowest one: writes arrive through a debounce, reads
// happen once per document open.
package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pagemark/reader/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Book{},
		&entities.Highlight{},
		&entities.Bookmark{},
		&entities.Setting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized at %s", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WipeAll removes every book, highlight, bookmark and setting. Exposed for
// the destructive "start over" action; callers handle file cleanup.
func (d *Database) WipeAll() error {
	for _, model := range []interface{}{
		&entities.Highlight{},
		&entities.Bookmark{},
		&entities.Book{},
		&entities.Setting{},
	} {
		if err := d.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to wipe: %w", err)
		}
	}
	return nil
}
