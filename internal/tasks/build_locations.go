package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/engine/textengine"
	"github.com/pagemark/reader/internal/storage"
)

// BuildLocationsTask precomputes the locations index for a book so its
// first open can restore a snapshot instead of walking the document.
type BuildLocationsTask struct {
	BookID   uint `json:"book_id"`
	Interval int  `json:"interval"`
}

func (t BuildLocationsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "build_locations",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// BuildLocationsProcessor creates the processor for locations index builds.
func BuildLocationsProcessor(booksRepo *books.Repository, library *storage.Library) backlite.QueueProcessor[BuildLocationsTask] {
	return func(ctx context.Context, task BuildLocationsTask) error {
		book, err := booksRepo.GetByID(task.BookID)
		if err != nil {
			return fmt.Errorf("load book %d: %w", task.BookID, err)
		}
		if book.LocationsData != "" {
			// A reading session already cached a snapshot.
			return nil
		}

		content, err := library.ReadAll(book.Filename)
		if err != nil {
			return fmt.Errorf("read book file %s: %w", book.Filename, err)
		}

		eng := textengine.New(book.Title, string(content), 0)
		defer eng.Close()
		serialized, err := eng.BuildIndex(ctx, task.Interval)
		if err != nil {
			return fmt.Errorf("build locations for book %d: %w", task.BookID, err)
		}

		if err := booksRepo.UpdateLocations(book.ID, string(serialized)); err != nil {
			return fmt.Errorf("cache locations for book %d: %w", task.BookID, err)
		}
		log.Printf("[TASK] Built locations index for book %d (%s)", book.ID, book.Title)
		return nil
	}
}

func NewBuildLocationsQueue(booksRepo *books.Repository, library *storage.Library) backlite.Queue {
	return backlite.NewQueue(BuildLocationsProcessor(booksRepo, library))
}
