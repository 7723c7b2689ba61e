package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/pagemark/reader/internal/importers"
)

// ImportBookTask ingests one file dropped into the watch folder. Running it
// through the queue keeps filesystem event handling cheap and gives imports
// retry semantics for files still being copied.
type ImportBookTask struct {
	Path string `json:"path"`
}

func (t ImportBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_book",
		MaxAttempts: 5,
		Backoff:     10 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ImportBookProcessor creates the processor for watch-folder imports. After
// a successful import it chains a locations build for the new book.
func ImportBookProcessor(pipeline *importers.Pipeline, client *Client, locationInterval int) backlite.QueueProcessor[ImportBookTask] {
	return func(ctx context.Context, task ImportBookTask) error {
		res, err := pipeline.ImportFile(task.Path)
		if err != nil {
			return fmt.Errorf("import %s: %w", task.Path, err)
		}
		if !res.Created {
			log.Printf("[TASK] Skipped %s: duplicate of book %d (%s)", task.Path, res.Book.ID, res.Book.Title)
			return nil
		}

		log.Printf("[TASK] Imported %s as book %d (%s)", task.Path, res.Book.ID, res.Book.Title)
		if _, err := client.Add(BuildLocationsTask{BookID: res.Book.ID, Interval: locationInterval}).Save(); err != nil {
			// The first open builds the index anyway.
			log.Printf("[TASK] Failed to enqueue locations build for book %d: %v", res.Book.ID, err)
		}
		return nil
	}
}

func NewImportBookQueue(pipeline *importers.Pipeline, client *Client, locationInterval int) backlite.Queue {
	return backlite.NewQueue(ImportBookProcessor(pipeline, client, locationInterval))
}
