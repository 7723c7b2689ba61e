// Package watcher turns a drop folder into an import source: files that
// appear in the watched directory are queued for ingestion.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pagemark/reader/internal/utils"
)

// defaultSettle is how long a file must stay quiet before it is considered
// fully copied and handed to the import queue.
const defaultSettle = 2 * time.Second

// Watcher watches one directory and reports settled files.
type Watcher struct {
	dir     string
	enqueue func(path string)
	settle  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New builds a watcher over dir. enqueue is called once per settled file.
func New(dir string, enqueue func(path string)) *Watcher {
	return &Watcher{
		dir:     dir,
		enqueue: enqueue,
		settle:  defaultSettle,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. Files already present at startup are
// queued immediately.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	log.Printf("Watching %s for new books", w.dir)

	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && utils.IsBookFile(e.Name()) {
				w.enqueue(filepath.Join(w.dir, e.Name()))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && utils.IsBookFile(ev.Name) {
				w.touch(ev.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watch error on %s: %v", w.dir, err)
		}
	}
}

// touch restarts the settle timer for path. Each write event pushes the
// import back until the file stops changing.
func (w *Watcher) touch(path string) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
