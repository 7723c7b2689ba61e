// Package scheduler runs periodic library maintenance on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tiers"
)

// MaintenanceScheduler periodically reconciles the catalog with its
// surroundings: fast-tier progress entries for deleted books are dropped
// and orphaned library files are removed.
type MaintenanceScheduler struct {
	booksRepo *books.Repository
	fast      *tiers.FastTier
	library   *storage.Library
	schedule  string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isCleaning bool
	cancelFunc context.CancelFunc
}

func NewMaintenanceScheduler(booksRepo *books.Repository, fast *tiers.FastTier, library *storage.Library, schedule string) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		booksRepo: booksRepo,
		fast:      fast,
		library:   library,
		schedule:  schedule,
		cron:      cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runMaintenance)
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true
	log.Printf("Maintenance scheduler: started with schedule %q", s.schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running maintenance pass to complete.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil
	log.Printf("Maintenance scheduler: stopped")
}

// RunNow triggers an immediate maintenance pass.
func (s *MaintenanceScheduler) RunNow() {
	go s.runMaintenance()
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next pass will occur.
func (s *MaintenanceScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *MaintenanceScheduler) runMaintenance() {
	s.mu.Lock()
	if s.isCleaning {
		s.mu.Unlock()
		log.Printf("Maintenance: skipped (already running)")
		return
	}
	s.isCleaning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isCleaning = false
		s.mu.Unlock()
	}()

	start := time.Now()
	all, err := s.booksRepo.GetAll()
	if err != nil {
		log.Printf("Maintenance: failed to list books: %v", err)
		return
	}

	titles := make(map[string]bool, len(all))
	filenames := make(map[string]bool, len(all))
	for _, b := range all {
		titles[b.Title] = true
		if b.Filename != "" {
			filenames[b.Filename] = true
		}
	}

	prunedProgress := s.pruneFastTier(titles)
	prunedFiles := s.pruneLibrary(filenames)

	log.Printf("Maintenance: pruned %d stale progress entries and %d orphaned files in %v",
		prunedProgress, prunedFiles, time.Since(start).Round(time.Millisecond))
}

// pruneFastTier drops in-memory progress for documents that no longer
// exist in the catalog.
func (s *MaintenanceScheduler) pruneFastTier(titles map[string]bool) int {
	pruned := 0
	for _, id := range s.fast.DocumentIDs() {
		if !titles[id] {
			s.fast.Delete(id)
			pruned++
		}
	}
	return pruned
}

// pruneLibrary removes stored files no book record references.
func (s *MaintenanceScheduler) pruneLibrary(filenames map[string]bool) int {
	stored, err := s.library.Filenames()
	if err != nil {
		log.Printf("Maintenance: failed to list library files: %v", err)
		return 0
	}
	pruned := 0
	for _, name := range stored {
		if !filenames[name] {
			if err := s.library.Remove(name); err != nil {
				log.Printf("Maintenance: failed to remove %s: %v", name, err)
				continue
			}
			pruned++
		}
	}
	return pruned
}
