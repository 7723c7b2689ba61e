package tiers

import (
	"sync"

	"github.com/pagemark/reader/internal/entities"
)

// FastTier is the low-latency session-local progress store. It lives in
// process memory and is written synchronously on every position change.
type FastTier struct {
	mu    sync.RWMutex
	byDoc map[string]entities.ProgressSnapshot
}

func NewFastTier() *FastTier {
	return &FastTier{byDoc: make(map[string]entities.ProgressSnapshot)}
}

func (f *FastTier) Name() string { return "fast" }

func (f *FastTier) ReadProgress(documentID string) (Saved, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.byDoc[documentID]
	if !ok {
		return Saved{}, false
	}
	return Saved{Token: snap.Token, Percent: snap.GlobalPercent}, true
}

func (f *FastTier) Write(snap entities.ProgressSnapshot) error {
	f.mu.Lock()
	f.byDoc[snap.DocumentID] = snap
	f.mu.Unlock()
	return nil
}

// Snapshot returns the full stored record, for the UI's library listing.
func (f *FastTier) Snapshot(documentID string) (entities.ProgressSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.byDoc[documentID]
	return snap, ok
}

func (f *FastTier) Delete(documentID string) {
	f.mu.Lock()
	delete(f.byDoc, documentID)
	f.mu.Unlock()
}

// DocumentIDs lists every document with a fast-tier record, for
// maintenance pruning.
func (f *FastTier) DocumentIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.byDoc))
	for id := range f.byDoc {
		ids = append(ids, id)
	}
	return ids
}
