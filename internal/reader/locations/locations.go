// Package locations wraps the engine's locations index with a ready state.
//
// Until an index is built or restored, every percentage/ordinal query
// reports not-ready and callers degrade to section-relative reporting. A
// built index is immutable for the lifetime of the open document.
package locations

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagemark/reader/internal/engine"
)

// Index maps global percentage <-> position token <-> ordinal for one open
// document.
type Index struct {
	mu         sync.RWMutex
	eng        engine.Engine
	ready      bool
	serialized []byte
}

func New(eng engine.Engine) *Index {
	return &Index{eng: eng}
}

// Restore installs a previously serialized snapshot. A corrupt snapshot
// leaves the index not-ready and returns the error; the caller should fall
// back to a full async build.
func (i *Index) Restore(serialized []byte) error {
	if len(serialized) == 0 {
		return fmt.Errorf("empty index snapshot")
	}
	if err := i.eng.LoadIndex(serialized); err != nil {
		return err
	}
	i.mu.Lock()
	i.ready = true
	i.serialized = append([]byte(nil), serialized...)
	i.mu.Unlock()
	return nil
}

// Build constructs the index by walking the document at interval-sized
// steps, installs it, and returns the serialized form for outward caching.
// Cancelling ctx aborts the walk.
func (i *Index) Build(ctx context.Context, interval int) ([]byte, error) {
	serialized, err := i.eng.BuildIndex(ctx, interval)
	if err != nil {
		return nil, fmt.Errorf("build locations index: %w", err)
	}
	if err := i.eng.LoadIndex(serialized); err != nil {
		return nil, fmt.Errorf("install locations index: %w", err)
	}
	i.mu.Lock()
	i.ready = true
	i.serialized = serialized
	i.mu.Unlock()
	return serialized, nil
}

func (i *Index) Ready() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ready
}

// Serialized returns the snapshot the index was built or restored from, or
// nil when not ready.
func (i *Index) Serialized() []byte {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.serialized
}

// PercentFromToken resolves a token to a global percentage clamped to
// [0,100]. ok is false when the index is not ready or the token does not
// resolve.
func (i *Index) PercentFromToken(token string) (pct float64, ok bool) {
	if !i.Ready() {
		return 0, false
	}
	pct, err := i.eng.PercentFromToken(token)
	if err != nil {
		return 0, false
	}
	return clamp(pct), true
}

func (i *Index) TokenFromPercent(pct float64) (string, bool) {
	if !i.Ready() {
		return "", false
	}
	token, err := i.eng.TokenFromPercent(clamp(pct))
	if err != nil {
		return "", false
	}
	return token, true
}

func (i *Index) OrdinalFromToken(token string) (int, bool) {
	if !i.Ready() {
		return 0, false
	}
	ord, err := i.eng.OrdinalFromToken(token)
	if err != nil {
		return 0, false
	}
	return ord, true
}

func (i *Index) TotalOrdinals() int {
	if !i.Ready() {
		return 0
	}
	return i.eng.TotalOrdinals()
}

func clamp(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
