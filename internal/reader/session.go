// Package reader orchestrates one open document: position tracking,
// progress mapping, highlight overlays and persistence.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/reader/chapters"
	"github.com/pagemark/reader/internal/reader/locations"
	"github.com/pagemark/reader/internal/reader/overlay"
	"github.com/pagemark/reader/internal/reader/progress"
	"github.com/pagemark/reader/internal/tiers"
)

var (
	// ErrDisplayFailed means both the saved-position and start-of-document
	// display attempts failed. Fatal for the session; the UI shows an error
	// state with a path back to the library.
	ErrDisplayFailed = errors.New("document display failed")

	// ErrIndexUnavailable means an operation needs the locations index
	// before it has been built.
	ErrIndexUnavailable = errors.New("locations index not ready")
)

// OpenParams carries everything needed to open one document.
type OpenParams struct {
	DocumentID string
	Engine     engine.Engine

	// LocationsSnapshot is the cached serialized index from a previous
	// open, if any. A corrupt snapshot triggers a full async rebuild.
	LocationsSnapshot []byte

	// CallerSaved is the authoritative-tier position already loaded at
	// listing time. It is the last step of the resolution chain.
	CallerSaved tiers.Saved

	// OnIndexBuilt receives the serialized index after an async build so
	// the caller can cache it for the next open. Optional.
	OnIndexBuilt func(serialized []byte)
}

// Session is one open document. All mutable reading state hangs off the
// session and is discarded wholesale on Close, never migrated.
type Session struct {
	ID         uuid.UUID
	DocumentID string

	eng      engine.Engine
	index    *locations.Index
	mapper   *progress.Mapper
	overlays *overlay.Manager
	tierMgr  *tiers.Manager
	cfg      config.Reader

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.RWMutex
	tuple          entities.DisplayTuple
	lastToken      string
	stabilizeUntil time.Time
	closed         bool

	done chan struct{}
}

// Open resolves the last-known position, displays the document and starts
// tracking. The locations index is restored from the snapshot when valid,
// otherwise rebuilt asynchronously; either way the document is readable
// immediately.
func Open(ctx context.Context, tierMgr *tiers.Manager, cfg config.Reader, p OpenParams) (*Session, error) {
	saved := tierMgr.Resolve(p.DocumentID, p.CallerSaved)

	token := saved.Token
	if token != "" && !engine.ValidToken(token) {
		log.Printf("saved position for %q is malformed (%q), starting from the beginning", p.DocumentID, token)
		token = ""
	}

	if err := p.Engine.Display(ctx, token); err != nil {
		if token == "" {
			return nil, fmt.Errorf("%w: %v", ErrDisplayFailed, err)
		}
		log.Printf("display at saved position failed for %q: %v, retrying at start", p.DocumentID, err)
		if err := p.Engine.Display(ctx, ""); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDisplayFailed, err)
		}
	}

	sctx, cancel := context.WithCancel(context.Background())
	idx := locations.New(p.Engine)
	s := &Session{
		ID:             uuid.New(),
		DocumentID:     p.DocumentID,
		eng:            p.Engine,
		index:          idx,
		mapper:         progress.NewMapper(idx, cfg.ChapterMatchEpsilon),
		overlays:       overlay.NewManager(p.Engine),
		tierMgr:        tierMgr,
		cfg:            cfg,
		ctx:            sctx,
		cancel:         cancel,
		stabilizeUntil: time.Now().Add(cfg.StabilizeDelay),
		done:           make(chan struct{}),
	}

	if len(p.LocationsSnapshot) > 0 {
		if err := idx.Restore(p.LocationsSnapshot); err == nil {
			s.refreshTicks()
		} else {
			log.Printf("cached locations for %q unusable (%v), rebuilding", p.DocumentID, err)
			go s.buildIndex(p.OnIndexBuilt)
		}
	} else {
		go s.buildIndex(p.OnIndexBuilt)
	}

	go s.loop()
	return s, nil
}

// buildIndex runs the async index construction. Results arriving after the
// session closed are discarded silently.
func (s *Session) buildIndex(onBuilt func([]byte)) {
	serialized, err := s.index.Build(s.ctx, s.cfg.LocationInterval)
	if err != nil {
		// Not-ready state: progress degrades to section-relative values.
		if s.ctx.Err() == nil {
			log.Printf("locations index build failed for %q: %v", s.DocumentID, err)
		}
		return
	}
	s.mu.RLock()
	stale := s.closed
	s.mu.RUnlock()
	if stale {
		return
	}
	s.refreshTicks()
	if onBuilt != nil {
		onBuilt(serialized)
	}
}

func (s *Session) refreshTicks() {
	toc := s.eng.TOC()
	ticks := chapters.Derive(toc, s.index, s.cfg.TickEpsilon)
	s.mapper.SetTicks(ticks, chapters.Flatten(toc))
}

// loop consumes position-changed events in emission order until the engine
// closes its event stream.
func (s *Session) loop() {
	defer close(s.done)
	for ev := range s.eng.Events() {
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev engine.PositionEvent) {
	tuple := s.mapper.Tuple(ev)

	s.mu.Lock()
	s.tuple = tuple
	s.lastToken = ev.Token
	settling := time.Now().Before(s.stabilizeUntil)
	closed := s.closed
	s.mu.Unlock()

	// Events inside the settling window after first display are layout
	// artifacts; persisting them would clobber saved progress.
	if settling || closed {
		return
	}

	s.tierMgr.Track(entities.ProgressSnapshot{
		DocumentID:     s.DocumentID,
		Token:          ev.Token,
		GlobalPercent:  tuple.GlobalPercent,
		ChapterPercent: tuple.ChapterPercent,
		PageOrdinal:    tuple.PageOrdinal,
		TotalPages:     tuple.TotalPages,
		Timestamp:      time.Now(),
	})
}

// Tuple returns the current display tuple.
func (s *Session) Tuple() entities.DisplayTuple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuple
}

// Ticks returns the chapter tick markers for the scrubber.
func (s *Session) Ticks() []entities.ChapterTick {
	return s.mapper.Ticks()
}

// IndexReady reports whether percentage features are fully available.
func (s *Session) IndexReady() bool {
	return s.index.Ready()
}

// JumpToToken navigates to an exact position.
func (s *Session) JumpToToken(token string) error {
	if !engine.ValidToken(token) {
		return fmt.Errorf("invalid position token %q", token)
	}
	return s.eng.JumpTo(token)
}

// SetChapterRelativePercent handles scrubber release: the chapter-relative
// value is mapped through the active tick onto the global axis and the
// document jumps once. Continuous drag updates stay UI-local and never
// reach this method.
func (s *Session) SetChapterRelativePercent(v float64) error {
	s.mu.RLock()
	current := s.tuple.GlobalPercent
	s.mu.RUnlock()

	token, ok := s.mapper.TokenForChapterRelative(v, current)
	if !ok {
		return ErrIndexUnavailable
	}
	return s.eng.JumpTo(token)
}

// SyncHighlights reconciles the drawn overlays with the desired highlight
// set.
func (s *Session) SyncHighlights(desired []entities.Highlight) (applied, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, 0
	}
	return s.overlays.Sync(desired)
}

// AppliedOverlays returns the overlay tokens currently drawn.
func (s *Session) AppliedOverlays() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlays.Applied()
}

// Close tears the session down: the pending authoritative write is
// cancelled without a final flush, in-flight index builds are discarded,
// and all per-document state is dropped wholesale.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.overlays.Clear()
	s.mu.Unlock()

	s.cancel()
	s.tierMgr.CloseDocument(s.DocumentID)
	if err := s.eng.Close(); err != nil {
		log.Printf("engine close for %q: %v", s.DocumentID, err)
	}
	<-s.done
}
