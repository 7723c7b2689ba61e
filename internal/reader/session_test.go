package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/engine/textengine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/tiers"
)

const bookText = `# Chapter One
It was a dark and stormy night. The rain fell in torrents.
The wind howled through the empty streets.

# Chapter Two
Morning came slowly, grey and cold.
Nobody remembered the storm.
`

type memStore struct {
	mu     sync.Mutex
	saved  map[string]tiers.Saved
	writes int
	last   tiers.Saved
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]tiers.Saved)}
}

func (s *memStore) Name() string { return "authoritative" }

func (s *memStore) ReadProgress(documentID string) (tiers.Saved, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.saved[documentID]
	return saved, ok
}

func (s *memStore) WriteProgress(documentID, token string, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[documentID] = tiers.Saved{Token: token, Percent: percent}
	s.writes++
	s.last = tiers.Saved{Token: token, Percent: percent}
	return nil
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) lastWrite() tiers.Saved {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// failEngine refuses to display anything.
type failEngine struct{}

func (failEngine) Display(context.Context, string) error        { return errors.New("render crashed") }
func (failEngine) JumpTo(string) error                          { return errors.New("render crashed") }
func (failEngine) BuildIndex(context.Context, int) ([]byte, error) {
	return nil, errors.New("render crashed")
}
func (failEngine) LoadIndex([]byte) error                  { return errors.New("render crashed") }
func (failEngine) PercentFromToken(string) (float64, error) { return 0, errors.New("no index") }
func (failEngine) TokenFromPercent(float64) (string, error) { return "", errors.New("no index") }
func (failEngine) OrdinalFromToken(string) (int, error)     { return 0, errors.New("no index") }
func (failEngine) TotalOrdinals() int                       { return 0 }
func (failEngine) ApplyOverlay(string, engine.OverlayStyle) error { return errors.New("no surface") }
func (failEngine) RemoveOverlay(string) error                     { return errors.New("no surface") }
func (failEngine) TOC() []engine.TOCEntry                         { return nil }
func (failEngine) Events() <-chan engine.PositionEvent {
	ch := make(chan engine.PositionEvent)
	close(ch)
	return ch
}
func (failEngine) Close() error { return nil }

// gatedEngine holds the index build until release is closed.
type gatedEngine struct {
	*textengine.Engine
	release chan struct{}
}

func (g *gatedEngine) BuildIndex(ctx context.Context, interval int) ([]byte, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Engine.BuildIndex(ctx, interval)
}

func testCfg() config.Reader {
	return config.Reader{
		LocationInterval:    32,
		DebounceQuiet:       20 * time.Millisecond,
		StabilizeDelay:      0,
		TickEpsilon:         0.1,
		ChapterMatchEpsilon: 0.05,
	}
}

func newTierMgr(store *memStore, quiet time.Duration) *tiers.Manager {
	return tiers.NewManager(tiers.NewFastTier(), nil, store, quiet)
}

func TestOpen(t *testing.T) {
	t.Run("resumes at the saved fast-tier position", func(t *testing.T) {
		store := newMemStore()
		tm := newTierMgr(store, 20*time.Millisecond)
		require.NoError(t, tm.Fast().Write(entities.ProgressSnapshot{
			DocumentID: "Dune", Token: "pos(1/5)", GlobalPercent: 60,
		}))

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
		})
		require.NoError(t, err)
		defer s.Close()

		assert.Eventually(t, func() bool {
			return store.lastWrite().Token == "pos(1/5)"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("malformed saved token starts from the beginning", func(t *testing.T) {
		store := newMemStore()
		tm := newTierMgr(store, 20*time.Millisecond)
		require.NoError(t, tm.Fast().Write(entities.ProgressSnapshot{
			DocumentID: "Dune", Token: "not a token",
		}))

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
		})
		require.NoError(t, err)
		defer s.Close()

		assert.Eventually(t, func() bool {
			return store.lastWrite().Token == "pos(0/0)"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("saved token for another document retries at the start", func(t *testing.T) {
		store := newMemStore()
		tm := newTierMgr(store, 20*time.Millisecond)

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID:  "Dune",
			Engine:      textengine.New("Dune", bookText, 0),
			CallerSaved: tiers.Saved{Token: "pos(99/0)", Percent: 80},
		})
		require.NoError(t, err)
		defer s.Close()

		assert.Eventually(t, func() bool {
			return store.lastWrite().Token == "pos(0/0)"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("display failing at the start is fatal", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)

		_, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     failEngine{},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDisplayFailed))
	})
}

func TestStabilizationWindow(t *testing.T) {
	store := newMemStore()
	tm := newTierMgr(store, 10*time.Millisecond)
	cfg := testCfg()
	cfg.StabilizeDelay = 100 * time.Millisecond

	s, err := Open(context.Background(), tm, cfg, OpenParams{
		DocumentID: "Dune",
		Engine:     textengine.New("Dune", bookText, 0),
	})
	require.NoError(t, err)
	defer s.Close()

	// The initial layout event lands inside the window and must not reach
	// the durable store.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.writeCount())

	time.Sleep(70 * time.Millisecond)
	require.NoError(t, s.JumpToToken("pos(1/3)"))

	assert.Eventually(t, func() bool {
		return store.lastWrite().Token == "pos(1/3)"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.writeCount())
}

func TestIndexBuild(t *testing.T) {
	t.Run("async build readies percentages and ticks", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)
		var mu sync.Mutex
		var cached []byte

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
			OnIndexBuilt: func(serialized []byte) {
				mu.Lock()
				cached = serialized
				mu.Unlock()
			},
		})
		require.NoError(t, err)
		defer s.Close()

		assert.Eventually(t, func() bool {
			return s.IndexReady() && len(s.Ticks()) == 2
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.NotEmpty(t, cached)
	})

	t.Run("a valid snapshot skips the rebuild", func(t *testing.T) {
		eng := textengine.New("Dune", bookText, 0)
		snapshot, err := eng.BuildIndex(context.Background(), 32)
		require.NoError(t, err)

		tm := newTierMgr(newMemStore(), time.Minute)
		var rebuilt bool
		var mu sync.Mutex

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID:        "Dune",
			Engine:            textengine.New("Dune", bookText, 0),
			LocationsSnapshot: snapshot,
			OnIndexBuilt: func([]byte) {
				mu.Lock()
				rebuilt = true
				mu.Unlock()
			},
		})
		require.NoError(t, err)
		defer s.Close()

		assert.True(t, s.IndexReady())
		assert.Len(t, s.Ticks(), 2)

		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, rebuilt)
	})

	t.Run("a corrupt snapshot triggers a rebuild", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID:        "Dune",
			Engine:            textengine.New("Dune", bookText, 0),
			LocationsSnapshot: []byte("garbage"),
		})
		require.NoError(t, err)
		defer s.Close()

		assert.Eventually(t, s.IndexReady, time.Second, 5*time.Millisecond)
	})

	t.Run("closing discards an in-flight build", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)
		gated := &gatedEngine{
			Engine:  textengine.New("Dune", bookText, 0),
			release: make(chan struct{}),
		}
		var mu sync.Mutex
		var cached bool

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     gated,
			OnIndexBuilt: func([]byte) {
				mu.Lock()
				cached = true
				mu.Unlock()
			},
		})
		require.NoError(t, err)

		s.Close()
		close(gated.release)

		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, cached)
	})
}

func TestScrub(t *testing.T) {
	t.Run("chapter-relative scrub needs the index", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)
		gated := &gatedEngine{
			Engine:  textengine.New("Dune", bookText, 0),
			release: make(chan struct{}),
		}

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     gated,
		})
		require.NoError(t, err)
		defer s.Close()

		err = s.SetChapterRelativePercent(50)
		assert.ErrorIs(t, err, ErrIndexUnavailable)

		close(gated.release)
		assert.Eventually(t, s.IndexReady, time.Second, 5*time.Millisecond)
		assert.NoError(t, s.SetChapterRelativePercent(50))
	})

	t.Run("scrub release persists the landing position", func(t *testing.T) {
		store := newMemStore()
		tm := newTierMgr(store, 10*time.Millisecond)

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
		})
		require.NoError(t, err)
		defer s.Close()
		require.Eventually(t, s.IndexReady, time.Second, 5*time.Millisecond)

		require.NoError(t, s.SetChapterRelativePercent(100))

		assert.Eventually(t, func() bool {
			return store.lastWrite().Percent > 30
		}, time.Second, 5*time.Millisecond)
	})
}

func TestSessionClose(t *testing.T) {
	t.Run("close drops the pending write without flushing", func(t *testing.T) {
		store := newMemStore()
		tm := newTierMgr(store, time.Minute)

		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return tm.PendingWrites() == 1
		}, time.Second, 5*time.Millisecond)

		s.Close()
		assert.Zero(t, tm.PendingWrites())
		assert.Zero(t, store.writeCount())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		tm := newTierMgr(newMemStore(), time.Minute)
		s, err := Open(context.Background(), tm, testCfg(), OpenParams{
			DocumentID: "Dune",
			Engine:     textengine.New("Dune", bookText, 0),
		})
		require.NoError(t, err)

		s.Close()
		s.Close()
	})
}
