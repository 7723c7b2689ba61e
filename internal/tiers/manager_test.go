package tiers

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagemark/reader/internal/entities"
)

// recordingStore is an AuthoritativeStore capturing writes.
type recordingStore struct {
	mu     sync.Mutex
	writes []Saved
	byDoc  map[string]Saved
	fail   bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{byDoc: map[string]Saved{}}
}

func (s *recordingStore) Name() string { return "authoritative" }

func (s *recordingStore) ReadProgress(documentID string) (Saved, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.byDoc[documentID]
	return saved, ok
}

func (s *recordingStore) WriteProgress(documentID, token string, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	saved := Saved{Token: token, Percent: percent}
	s.writes = append(s.writes, saved)
	s.byDoc[documentID] = saved
	return nil
}

func (s *recordingStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *recordingStore) lastWrite() Saved {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return Saved{}
	}
	return s.writes[len(s.writes)-1]
}

// legacyFixture creates a legacy-format sqlite database with one book row.
func legacyFixture(t *testing.T, title, token string, percent float64) *LegacyTier {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE books (
		title TEXT PRIMARY KEY,
		last_cfi TEXT NOT NULL DEFAULT '',
		last_percentage REAL NOT NULL DEFAULT 0.0
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (title, last_cfi, last_percentage) VALUES (?, ?, ?)`,
		title, token, percent)
	require.NoError(t, err)
	return NewLegacyTier(path)
}

func snap(doc, token string, pct float64) entities.ProgressSnapshot {
	return entities.ProgressSnapshot{
		DocumentID:    doc,
		Token:         token,
		GlobalPercent: pct,
		Timestamp:     time.Now(),
	}
}

func TestResolve(t *testing.T) {
	t.Run("fast tier wins over legacy and caller value", func(t *testing.T) {
		fast := NewFastTier()
		require.NoError(t, fast.Write(snap("Dune", "pos(1/10)", 12)))
		legacy := legacyFixture(t, "Dune", "pos(9/9)", 90)
		m := NewManager(fast, legacy, newRecordingStore(), time.Second)

		saved := m.Resolve("Dune", Saved{Token: "pos(0/0)"})
		assert.Equal(t, "pos(1/10)", saved.Token)
	})

	t.Run("legacy tier wins when fast tier is empty", func(t *testing.T) {
		legacy := legacyFixture(t, "Dune", "pos(9/9)", 90)
		m := NewManager(NewFastTier(), legacy, newRecordingStore(), time.Second)

		saved := m.Resolve("Dune", Saved{Token: "pos(0/0)"})
		assert.Equal(t, "pos(9/9)", saved.Token)
		assert.Equal(t, 90.0, saved.Percent)
	})

	t.Run("caller supplied value is the final fallback", func(t *testing.T) {
		m := NewManager(NewFastTier(), nil, newRecordingStore(), time.Second)

		saved := m.Resolve("Dune", Saved{Token: "pos(3/3)", Percent: 33})
		assert.Equal(t, "pos(3/3)", saved.Token)
	})

	t.Run("empty token in a tier does not win", func(t *testing.T) {
		fast := NewFastTier()
		require.NoError(t, fast.Write(snap("Dune", "", 0)))
		m := NewManager(fast, nil, newRecordingStore(), time.Second)

		saved := m.Resolve("Dune", Saved{Token: "pos(3/3)"})
		assert.Equal(t, "pos(3/3)", saved.Token)
	})

	t.Run("missing legacy database is not an error", func(t *testing.T) {
		legacy := NewLegacyTier(filepath.Join(t.TempDir(), "nope.db"))
		m := NewManager(NewFastTier(), legacy, newRecordingStore(), time.Second)

		saved := m.Resolve("Dune", Saved{})
		assert.Empty(t, saved.Token)
	})
}

func TestTrack(t *testing.T) {
	t.Run("fast tier is written synchronously", func(t *testing.T) {
		m := NewManager(NewFastTier(), nil, newRecordingStore(), time.Hour)

		m.Track(snap("Dune", "pos(1/5)", 10))
		saved, ok := m.Fast().ReadProgress("Dune")
		require.True(t, ok)
		assert.Equal(t, "pos(1/5)", saved.Token)
	})

	t.Run("burst of events produces exactly one trailing authoritative write", func(t *testing.T) {
		store := newRecordingStore()
		m := NewManager(NewFastTier(), nil, store, 50*time.Millisecond)

		for i := 0; i < 10; i++ {
			m.Track(snap("Dune", fmt.Sprintf("pos(1/%d)", i), float64(i)))
		}
		assert.Zero(t, store.writeCount(), "no write before the quiet period")

		assert.Eventually(t, func() bool {
			return store.writeCount() == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, "pos(1/9)", store.lastWrite().Token)

		// Quiescence after the trailing write schedules nothing further.
		time.Sleep(120 * time.Millisecond)
		assert.Equal(t, 1, store.writeCount())
	})

	t.Run("documents debounce independently", func(t *testing.T) {
		store := newRecordingStore()
		m := NewManager(NewFastTier(), nil, store, 30*time.Millisecond)

		m.Track(snap("Dune", "pos(1/1)", 1))
		m.Track(snap("Emma", "pos(2/2)", 2))

		assert.Eventually(t, func() bool {
			return store.writeCount() == 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("authoritative failure is non-fatal and retried on next event", func(t *testing.T) {
		store := newRecordingStore()
		store.fail = true
		m := NewManager(NewFastTier(), nil, store, 20*time.Millisecond)

		m.Track(snap("Dune", "pos(1/1)", 1))
		time.Sleep(80 * time.Millisecond)
		assert.Zero(t, store.writeCount())

		store.mu.Lock()
		store.fail = false
		store.mu.Unlock()
		m.Track(snap("Dune", "pos(1/2)", 2))
		assert.Eventually(t, func() bool {
			return store.writeCount() == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, "pos(1/2)", store.lastWrite().Token)
	})
}

func TestCloseDocument(t *testing.T) {
	t.Run("cancels the pending write without flushing", func(t *testing.T) {
		store := newRecordingStore()
		m := NewManager(NewFastTier(), nil, store, 50*time.Millisecond)

		m.Track(snap("Dune", "pos(1/5)", 10))
		require.Equal(t, 1, m.PendingWrites())
		m.CloseDocument("Dune")

		assert.Zero(t, m.PendingWrites())
		time.Sleep(120 * time.Millisecond)
		assert.Zero(t, store.writeCount())

		// The fast tier keeps the last record.
		saved, ok := m.Fast().ReadProgress("Dune")
		require.True(t, ok)
		assert.Equal(t, "pos(1/5)", saved.Token)
	})

	t.Run("closing one document leaves others scheduled", func(t *testing.T) {
		store := newRecordingStore()
		m := NewManager(NewFastTier(), nil, store, 30*time.Millisecond)

		m.Track(snap("Dune", "pos(1/1)", 1))
		m.Track(snap("Emma", "pos(2/2)", 2))
		m.CloseDocument("Dune")

		assert.Eventually(t, func() bool {
			return store.writeCount() == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, "pos(2/2)", store.lastWrite().Token)
	})
}
