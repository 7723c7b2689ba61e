package tiers

import (
	"log"
	"sync"
	"time"

	"github.com/pagemark/reader/internal/entities"
)

// AuthoritativeStore is the durable external store for reading progress.
type AuthoritativeStore interface {
	Name() string
	ReadProgress(documentID string) (Saved, bool)
	WriteProgress(documentID, token string, percent float64) error
}

// Manager implements the per-document write policy: synchronous best-effort
// fast-tier writes on every event, and a trailing debounced authoritative
// write after a quiet period. At most one debounce task is pending per
// document; closing a document cancels its task without a final flush.
type Manager struct {
	fast  *FastTier
	chain []Reader
	auth  AuthoritativeStore
	quiet time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewManager builds the tier manager. legacy may be nil when no legacy
// database is configured.
func NewManager(fast *FastTier, legacy *LegacyTier, auth AuthoritativeStore, quiet time.Duration) *Manager {
	chain := []Reader{fast}
	if legacy != nil {
		chain = append(chain, legacy)
	}
	return &Manager{
		fast:    fast,
		chain:   chain,
		auth:    auth,
		quiet:   quiet,
		pending: make(map[string]*time.Timer),
	}
}

func (m *Manager) Fast() *FastTier { return m.fast }

// Resolve implements open-time reconciliation: fast tier, then legacy tier,
// then the caller-supplied authoritative value. First non-empty token wins.
func (m *Manager) Resolve(documentID string, callerSupplied Saved) Saved {
	return Resolve(documentID, callerSupplied, m.chain...)
}

// Track records a position-changed event. The fast-tier write happens now;
// the authoritative write is scheduled for after quiet period of silence,
// restarting on every new event so bursts collapse into one trailing write.
func (m *Manager) Track(snap entities.ProgressSnapshot) {
	if err := m.fast.Write(snap); err != nil {
		// Non-fatal: the debounced authoritative write still covers us.
		log.Printf("fast tier write for %q failed: %v", snap.DocumentID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.pending[snap.DocumentID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(m.quiet, func() {
		m.mu.Lock()
		if m.pending[snap.DocumentID] != timer {
			// Replaced by a newer event or cancelled by close.
			m.mu.Unlock()
			return
		}
		delete(m.pending, snap.DocumentID)
		m.mu.Unlock()

		if err := m.auth.WriteProgress(snap.DocumentID, snap.Token, snap.GlobalPercent); err != nil {
			// Logged and dropped; the next position change schedules a
			// fresh write with fresher state.
			log.Printf("authoritative write for %q failed: %v", snap.DocumentID, err)
		}
	})
	m.pending[snap.DocumentID] = timer
}

// CloseDocument cancels any pending authoritative write for the document.
// No flush happens here: the last fast-tier write remains the most recent
// record.
func (m *Manager) CloseDocument(documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.pending[documentID]; ok {
		t.Stop()
		delete(m.pending, documentID)
	}
}

// PendingWrites reports how many documents have a debounce task scheduled.
func (m *Manager) PendingWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
