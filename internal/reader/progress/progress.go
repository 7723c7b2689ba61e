// Package progress maps position-changed events to the display tuple shown
// by the UI, and maps scrubber input back to document positions.
package progress

import (
	"math"
	"sync"

	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/reader/locations"
)

// DefaultMatchEpsilon is the slack used when matching the active chapter
// tick: the last tick at or below global+epsilon wins.
const DefaultMatchEpsilon = 0.05

// Mapper converts between global percentage, chapter-relative percentage and
// page ordinals for one open document. Ticks are replaced wholesale whenever
// the locations index is (re)built.
type Mapper struct {
	mu      sync.RWMutex
	idx     *locations.Index
	ticks   []entities.ChapterTick
	flatTOC []engine.TOCEntry
	epsilon float64
}

func NewMapper(idx *locations.Index, epsilon float64) *Mapper {
	if epsilon <= 0 {
		epsilon = DefaultMatchEpsilon
	}
	return &Mapper{idx: idx, epsilon: epsilon}
}

// SetTicks installs the chapter tick list and the flattened table of
// contents used for the direct-match label fallback.
func (m *Mapper) SetTicks(ticks []entities.ChapterTick, flatTOC []engine.TOCEntry) {
	m.mu.Lock()
	m.ticks = ticks
	m.flatTOC = flatTOC
	m.mu.Unlock()
}

func (m *Mapper) Ticks() []entities.ChapterTick {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ticks
}

// Tuple computes the display tuple for a position-changed event. With the
// index not ready it degrades to the engine's section-relative counters and
// attempts no chapter segmentation.
func (m *Mapper) Tuple(ev engine.PositionEvent) entities.DisplayTuple {
	global, ok := m.idx.PercentFromToken(ev.Token)
	if !ok {
		native := clamp(ev.NativePercent)
		return entities.DisplayTuple{
			ChapterPercent: native,
			GlobalPercent:  native,
			PageOrdinal:    ev.PageInSection,
			TotalPages:     ev.SectionPages,
		}
	}

	tuple := entities.DisplayTuple{GlobalPercent: global}
	if ord, ok := m.idx.OrdinalFromToken(ev.Token); ok {
		tuple.PageOrdinal = ord + 1
		tuple.TotalPages = m.idx.TotalOrdinals()
	} else {
		tuple.PageOrdinal = ev.PageInSection
		tuple.TotalPages = ev.SectionPages
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.activeTick(global); ok {
		start, end := m.tickSpan(i)
		tuple.ChapterLabel = m.ticks[i].Label
		if end > start {
			tuple.ChapterPercent = clamp((global - start) / (end - start) * 100)
		}
		return tuple
	}

	// No qualifying tick: round the global percentage and try a direct
	// match against the flattened table of contents.
	tuple.ChapterPercent = math.Round(global)
	for _, entry := range m.flatTOC {
		if entry.Token == ev.Token {
			tuple.ChapterLabel = entry.Label
			break
		}
	}
	return tuple
}

// TargetGlobal maps a chapter-relative scrubber value v in [0,100] to a
// global percentage, using the tick active at currentGlobal. Without an
// active tick v is already the global percentage.
func (m *Mapper) TargetGlobal(v, currentGlobal float64) float64 {
	v = clamp(v)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.activeTick(currentGlobal); ok {
		start, end := m.tickSpan(i)
		return start + v/100*(end-start)
	}
	return v
}

// TokenForChapterRelative resolves a scrubber value to a position token.
// ok is false while the index is not ready.
func (m *Mapper) TokenForChapterRelative(v, currentGlobal float64) (string, bool) {
	return m.idx.TokenFromPercent(m.TargetGlobal(v, currentGlobal))
}

// activeTick scans from the end for the last tick at or below
// global+epsilon. Callers hold m.mu.
func (m *Mapper) activeTick(global float64) (int, bool) {
	for i := len(m.ticks) - 1; i >= 0; i-- {
		if m.ticks[i].Percent <= global+m.epsilon {
			return i, true
		}
	}
	return 0, false
}

func (m *Mapper) tickSpan(i int) (start, end float64) {
	start = m.ticks[i].Percent
	end = 100
	if i+1 < len(m.ticks) {
		end = m.ticks[i+1].Percent
	}
	return start, end
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
