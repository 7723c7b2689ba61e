package progress

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/reader/locations"
)

// pctEngine is a stub engine whose tokens encode their own global
// percentage, giving tests exact control over the index mapping.
type pctEngine struct {
	loaded bool
}

func (e *pctEngine) Display(ctx context.Context, token string) error { return nil }
func (e *pctEngine) JumpTo(token string) error                       { return nil }
func (e *pctEngine) BuildIndex(ctx context.Context, interval int) ([]byte, error) {
	return []byte("{}"), nil
}
func (e *pctEngine) LoadIndex(serialized []byte) error { e.loaded = true; return nil }
func (e *pctEngine) PercentFromToken(token string) (float64, error) {
	var pct float64
	if _, err := fmt.Sscanf(token, "pct(%f)", &pct); err != nil {
		return 0, fmt.Errorf("unresolvable token %q", token)
	}
	return pct, nil
}
func (e *pctEngine) TokenFromPercent(pct float64) (string, error) {
	return fmt.Sprintf("pct(%v)", pct), nil
}
func (e *pctEngine) OrdinalFromToken(token string) (int, error) {
	pct, err := e.PercentFromToken(token)
	return int(pct), err
}
func (e *pctEngine) TotalOrdinals() int                                        { return 101 }
func (e *pctEngine) ApplyOverlay(token string, style engine.OverlayStyle) error { return nil }
func (e *pctEngine) RemoveOverlay(token string) error                           { return nil }
func (e *pctEngine) TOC() []engine.TOCEntry                                     { return nil }
func (e *pctEngine) Events() <-chan engine.PositionEvent                        { return nil }
func (e *pctEngine) Close() error                                               { return nil }

func readyMapper(t *testing.T, ticks []entities.ChapterTick) *Mapper {
	t.Helper()
	idx := locations.New(&pctEngine{})
	require.NoError(t, idx.Restore([]byte("{}")))
	m := NewMapper(idx, DefaultMatchEpsilon)
	m.SetTicks(ticks, nil)
	return m
}

func TestTuple(t *testing.T) {
	t.Run("chapter relative percent within active tick span", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{
			{Percent: 0, Label: "Ch1"},
			{Percent: 50, Label: "Ch2"},
		})

		tuple := m.Tuple(engine.PositionEvent{Token: "pct(60)"})
		assert.Equal(t, "Ch2", tuple.ChapterLabel)
		assert.InDelta(t, 20.0, tuple.ChapterPercent, 1e-9)
		assert.InDelta(t, 60.0, tuple.GlobalPercent, 1e-9)
	})

	t.Run("page ordinals come from the index when ready", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{{Percent: 0, Label: "Ch1"}})

		tuple := m.Tuple(engine.PositionEvent{Token: "pct(42)", PageInSection: 3, SectionPages: 9})
		assert.Equal(t, 43, tuple.PageOrdinal) // ordinal + 1
		assert.Equal(t, 101, tuple.TotalPages)
	})

	t.Run("position slightly before a tick still matches it", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{
			{Percent: 0, Label: "Ch1"},
			{Percent: 50, Label: "Ch2"},
		})

		tuple := m.Tuple(engine.PositionEvent{Token: "pct(49.96)"})
		assert.Equal(t, "Ch2", tuple.ChapterLabel)
		assert.Equal(t, 0.0, tuple.ChapterPercent) // clamped at the chapter start
	})

	t.Run("no qualifying tick rounds global and matches toc directly", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{{Percent: 80, Label: "Late"}})
		m.SetTicks(m.Ticks(), []engine.TOCEntry{{Label: "Preface", Token: "pct(10.4)"}})

		tuple := m.Tuple(engine.PositionEvent{Token: "pct(10.4)"})
		assert.Equal(t, 10.0, tuple.ChapterPercent)
		assert.Equal(t, "Preface", tuple.ChapterLabel)
	})

	t.Run("index not ready degrades to native counters", func(t *testing.T) {
		idx := locations.New(&pctEngine{})
		m := NewMapper(idx, DefaultMatchEpsilon)

		tuple := m.Tuple(engine.PositionEvent{
			Token:         "pct(60)",
			NativePercent: 33.3,
			PageInSection: 2,
			SectionPages:  7,
		})
		assert.Empty(t, tuple.ChapterLabel)
		assert.InDelta(t, 33.3, tuple.GlobalPercent, 1e-9)
		assert.InDelta(t, 33.3, tuple.ChapterPercent, 1e-9)
		assert.Equal(t, 2, tuple.PageOrdinal)
		assert.Equal(t, 7, tuple.TotalPages)
	})
}

func TestTargetGlobal(t *testing.T) {
	t.Run("maps chapter relative value into the active tick span", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{
			{Percent: 0, Label: "Ch1"},
			{Percent: 50, Label: "Ch2"},
		})

		assert.InDelta(t, 75.0, m.TargetGlobal(50, 60), 1e-9)  // Ch2 spans 50..100
		assert.InDelta(t, 12.5, m.TargetGlobal(25, 10), 1e-9)  // Ch1 spans 0..50
		assert.InDelta(t, 100.0, m.TargetGlobal(100, 60), 1e-9)
	})

	t.Run("without ticks the value is the global percentage", func(t *testing.T) {
		m := readyMapper(t, nil)
		assert.InDelta(t, 37.0, m.TargetGlobal(37, 90), 1e-9)
	})

	t.Run("value is clamped to the valid range", func(t *testing.T) {
		m := readyMapper(t, nil)
		assert.InDelta(t, 0.0, m.TargetGlobal(-10, 0), 1e-9)
		assert.InDelta(t, 100.0, m.TargetGlobal(140, 0), 1e-9)
	})
}

func TestTokenForChapterRelative(t *testing.T) {
	t.Run("resolves through the index", func(t *testing.T) {
		m := readyMapper(t, []entities.ChapterTick{
			{Percent: 0, Label: "Ch1"},
			{Percent: 50, Label: "Ch2"},
		})

		token, ok := m.TokenForChapterRelative(50, 60)
		require.True(t, ok)
		assert.Equal(t, "pct(75)", token)
	})

	t.Run("not ready reports failure", func(t *testing.T) {
		idx := locations.New(&pctEngine{})
		m := NewMapper(idx, DefaultMatchEpsilon)
		_, ok := m.TokenForChapterRelative(50, 60)
		assert.False(t, ok)
	})
}
