// Package overlay keeps the highlight overlays drawn on the rendering
// surface consistent with the desired highlight set.
package overlay

import (
	"log"

	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
)

// Diff computes the minimal operations turning applied into the desired
// set: highlights to apply (desired but not applied) and tokens to remove
// (applied but not desired). The two are independent and order-insensitive.
func Diff(desired []entities.Highlight, applied map[string]struct{}) (toApply []entities.Highlight, toRemove []string) {
	want := make(map[string]struct{}, len(desired))
	for _, h := range desired {
		want[h.RangeToken] = struct{}{}
		if _, ok := applied[h.RangeToken]; !ok {
			toApply = append(toApply, h)
		}
	}
	for token := range applied {
		if _, ok := want[token]; !ok {
			toRemove = append(toRemove, token)
		}
	}
	return toApply, toRemove
}

// Manager owns the applied overlay set for one document session. The set is
// transient: it is cleared wholesale on close, never migrated.
type Manager struct {
	eng     engine.Engine
	applied map[string]struct{}
}

func NewManager(eng engine.Engine) *Manager {
	return &Manager{eng: eng, applied: make(map[string]struct{})}
}

// Sync reconciles the surface with the desired highlight set. A failure on
// one overlay is logged and does not abort the rest; the applied set only
// records operations that succeeded. Calling Sync twice with the same
// desired set performs no work the second time.
func (m *Manager) Sync(desired []entities.Highlight) (applied, removed int) {
	toApply, toRemove := Diff(desired, m.applied)

	for _, h := range toApply {
		style := engine.OverlayStyle{Color: h.Color, Kind: "highlight"}
		if style.Color == "" {
			style.Color = entities.DefaultHighlightColor
		}
		if err := m.eng.ApplyOverlay(h.RangeToken, style); err != nil {
			log.Printf("overlay apply %q failed: %v", h.RangeToken, err)
			continue
		}
		m.applied[h.RangeToken] = struct{}{}
		applied++
	}

	for _, token := range toRemove {
		if err := m.eng.RemoveOverlay(token); err != nil {
			log.Printf("overlay remove %q failed: %v", token, err)
			continue
		}
		delete(m.applied, token)
		removed++
	}
	return applied, removed
}

// Applied returns the tokens currently recorded as drawn.
func (m *Manager) Applied() []string {
	tokens := make([]string, 0, len(m.applied))
	for token := range m.applied {
		tokens = append(tokens, token)
	}
	return tokens
}

// Clear forgets the applied set without touching the surface. Used on
// document close, when the surface is discarded anyway.
func (m *Manager) Clear() {
	m.applied = make(map[string]struct{})
}
