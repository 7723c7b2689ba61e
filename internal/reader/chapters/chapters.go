// Package chapters derives chapter-boundary ticks from a table of contents.
package chapters

import (
	"log"
	"sort"

	"github.com/pagemark/reader/internal/engine"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/reader/locations"
)

// DefaultEpsilon collapses adjacent ticks closer than this many percentage
// points, keeping the earlier one.
const DefaultEpsilon = 0.1

// Flatten linearizes a nested table of contents preserving document order.
func Flatten(toc []engine.TOCEntry) []engine.TOCEntry {
	var flat []engine.TOCEntry
	for _, entry := range toc {
		children := entry.Children
		entry.Children = nil
		flat = append(flat, entry)
		flat = append(flat, Flatten(children)...)
	}
	return flat
}

// Derive computes the sorted, deduplicated chapter tick list. Entries whose
// token cannot be resolved through the index are dropped with a warning.
// An empty table of contents yields an empty tick list and progress is
// reported as global-percentage-only.
func Derive(toc []engine.TOCEntry, idx *locations.Index, epsilon float64) []entities.ChapterTick {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	var ticks []entities.ChapterTick
	for _, entry := range Flatten(toc) {
		pct, ok := idx.PercentFromToken(entry.Token)
		if !ok {
			log.Printf("chapter tick: cannot resolve %q (%s), dropping", entry.Label, entry.Token)
			continue
		}
		ticks = append(ticks, entities.ChapterTick{Percent: pct, Label: entry.Label})
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Percent < ticks[j].Percent
	})

	// Collapse near-duplicates, keeping the first occurrence.
	deduped := ticks[:0]
	for _, tick := range ticks {
		if len(deduped) > 0 && tick.Percent-deduped[len(deduped)-1].Percent < epsilon {
			continue
		}
		deduped = append(deduped, tick)
	}
	return deduped
}
