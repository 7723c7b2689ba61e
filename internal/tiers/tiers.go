// Package tiers owns the persistence tiers for reading progress and the
// policy that arbitrates between them.
//
// Three ownership-distinct stores exist per document: a fast session-local
// tier written synchronously on every position change, a read-only legacy
// tier from pre-rewrite installations, and the durable authoritative tier
// written behind a debounce. Resolution on open is strict tier priority,
// never a merge.
package tiers

import "log"

// Saved is a tier's record of where the user left off.
type Saved struct {
	Token   string  `json:"token"`
	Percent float64 `json:"percent"`
}

// Reader is one step of the resolution chain.
type Reader interface {
	Name() string
	ReadProgress(documentID string) (Saved, bool)
}

// Resolve walks the chain in priority order and returns the first record
// with a non-empty token; fallback is the caller-supplied value loaded from
// the authoritative store at listing time.
func Resolve(documentID string, fallback Saved, chain ...Reader) Saved {
	for _, tier := range chain {
		saved, ok := tier.ReadProgress(documentID)
		if !ok || saved.Token == "" {
			continue
		}
		log.Printf("progress for %q resolved from %s tier", documentID, tier.Name())
		return saved
	}
	return fallback
}
