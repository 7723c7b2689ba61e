// Package engine defines the boundary to the rendering/layout engine.
//
// The engine owns pagination and position addressing. Position tokens it
// issues are opaque: this codebase compares them for equality, validates
// their wrapper syntax, and otherwise passes them back unchanged.
package engine

import (
	"context"
	"regexp"
)

// PositionEvent is emitted by the engine whenever the visible position
// changes. NativePercent and the page counters are section-relative values
// the engine can produce without a locations index.
type PositionEvent struct {
	Token         string
	NativePercent float64
	PageInSection int
	SectionPages  int
}

// TOCEntry is one (possibly nested) table-of-contents entry.
type TOCEntry struct {
	Label    string
	Token    string
	Href     string
	Children []TOCEntry
}

// OverlayStyle describes how a highlight overlay is drawn.
type OverlayStyle struct {
	Color string
	Kind  string // "highlight", "underline"
}

// Engine is the rendering/layout capability consumed as a black box.
//
// BuildIndex walks the document at roughly interval-sized content steps and
// returns a serialized locations index; LoadIndex restores one. The
// percentage/ordinal queries are only meaningful after one of the two has
// succeeded.
type Engine interface {
	// Display renders the document at token, or at the start when token is
	// empty. It must be called before any other navigation.
	Display(ctx context.Context, token string) error

	// JumpTo navigates to token and emits a position event.
	JumpTo(token string) error

	BuildIndex(ctx context.Context, interval int) ([]byte, error)
	LoadIndex(serialized []byte) error
	PercentFromToken(token string) (float64, error)
	TokenFromPercent(pct float64) (string, error)
	OrdinalFromToken(token string) (int, error)
	TotalOrdinals() int

	ApplyOverlay(token string, style OverlayStyle) error
	RemoveOverlay(token string) error

	TOC() []TOCEntry

	// Events delivers position-changed events in emission order. The channel
	// is closed by Close.
	Events() <-chan PositionEvent

	Close() error
}

// tokenShape matches the wrapper syntax of engine-issued tokens, e.g.
// "epubcfi(/6/14!/4/2/14)" or "pos(3/120)". The body is never interpreted.
var tokenShape = regexp.MustCompile(`^[a-z][a-z0-9]*\(.+\)$`)

// ValidToken reports whether a saved token is well-formed enough to hand
// back to the engine. Anything else triggers the start-of-document fallback.
func ValidToken(token string) bool {
	return token != "" && tokenShape.MatchString(token)
}
