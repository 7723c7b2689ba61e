// Package textengine is a deterministic rendering engine over plain-text
// books. It exists so the reading subsystem has a concrete engine to drive
// locally and in tests; real installations may swap in any engine honouring
// the same port.
//
// Sections are split on markdown-style heading lines ("# " and "## "), and
// each section is paginated at a fixed character count. Tokens have the form
// "pos(section/offset)"; only this package ever looks inside them.
package textengine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pagemark/reader/internal/engine"
)

const defaultPageSize = 512

type section struct {
	heading string
	level   int // 1 for "#", 2 for "##", 0 for unheaded front matter
	runes   []rune
	start   int // absolute rune offset of the section start
}

type position struct {
	sec int
	off int
}

// Engine implements engine.Engine for plain-text content.
type Engine struct {
	mu        sync.Mutex
	title     string
	sections  []section
	pageSize  int
	total     int // total rune count
	current   position
	displayed bool
	locations []position
	interval  int
	overlays  map[string]engine.OverlayStyle
	events    chan engine.PositionEvent
	closed    bool
}

var _ engine.Engine = (*Engine)(nil)

// New builds an engine over the given text. pageSize <= 0 selects the
// default page size.
func New(title, text string, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	e := &Engine{
		title:    title,
		pageSize: pageSize,
		overlays: make(map[string]engine.OverlayStyle),
		events:   make(chan engine.PositionEvent, 16),
	}
	e.split(text)
	return e
}

func (e *Engine) split(text string) {
	lines := strings.Split(text, "\n")
	cur := section{}
	flush := func() {
		if len(cur.runes) > 0 || cur.heading != "" {
			e.sections = append(e.sections, cur)
		}
	}
	for _, line := range lines {
		level := 0
		heading := ""
		if strings.HasPrefix(line, "## ") {
			level, heading = 2, strings.TrimSpace(line[3:])
		} else if strings.HasPrefix(line, "# ") {
			level, heading = 1, strings.TrimSpace(line[2:])
		}
		if level > 0 {
			flush()
			cur = section{heading: heading, level: level}
			continue
		}
		cur.runes = append(cur.runes, []rune(line+"\n")...)
	}
	flush()
	if len(e.sections) == 0 {
		e.sections = []section{{}}
	}
	abs := 0
	for i := range e.sections {
		e.sections[i].start = abs
		abs += e.sectionLen(i)
	}
	e.total = abs
	if e.total == 0 {
		e.total = 1
	}
}

// sectionLen counts a section as at least one rune so empty sections remain
// addressable.
func (e *Engine) sectionLen(i int) int {
	if n := len(e.sections[i].runes); n > 0 {
		return n
	}
	return 1
}

func token(p position) string {
	return fmt.Sprintf("pos(%d/%d)", p.sec, p.off)
}

func (e *Engine) parseToken(tok string) (position, error) {
	var p position
	if _, err := fmt.Sscanf(tok, "pos(%d/%d)", &p.sec, &p.off); err != nil {
		return position{}, fmt.Errorf("malformed token %q", tok)
	}
	if p.sec < 0 || p.sec >= len(e.sections) {
		return position{}, fmt.Errorf("token %q outside document", tok)
	}
	if p.off < 0 || p.off >= e.sectionLen(p.sec) {
		return position{}, fmt.Errorf("token %q outside section", tok)
	}
	return p, nil
}

func (e *Engine) abs(p position) int {
	return e.sections[p.sec].start + p.off
}

func (e *Engine) locate(abs int) position {
	for i := len(e.sections) - 1; i >= 0; i-- {
		if abs >= e.sections[i].start {
			off := abs - e.sections[i].start
			if max := e.sectionLen(i) - 1; off > max {
				off = max
			}
			return position{sec: i, off: off}
		}
	}
	return position{}
}

// Display renders at token, or at the document start when token is empty.
func (e *Engine) Display(ctx context.Context, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := position{}
	if tok != "" {
		var err error
		if p, err = e.parseToken(tok); err != nil {
			return err
		}
	}
	e.current = p
	e.displayed = true
	e.emitLocked()
	return nil
}

func (e *Engine) JumpTo(tok string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.displayed {
		return fmt.Errorf("jump before display")
	}
	p, err := e.parseToken(tok)
	if err != nil {
		return err
	}
	e.current = p
	e.emitLocked()
	return nil
}

func (e *Engine) emitLocked() {
	if e.closed {
		return
	}
	secLen := e.sectionLen(e.current.sec)
	pages := (secLen + e.pageSize - 1) / e.pageSize
	if pages == 0 {
		pages = 1
	}
	ev := engine.PositionEvent{
		Token:         token(e.current),
		NativePercent: float64(e.current.off) / float64(secLen) * 100,
		PageInSection: e.current.off/e.pageSize + 1,
		SectionPages:  pages,
	}
	select {
	case e.events <- ev:
	default:
		// Drop when the consumer is not keeping up; the next event carries
		// fresher state anyway.
	}
}

type serializedIndex struct {
	Interval int      `json:"interval"`
	Tokens   []string `json:"tokens"`
}

// BuildIndex walks the document at interval-sized steps and returns the
// serialized locations index. It does not install the index; call LoadIndex
// with the result.
func (e *Engine) BuildIndex(ctx context.Context, interval int) ([]byte, error) {
	if interval <= 0 {
		interval = defaultPageSize
	}
	e.mu.Lock()
	total := e.total
	e.mu.Unlock()

	idx := serializedIndex{Interval: interval}
	for abs := 0; abs < total; abs += interval {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.mu.Lock()
		idx.Tokens = append(idx.Tokens, token(e.locate(abs)))
		e.mu.Unlock()
	}
	// Always index the final position so 100% resolves to the document end.
	e.mu.Lock()
	last := token(e.locate(total - 1))
	e.mu.Unlock()
	if len(idx.Tokens) == 0 || idx.Tokens[len(idx.Tokens)-1] != last {
		idx.Tokens = append(idx.Tokens, last)
	}
	return json.Marshal(idx)
}

// LoadIndex installs a serialized locations index. Every token must resolve
// inside the current document or the whole snapshot is rejected.
func (e *Engine) LoadIndex(serialized []byte) error {
	var idx serializedIndex
	if err := json.Unmarshal(serialized, &idx); err != nil {
		return fmt.Errorf("unparseable index snapshot: %w", err)
	}
	if len(idx.Tokens) < 2 {
		return fmt.Errorf("index snapshot has %d locations, need at least 2", len(idx.Tokens))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	locs := make([]position, 0, len(idx.Tokens))
	for _, tok := range idx.Tokens {
		p, err := e.parseToken(tok)
		if err != nil {
			return fmt.Errorf("index snapshot: %w", err)
		}
		locs = append(locs, p)
	}
	e.locations = locs
	e.interval = idx.Interval
	return nil
}

func (e *Engine) PercentFromToken(tok string) (float64, error) {
	ord, err := e.OrdinalFromToken(tok)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	n := len(e.locations)
	e.mu.Unlock()
	return float64(ord) / float64(n-1) * 100, nil
}

func (e *Engine) TokenFromPercent(pct float64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.locations) == 0 {
		return "", fmt.Errorf("locations index not loaded")
	}
	pct = math.Max(0, math.Min(100, pct))
	ord := int(math.Round(pct / 100 * float64(len(e.locations)-1)))
	return token(e.locations[ord]), nil
}

// OrdinalFromToken returns the index of the last location at or before the
// token's position.
func (e *Engine) OrdinalFromToken(tok string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.locations) == 0 {
		return 0, fmt.Errorf("locations index not loaded")
	}
	p, err := e.parseToken(tok)
	if err != nil {
		return 0, err
	}
	abs := e.abs(p)
	ord := 0
	for i, loc := range e.locations {
		if e.abs(loc) <= abs {
			ord = i
		}
	}
	return ord, nil
}

func (e *Engine) TotalOrdinals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locations)
}

// ApplyOverlay validates that the range token addresses this document and
// records the overlay. Range tokens use the point-token wrapper with one or
// two positions in the body, e.g. "pos(1/10)" or "pos(1/10-1/42)".
func (e *Engine) ApplyOverlay(tok string, style engine.OverlayStyle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkRangeToken(tok); err != nil {
		return err
	}
	e.overlays[tok] = style
	return nil
}

func (e *Engine) RemoveOverlay(tok string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.overlays[tok]; !ok {
		return fmt.Errorf("overlay %q not applied", tok)
	}
	delete(e.overlays, tok)
	return nil
}

// Overlays returns the tokens currently drawn, for tests and debugging.
func (e *Engine) Overlays() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	toks := make([]string, 0, len(e.overlays))
	for tok := range e.overlays {
		toks = append(toks, tok)
	}
	return toks
}

func (e *Engine) checkRangeToken(tok string) error {
	var a, b position
	if _, err := fmt.Sscanf(tok, "pos(%d/%d-%d/%d)", &a.sec, &a.off, &b.sec, &b.off); err == nil {
		if _, err := e.parseToken(token(a)); err != nil {
			return err
		}
		_, err := e.parseToken(token(b))
		return err
	}
	_, err := e.parseToken(tok)
	return err
}

// TOC returns the heading structure: top-level "#" sections with their "##"
// children nested beneath.
func (e *Engine) TOC() []engine.TOCEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	var toc []engine.TOCEntry
	for i, s := range e.sections {
		if s.heading == "" {
			continue
		}
		entry := engine.TOCEntry{
			Label: s.heading,
			Token: token(position{sec: i}),
			Href:  fmt.Sprintf("sec-%d", i),
		}
		if s.level == 2 && len(toc) > 0 {
			parent := &toc[len(toc)-1]
			parent.Children = append(parent.Children, entry)
			continue
		}
		toc = append(toc, entry)
	}
	return toc
}

func (e *Engine) Events() <-chan engine.PositionEvent {
	return e.events
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.events)
	return nil
}
