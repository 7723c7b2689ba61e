// Package exporters renders a book's annotations as markdown, so notes
// taken in the reader can travel to plain-text note systems.
package exporters

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pagemark/reader/internal/entities"
)

type ExportResult struct {
	HighlightsExported int `json:"highlights_exported"`
	BookmarksExported  int `json:"bookmarks_exported"`
}

// MarkdownExporter writes one book per document with a frontmatter block,
// a highlights section and a bookmarks section.
type MarkdownExporter struct {
	now func() time.Time
}

func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{now: time.Now}
}

func (e *MarkdownExporter) Export(w io.Writer, book *entities.Book, highlights []entities.Highlight, bookmarks []entities.Bookmark) (ExportResult, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "content_type: book_annotations\n")
	fmt.Fprintf(&b, "created_at: %s\n", e.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "title: %s\n", book.Title)
	if book.Author != "" {
		fmt.Fprintf(&b, "author: %s\n", book.Author)
	}
	fmt.Fprintf(&b, "progress: %.1f%%\n", book.LastPercent)
	fmt.Fprintf(&b, "---\n\n")

	fmt.Fprintf(&b, "# %s\n", book.Title)

	if len(highlights) > 0 {
		fmt.Fprintf(&b, "\n## Highlights\n")
		for _, h := range highlights {
			fmt.Fprintf(&b, "\n> %s\n", blockquote(h.Text))
			if h.Notes != "" {
				fmt.Fprintf(&b, "\n%s\n", h.Notes)
			}
		}
	}

	if len(bookmarks) > 0 {
		fmt.Fprintf(&b, "\n## Bookmarks\n\n")
		for _, bm := range bookmarks {
			label := bm.Label
			if label == "" {
				label = bm.Token
			}
			fmt.Fprintf(&b, "- %s\n", label)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return ExportResult{}, fmt.Errorf("failed to write export for %s: %w", book.Title, err)
	}
	return ExportResult{
		HighlightsExported: len(highlights),
		BookmarksExported:  len(bookmarks),
	}, nil
}

// blockquote keeps multi-line highlight text inside a single quote block.
func blockquote(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n> ")
}
