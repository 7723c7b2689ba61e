package entities

import "time"

// ProgressSnapshot is the authoritative record of "where the user is" for a
// single document, produced on every position-changed event.
type ProgressSnapshot struct {
	DocumentID     string    `json:"document_id"`
	Token          string    `json:"token"`
	GlobalPercent  float64   `json:"global_percent"`
	ChapterPercent float64   `json:"chapter_percent"`
	PageOrdinal    int       `json:"page_ordinal"`
	TotalPages     int       `json:"total_pages"`
	Timestamp      time.Time `json:"timestamp"`
}

// ChapterTick is a table-of-contents entry projected onto the global
// percentage axis. Tick lists are sorted ascending and deduplicated.
type ChapterTick struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}

// DisplayTuple is what the UI layer shows for the current position.
type DisplayTuple struct {
	ChapterLabel   string  `json:"chapter_label"`
	ChapterPercent float64 `json:"chapter_percent"`
	GlobalPercent  float64 `json:"global_percent"`
	PageOrdinal    int     `json:"page_ordinal"`
	TotalPages     int     `json:"total_pages"`
}
