package entities

import (
	"time"
)

// HighlightColor values match the palette offered by the reading surface.
const DefaultHighlightColor = "#facc15"

// Book is a document in the library. LastToken and LastPercent hold the
// authoritative reading position; LocationsData caches the serialized
// position index snapshot so the next open can skip the async rebuild.
type Book struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"uniqueIndex;size:512" json:"title"`
	Author        string    `gorm:"index;size:256" json:"author,omitempty"`
	Filename      string    `gorm:"size:1024" json:"filename"`
	FileHash      string    `gorm:"index;size:64" json:"file_hash,omitempty"`
	Cover         string    `gorm:"size:2048" json:"cover,omitempty"`
	LastToken     string    `gorm:"size:2048" json:"last_token"`
	LastPercent   float64   `json:"last_percent"`
	LocationsData string    `gorm:"type:text" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Highlight is an annotated passage. RangeToken is the engine-issued
// position-range token addressing the highlighted span; it is stored
// verbatim and never parsed.
type Highlight struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BookID     uint      `gorm:"index" json:"book_id"`
	RangeToken string    `gorm:"size:2048" json:"range_token"`
	Text       string    `gorm:"type:text" json:"text"`
	Color      string    `gorm:"size:16" json:"color"`
	Notes      string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Bookmark marks a single point in a book with a user-supplied label.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"index" json:"book_id"`
	Token     string    `gorm:"size:2048" json:"token"`
	Label     string    `gorm:"size:256" json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is a key-value application setting.
type Setting struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Key   string `gorm:"uniqueIndex;size:128" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (Setting) TableName() string {
	return "settings"
}
