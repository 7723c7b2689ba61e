// Package bookmarks provides database operations for labelled positions.
package bookmarks

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pagemark/reader/internal/entities"
)

// Repository handles all bookmark database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(b *entities.Bookmark) (*entities.Bookmark, error) {
	if err := r.db.Create(b).Error; err != nil {
		return nil, fmt.Errorf("failed to create bookmark: %w", err)
	}
	return b, nil
}

func (r *Repository) GetForBook(bookID uint) ([]entities.Bookmark, error) {
	var bs []entities.Bookmark
	err := r.db.Where("book_id = ?", bookID).Order("created_at DESC").Find(&bs).Error
	return bs, err
}

func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.Bookmark{}, id).Error
}
