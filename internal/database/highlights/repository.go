// Package highlights provides database operations for annotations.
package highlights

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pagemark/reader/internal/entities"
)

// Repository handles all highlight database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(h *entities.Highlight) (*entities.Highlight, error) {
	if h.Color == "" {
		h.Color = entities.DefaultHighlightColor
	}
	if err := r.db.Create(h).Error; err != nil {
		return nil, fmt.Errorf("failed to create highlight: %w", err)
	}
	return h, nil
}

func (r *Repository) GetByID(id uint) (*entities.Highlight, error) {
	var h entities.Highlight
	if err := r.db.First(&h, id).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// GetForBook returns the desired highlight set for a book, newest first.
func (r *Repository) GetForBook(bookID uint) ([]entities.Highlight, error) {
	var hs []entities.Highlight
	err := r.db.Where("book_id = ?", bookID).Order("created_at DESC").Find(&hs).Error
	return hs, err
}

func (r *Repository) GetAll() ([]entities.Highlight, error) {
	var hs []entities.Highlight
	err := r.db.Order("created_at DESC").Find(&hs).Error
	return hs, err
}

func (r *Repository) UpdateNotes(id uint, notes string) error {
	result := r.db.Model(&entities.Highlight{}).Where("id = ?", id).Update("notes", notes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.Highlight{}, id).Error
}
