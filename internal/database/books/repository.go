// Package books provides database operations for the book library,
// including the authoritative reading-progress records.
package books

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/tiers"
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Repository is the durable progress store behind the tier manager.
var _ tiers.AuthoritativeStore = (*Repository)(nil)

func (r *Repository) Name() string { return "authoritative" }

// Create adds a book, or returns the existing record when the title is
// already in the library (titles are unique, matching import semantics).
func (r *Repository) Create(book *entities.Book) (*entities.Book, error) {
	var existing entities.Book
	err := r.db.Where("title = ?", book.Title).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := r.db.Create(book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	return book, nil
}

func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetByTitle(title string) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Where("title = ?", title).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetByFileHash(hash string) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Where("file_hash = ?", hash).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) GetAll() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("created_at DESC").Find(&books).Error
	return books, err
}

func (r *Repository) Delete(id uint) error {
	if err := r.db.Where("book_id = ?", id).Delete(&entities.Highlight{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("book_id = ?", id).Delete(&entities.Bookmark{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&entities.Book{}, id).Error
}

// ReadProgress returns the stored reading position for the book titled
// documentID.
func (r *Repository) ReadProgress(documentID string) (tiers.Saved, bool) {
	book, err := r.GetByTitle(documentID)
	if err != nil {
		return tiers.Saved{}, false
	}
	return tiers.Saved{Token: book.LastToken, Percent: book.LastPercent}, true
}

// WriteProgress persists the reading position for the book titled
// documentID.
func (r *Repository) WriteProgress(documentID, token string, percent float64) error {
	result := r.db.Model(&entities.Book{}).
		Where("title = ?", documentID).
		Updates(map[string]interface{}{
			"last_token":   token,
			"last_percent": percent,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to write progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no book titled %q", documentID)
	}
	return nil
}

// UpdateLocations caches the serialized locations index snapshot so the
// next open of this book skips the async rebuild.
func (r *Repository) UpdateLocations(id uint, locationsData string) error {
	return r.db.Model(&entities.Book{}).
		Where("id = ?", id).
		Update("locations_data", locationsData).Error
}

func (r *Repository) UpdateCover(id uint, cover string) error {
	return r.db.Model(&entities.Book{}).
		Where("id = ?", id).
		Update("cover", cover).Error
}
