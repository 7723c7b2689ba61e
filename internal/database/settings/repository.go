// Package settings provides database operations for application settings.
package settings

import (
	"gorm.io/gorm"

	"github.com/pagemark/reader/internal/entities"
)

// Well-known setting keys.
const (
	KeyTheme        = "theme"
	KeyFontSize     = "font_size"
	KeyPasswordHash = "auth_password_hash"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Set creates or updates a setting.
func (r *Repository) Set(key, value string) error {
	var setting entities.Setting
	result := r.db.Where("key = ?", key).First(&setting)

	if result.Error == gorm.ErrRecordNotFound {
		setting = entities.Setting{Key: key, Value: value}
		return r.db.Create(&setting).Error
	} else if result.Error != nil {
		return result.Error
	}

	setting.Value = value
	return r.db.Save(&setting).Error
}

func (r *Repository) Delete(key string) error {
	return r.db.Where("key = ?", key).Delete(&entities.Setting{}).Error
}

func (r *Repository) All() ([]entities.Setting, error) {
	var settings []entities.Setting
	err := r.db.Find(&settings).Error
	return settings, err
}
