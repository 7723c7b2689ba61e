package auth

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database/settings"
)

var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrNoPasswordSet = errors.New("no password configured")
)

// Service handles the single-user password. The bcrypt hash lives in the
// settings table; there is no user table because the reader serves exactly
// one person.
type Service struct {
	settings *settings.Repository
	config   config.Auth
}

func NewService(settingsRepo *settings.Repository, cfg config.Auth) *Service {
	return &Service{settings: settingsRepo, config: cfg}
}

// Enabled reports whether requests must be authenticated.
func (s *Service) Enabled() bool {
	return s.config.Mode == config.AuthModeLocal
}

func (s *Service) Mode() config.AuthMode {
	return s.config.Mode
}

// HasPassword reports whether a password has been set up.
func (s *Service) HasPassword() (bool, error) {
	_, err := s.settings.Get(settings.KeyPasswordHash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetPassword hashes and stores the password, replacing any previous one.
func (s *Service) SetPassword(password string) error {
	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.settings.Set(settings.KeyPasswordHash, hash); err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

// Authenticate validates the password against the stored hash.
func (s *Service) Authenticate(password string) error {
	setting, err := s.settings.Get(settings.KeyPasswordHash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoPasswordSet
	}
	if err != nil {
		return fmt.Errorf("failed to load password hash: %w", err)
	}
	return CheckPassword(password, setting.Value)
}

// ChangePassword verifies the old password before storing the new one.
func (s *Service) ChangePassword(oldPassword, newPassword string) error {
	if err := s.Authenticate(oldPassword); err != nil {
		return err
	}
	return s.SetPassword(newPassword)
}
