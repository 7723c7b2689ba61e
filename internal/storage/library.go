// Package storage keeps imported book files and cover images on disk.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pagemark/reader/internal/utils"
)

// Library is the on-disk home of imported books.
type Library struct {
	dir string
}

func NewLibrary(dir string) (*Library, error) {
	if err := os.MkdirAll(filepath.Join(dir, "books"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "covers"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers dir: %w", err)
	}
	return &Library{dir: dir}, nil
}

// Save stores book content under filename and returns the content hash used
// for duplicate detection.
func (l *Library) Save(filename string, content io.Reader) (hash string, err error) {
	filename = sanitize(filename)
	path := filepath.Join(l.dir, "books", filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", filename, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), content); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Open returns the stored content of a book file.
func (l *Library) Open(filename string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(l.dir, "books", sanitize(filename)))
}

// ReadAll returns the whole content of a book file.
func (l *Library) ReadAll(filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.dir, "books", sanitize(filename)))
}

func (l *Library) Remove(filename string) error {
	path := filepath.Join(l.dir, "books", sanitize(filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveCover stores a cover image keyed by book filename.
func (l *Library) SaveCover(filename string, content io.Reader) (string, error) {
	name := sanitize(filename) + ".cover"
	path := filepath.Join(l.dir, "covers", name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, content); err != nil {
		os.Remove(path)
		return "", err
	}
	return name, nil
}

func (l *Library) CoverPath(name string) string {
	return filepath.Join(l.dir, "covers", sanitize(name))
}

// Filenames lists stored book files, for maintenance pruning.
func (l *Library) Filenames() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.dir, "books"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func sanitize(filename string) string {
	return utils.SanitizeFilename(filename)
}
