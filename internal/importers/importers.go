// Package importers handles the common ingestion workflow for book files:
// store → hash → deduplicate → register.
//
// Every ingestion path (HTTP upload, watch folder, CLI) funnels through the
// same pipeline so duplicate detection and metadata extraction behave
// identically regardless of how a file arrives.
package importers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/entities"
	"github.com/pagemark/reader/internal/storage"
)

// Result describes the outcome of one import.
type Result struct {
	Book    *entities.Book
	Created bool // false when the file matched an existing book by content hash
}

// Pipeline ingests book files into the library and catalog.
type Pipeline struct {
	books   *books.Repository
	library *storage.Library
}

func NewPipeline(booksRepo *books.Repository, library *storage.Library) *Pipeline {
	return &Pipeline{books: booksRepo, library: library}
}

// Import stores the content and registers a catalog entry. Files whose
// content hash matches an existing book are not re-imported.
func (p *Pipeline) Import(filename string, content io.Reader) (Result, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read import content: %w", err)
	}

	hash, err := p.library.Save(filename, bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}

	if existing, err := p.books.GetByFileHash(hash); err == nil {
		return Result{Book: existing, Created: false}, nil
	}

	title, author := extractMetadata(filename, data)
	book, err := p.books.Create(&entities.Book{
		Title:    title,
		Author:   author,
		Filename: filepath.Base(filename),
		FileHash: hash,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to register %s: %w", filename, err)
	}
	return Result{Book: book, Created: true}, nil
}

// ImportFile ingests a file from disk, for the watch folder and the CLI.
func (p *Pipeline) ImportFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return p.Import(filepath.Base(path), f)
}

// extractMetadata derives title and author. The first heading line wins as
// the title; otherwise the filename is split on the "Author - Title"
// convention, falling back to the bare filename.
func extractMetadata(filename string, data []byte) (title, author string) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(line[2:])
		}
		break
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if parts := strings.SplitN(base, " - ", 2); len(parts) == 2 {
		author = strings.TrimSpace(parts[0])
		if title == "" {
			title = strings.TrimSpace(parts[1])
		}
	}
	if title == "" {
		title = base
	}
	return title, author
}
