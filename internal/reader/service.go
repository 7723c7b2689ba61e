package reader

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/pagemark/reader/internal/config"
	"github.com/pagemark/reader/internal/database/books"
	"github.com/pagemark/reader/internal/database/highlights"
	"github.com/pagemark/reader/internal/engine/textengine"
	"github.com/pagemark/reader/internal/storage"
	"github.com/pagemark/reader/internal/tiers"
)

// Service opens books into sessions and tracks the live ones.
type Service struct {
	booksRepo      *books.Repository
	highlightsRepo *highlights.Repository
	library        *storage.Library
	tierMgr        *tiers.Manager
	cfg            config.Reader

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewService(
	booksRepo *books.Repository,
	highlightsRepo *highlights.Repository,
	library *storage.Library,
	tierMgr *tiers.Manager,
	cfg config.Reader,
) *Service {
	return &Service{
		booksRepo:      booksRepo,
		highlightsRepo: highlightsRepo,
		library:        library,
		tierMgr:        tierMgr,
		cfg:            cfg,
		sessions:       make(map[uuid.UUID]*Session),
	}
}

// OpenBook loads the stored file, spins up an engine for it and opens a
// session at the last saved position. Stored highlights are drawn before
// the session is handed out.
func (s *Service) OpenBook(ctx context.Context, bookID uint) (*Session, error) {
	book, err := s.booksRepo.GetByID(bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", bookID, err)
	}

	content, err := s.library.ReadAll(book.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read book file %s: %w", book.Filename, err)
	}

	id := book.ID
	sess, err := Open(ctx, s.tierMgr, s.cfg, OpenParams{
		DocumentID:        book.Title,
		Engine:            textengine.New(book.Title, string(content), 0),
		LocationsSnapshot: []byte(book.LocationsData),
		CallerSaved:       tiers.Saved{Token: book.LastToken, Percent: book.LastPercent},
		OnIndexBuilt: func(serialized []byte) {
			if err := s.booksRepo.UpdateLocations(id, string(serialized)); err != nil {
				log.Printf("failed to cache locations for book %d: %v", id, err)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if hs, err := s.highlightsRepo.GetForBook(book.ID); err == nil {
		sess.SyncHighlights(hs)
	} else {
		log.Printf("failed to load highlights for book %d: %v", book.ID, err)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Get returns a live session by id.
func (s *Service) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// ForDocument returns the live sessions showing the given document.
func (s *Service) ForDocument(documentID string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.DocumentID == documentID {
			out = append(out, sess)
		}
	}
	return out
}

// Close tears one session down and forgets it.
func (s *Service) Close(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// CloseAll shuts every live session down, for server shutdown.
func (s *Service) CloseAll() {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range live {
		sess.Close()
	}
}
