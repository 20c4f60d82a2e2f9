package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"missionboard/internal/fanout"
	"missionboard/internal/models"
)

// Storage persists the single current session.
type Storage interface {
	PutSession(models.Session) error
	GetSession() (models.Session, error)
	DeleteSession() error
}

// Authenticator exchanges credentials for a session payload.
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (models.Session, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.Session, error)
}

// Listener is called after every identity change with the new session,
// or nil after logout.
type Listener func(*models.Session)

// Store is the source of truth for who is logged in.
type Store struct {
	storage   Storage
	session   *models.Session
	listeners fanout.Hub[*models.Session]
	mu        sync.RWMutex
}

func New(storage Storage) *Store {
	return &Store{storage: storage}
}

// Load restores the persisted session. A missing session is not an error.
func (s *Store) Load() error {
	stored, err := s.storage.GetSession()
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.set(nil)
		return nil
	case err != nil:
		s.set(nil)
		return fmt.Errorf("failed to load session: %w", err)
	}

	s.set(&stored)
	return nil
}

func (s *Store) Login(ctx context.Context, auth Authenticator, req models.LoginRequest) error {
	session, err := auth.Login(ctx, req)
	if err != nil {
		return err
	}
	return s.Replace(session)
}

func (s *Store) Register(ctx context.Context, auth Authenticator, req models.RegisterRequest) error {
	session, err := auth.Register(ctx, req)
	if err != nil {
		return err
	}
	return s.Replace(session)
}

// Replace installs a new session, persists it and notifies listeners.
func (s *Store) Replace(session models.Session) error {
	if session.Token == "" {
		return models.ErrNoSession
	}
	if err := s.storage.PutSession(session); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.set(&session)
	return nil
}

// Logout forgets the session locally. Listeners are notified even if
// the persisted copy could not be removed.
func (s *Store) Logout() error {
	err := s.storage.DeleteSession()
	if err != nil {
		slog.Error("failed to delete persisted session", "error", err)
	}
	s.set(nil)
	return err
}

// SetAvatarURL updates the avatar of the current session.
func (s *Store) SetAvatarURL(url string) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return models.ErrNoSession
	}
	updated := *s.session
	updated.AvatarURL = url
	s.mu.Unlock()

	return s.Replace(updated)
}

func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return models.Session{}, false
	}
	return *s.session, true
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *Store) UserID() (int64, bool) {
	session, ok := s.Current()
	if !ok {
		return 0, false
	}
	return session.UserID()
}

// Subscribe registers a lifecycle listener. The returned function
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	return s.listeners.Subscribe(fn)
}

// set swaps the session and notifies listeners outside the lock.
// Listeners receive a copy, never the stored pointer.
func (s *Store) set(session *models.Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if session == nil {
		s.listeners.Publish(nil)
		return
	}
	snapshot := *session
	s.listeners.Publish(&snapshot)
}
