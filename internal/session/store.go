// Package session tracks which messenger users are signed in as which
// clients. Sessions live in memory and optionally expire after a
// configurable idle period.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/halroad/progressbot/internal/tabular"
)

var (
	// ErrCodeNotFound means the auth code matched no client.
	ErrCodeNotFound = errors.New("session: auth code not found")
	// ErrNotAuthenticated means the user has no active session.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// Session binds a messenger user to an authenticated client.
type Session struct {
	UserID          int64
	ClientID        string
	ClientCode      string
	ClientName      string
	AuthenticatedAt time.Time
	LastSeen        time.Time
}

// Store is an in-memory session registry. A zero TTL keeps sessions
// alive until an explicit logout.
type Store struct {
	provider tabular.Provider
	ttl      time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[int64]*Session

	now func() time.Time
}

// NewStore creates a Store over the given client register.
func NewStore(provider tabular.Provider, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		provider: provider,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Authenticate looks up the auth code in the client register and, on a
// match, opens (or replaces) the user's session.
func (s *Store) Authenticate(ctx context.Context, userID int64, code string) (Session, error) {
	client, err := s.provider.FindClientByAuthCode(ctx, code)
	if errors.Is(err, tabular.ErrNotFound) {
		return Session{}, ErrCodeNotFound
	}
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	sess := &Session{
		UserID:          userID,
		ClientID:        client.ID,
		ClientCode:      client.Code,
		ClientName:      client.Name,
		AuthenticatedAt: now,
		LastSeen:        now,
	}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()

	s.logger.Info("session opened", "user_id", userID, "client_id", client.ID)
	return *sess, nil
}

// Current returns the user's session and refreshes its idle timer.
func (s *Store) Current(userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNotAuthenticated
	}
	if s.expired(sess) {
		delete(s.sessions, userID)
		return Session{}, ErrNotAuthenticated
	}
	sess.LastSeen = s.now()
	return *sess, nil
}

// Logout removes the user's session. It reports whether a session
// existed.
func (s *Store) Logout(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	s.logger.Info("session closed", "user_id", userID)
	return true
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastSeen) > s.ttl
}

// Run sweeps expired sessions until ctx is cancelled. It returns
// immediately when expiry is disabled.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, userID)
			s.logger.Debug("session expired", "user_id", userID)
		}
	}
}
