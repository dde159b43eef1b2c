// Package session stores editor preferences.
//
// The only persisted state is the two-pane split between the text editor and
// the diagram panel, plus the last selected perspective. The split is kept
// client-side in a cookie (see [WriteCookie] and [ReadCookie]) and, when the
// server runs with a session backend, in a [Store] keyed by editor session id:
//   - [MemoryStore]: in process, for a single server
//   - [FileStore]: JSON files, for the CLI and single-host servers
//   - [RedisStore]: shared between server replicas
//
// Diagrams themselves are never persisted.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session holds the preferences of one editor session.
type Session struct {
	ID          string    `json:"id"`
	Split       Split     `json:"split"`
	Perspective string    `json:"perspective,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch extends the expiry to ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}

// Store is the interface for preference storage backends.
type Store interface {
	// Get retrieves a session by ID. It returns nil, nil if the session
	// doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, s *Session) error

	// Delete removes a session. Missing sessions are not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions. It is a no-op for Redis.
	Cleanup(ctx context.Context) error

	Close() error
}

// DefaultTTL is how long an idle session's preferences are kept.
const DefaultTTL = 30 * 24 * time.Hour

// GenerateID returns a random session ID in canonical UUID form.
func GenerateID() string {
	return uuid.NewString()
}

// New creates a session with the default split.
func New(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        GenerateID(),
		Split:     DefaultSplit,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
