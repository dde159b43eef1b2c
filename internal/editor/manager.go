package editor

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/archdiagram/pkg/errors"
	"github.com/matzehuels/archdiagram/pkg/pipeline"
	"github.com/matzehuels/archdiagram/pkg/sample"
	"github.com/matzehuels/archdiagram/pkg/session"
)

// DefaultIdleTimeout is how long a session may go unused before eviction.
const DefaultIdleTimeout = 30 * time.Minute

// Manager owns the open sessions of an editor server.
type Manager struct {
	runner *pipeline.Runner
	cfg    Config
	idle   time.Duration
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager. A non-positive idle timeout uses
// [DefaultIdleTimeout].
func NewManager(runner *pipeline.Runner, cfg Config, idle time.Duration) (*Manager, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{
		runner:   runner,
		cfg:      cfg,
		idle:     idle,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Create opens a session on source, or on the embedded sample when source
// is empty, and runs the pipeline once. A failing document still yields a
// session; its first event reports the failure. A valid split is applied
// before the first run, as read from the client's cookie.
func (m *Manager) Create(ctx context.Context, source []byte, split session.Split) (*Session, error) {
	if len(source) == 0 {
		doc, err := sample.Load()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "load sample document")
		}
		source = doc
	}

	s, err := NewSession(session.GenerateID(), m.runner, m.cfg)
	if err != nil {
		return nil, err
	}
	if split.Validate() == nil {
		s.mu.Lock()
		s.split = split
		s.mu.Unlock()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, errors.New(errors.ErrCodeInternal, "editor is shutting down")
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if err := s.Load(ctx, source); err != nil {
		m.logger.Debug("session created with failing document", "session", s.ID(), "error", err)
	}
	m.logger.Info("session created", "session", s.ID())
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	return s, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	s.Close()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict closes sessions idle since before now minus the idle timeout and
// that have no subscribers. It returns the number evicted.
func (m *Manager) Evict(now time.Time) int {
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) && s.events.len() == 0 {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
		m.logger.Debug("session evicted", "session", s.ID())
	}
	return len(stale)
}

// Run evicts idle sessions periodically until ctx is done, then closes
// every session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case now := <-ticker.C:
			if n := m.Evict(now); n > 0 {
				m.logger.Info("evicted idle sessions", "count", n)
			}
			if m.cfg.Store != nil {
				if err := m.cfg.Store.Cleanup(ctx); err != nil {
					m.logger.Warn("preference cleanup failed", "error", err)
				}
			}
		}
	}
}

// Close closes all sessions. Later calls to Create fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
