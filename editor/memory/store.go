// Package memory keeps editing sessions in process with a TTL.
package memory

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyp0633/recuredit/editor"
	"github.com/samber/mo"
)

// entry is a stored session snapshot
type entry struct {
	data       []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// Store implements editor.SessionStore in memory.
// Sessions are stored encoded, so callers never share state with the store.
type Store struct {
	entries         map[string]*entry
	mutex           sync.Mutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
	logger          *slog.Logger
}

// Config holds configuration for the session store
type Config struct {
	TTL             time.Duration // How long an untouched session stays valid
	MaxEntries      int           // Maximum number of sessions before eviction
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultConfig provides sensible defaults for interactive editing
var DefaultConfig = Config{
	TTL:             time.Hour,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a session store and starts its cleanup goroutine
func New(config Config, opts ...Option) *Store {
	s := &Store{
		entries:         make(map[string]*entry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	}

	return s
}

// Get returns the session if it exists and hasn't expired. Reading a session
// extends its lifetime.
func (s *Store) Get(_ context.Context, id string) (mo.Option[*editor.Session], error) {
	s.mutex.Lock()
	e, exists := s.entries[id]
	if !exists {
		s.mutex.Unlock()
		return mo.None[*editor.Session](), nil
	}

	now := s.now()
	if now.After(e.expiresAt) {
		delete(s.entries, id)
		s.mutex.Unlock()
		return mo.None[*editor.Session](), nil
	}
	e.accessedAt = now
	e.expiresAt = now.Add(s.ttl)
	data := e.data
	s.mutex.Unlock()

	session, err := editor.DecodeSession(data)
	if err != nil {
		return mo.None[*editor.Session](), err
	}
	return mo.Some(session), nil
}

// Put stores a session snapshot
func (s *Store) Put(_ context.Context, session *editor.Session) error {
	data, err := editor.EncodeSession(session)
	if err != nil {
		return err
	}
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[session.ID] = &entry{
		data:       data,
		expiresAt:  now.Add(s.ttl),
		accessedAt: now,
	}

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.cleanup()
	}
	return nil
}

// Delete removes a session; deleting a missing session is not an error
func (s *Store) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, id)
	return nil
}

// cleanup removes expired entries and least recently accessed entries over the limit
func (s *Store) cleanup() {
	now := s.now()

	expired := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			expired++
		}
	}

	evicted := 0
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		type idAccess struct {
			id         string
			accessedAt time.Time
		}

		byAccess := make([]idAccess, 0, len(s.entries))
		for id, e := range s.entries {
			byAccess = append(byAccess, idAccess{id: id, accessedAt: e.accessedAt})
		}
		slices.SortFunc(byAccess, func(a, b idAccess) int {
			return a.accessedAt.Compare(b.accessedAt)
		})

		evicted = len(s.entries) - s.maxEntries
		for _, ia := range byAccess[:evicted] {
			delete(s.entries, ia.id)
		}
	}

	if expired > 0 || evicted > 0 {
		s.logger.Debug("cleaned up sessions",
			"expired", expired,
			"evicted", evicted,
			"remaining", len(s.entries))
	}
}

// cleanupLoop runs periodic cleanup
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mutex.Lock()
			s.cleanup()
			s.mutex.Unlock()
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and drops every session
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	s.mutex.Lock()
	s.entries = make(map[string]*entry)
	s.mutex.Unlock()
}

// Stats returns store statistics
func (s *Store) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := len(s.entries)
	expired := 0
	now := s.now()

	for _, e := range s.entries {
		if now.After(e.expiresAt) {
			expired++
		}
	}

	return Stats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		ActiveEntries:  total - expired,
	}
}

// Stats provides information about stored sessions
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
