package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/passmap/internal/core/observability"
	"github.com/mohammed-shakir/passmap/internal/filter"
)

// Registry holds the live sessions. The least recently used session is
// closed once the registry is full.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	// apply orders dataset application: a session created during a
	// broadcast sees either the old dataset followed by the new one or only
	// the new one.
	apply sync.Mutex

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
	data     Dataset
}

func NewRegistry(size int, cfg Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 1024
	}
	r := &Registry{cfg: cfg, logger: logger}
	c, err := lru.NewWithEvict[string, *Session](size, func(id string, s *Session) {
		s.Close()
		r.logger.Debug("session evicted", "session_id", id)
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	r.sessions = c
	return r, nil
}

// Create starts a session preloaded with the latest dataset.
func (r *Registry) Create() (*Session, error) {
	s := New(uuid.NewString(), r.cfg, r.logger)

	r.apply.Lock()
	defer r.apply.Unlock()

	r.mu.Lock()
	data := r.data
	r.mu.Unlock()
	if err := s.Apply(data); err != nil {
		r.logger.Warn("new session rejected current dataset", "session_id", s.ID(), "err", err)
	}

	r.mu.Lock()
	r.sessions.Add(s.ID(), s)
	n := r.sessions.Len()
	r.mu.Unlock()
	observability.SetSessionsActive(n)
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Get(id)
}

// Delete closes and removes a session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	ok := r.sessions.Remove(id)
	n := r.sessions.Len()
	r.mu.Unlock()
	observability.SetSessionsActive(n)
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}

// Dataset reports what new sessions will be loaded with.
func (r *Registry) Dataset() Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Broadcast records d for future sessions and applies it to every live one.
// Invalid metadata or catalog is rejected before anything changes.
func (r *Registry) Broadcast(d Dataset) error {
	if d.Metadata != nil {
		if err := d.Metadata.Validate(); err != nil {
			return fmt.Errorf("broadcast metadata: %w", err)
		}
	}
	if err := filter.ValidateCatalog(d.Catalog); err != nil {
		return fmt.Errorf("broadcast catalog: %w", err)
	}

	r.apply.Lock()
	defer r.apply.Unlock()

	r.mu.Lock()
	if d.Metadata != nil {
		r.data.Metadata = d.Metadata
	}
	if d.Catalog != nil {
		r.data.Catalog = d.Catalog
	}
	if d.Tiles != nil {
		r.data.Tiles = d.Tiles
	}
	live := r.sessions.Values()
	r.mu.Unlock()

	var errs []error
	for _, s := range live {
		if err := s.Apply(d); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
	r.logger.Info("dataset broadcast", "sessions", len(live))
	return errors.Join(errs...)
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	r.sessions.Purge()
	r.mu.Unlock()
	observability.SetSessionsActive(0)
}
