// Package session ties one viewer's filter store, map view and pass
// aggregator together, and keeps the live sessions of the service.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/passmap/internal/engine"
	"github.com/mohammed-shakir/passmap/internal/engine/headless"
	"github.com/mohammed-shakir/passmap/internal/filter"
	"github.com/mohammed-shakir/passmap/internal/passes"
)

type Config struct {
	Layer        string
	Debounce     time.Duration
	InitialDelay time.Duration
	Passes       passes.Options
}

// Dataset is what the loader produced. Nil fields are left as they are.
type Dataset struct {
	Metadata *filter.Metadata
	Catalog  []filter.Satellite
	Tiles    *headless.TileSet
}

type Session struct {
	id      string
	created time.Time
	logger  *slog.Logger

	store  *filter.Store
	view   *headless.View
	handle *engine.Handle
	agg    *passes.Aggregator
	unsub  func()

	closeOnce sync.Once
}

func New(id string, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	lg := logger.With("session_id", id)
	s := &Session{
		id:      id,
		created: time.Now(),
		logger:  lg,
		store:   filter.New(filter.WithLogger(lg)),
		view:    headless.NewView(cfg.Layer, nil, headless.WithViewLogger(lg)),
		handle:  engine.NewHandle(),
	}
	s.agg = passes.NewAggregator(s.handle, passes.Config{
		Layer:        cfg.Layer,
		Debounce:     cfg.Debounce,
		InitialDelay: cfg.InitialDelay,
		Options:      cfg.Passes,
		Logger:       lg,
	})
	s.view.SetFilter(s.store.Expression())
	// listeners run under the store's notify lock; only push into the view
	s.unsub = s.store.Subscribe(func(st filter.State) {
		s.view.SetFilter(st.Expression)
	})
	s.agg.Start()
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Created() time.Time   { return s.created }
func (s *Session) Store() *filter.Store { return s.store }
func (s *Session) View() *headless.View { return s.view }

func (s *Session) Passes() passes.Result { return s.agg.Snapshot() }

func (s *Session) Summary() string { return s.agg.Summary() }

// Aggregator is exposed for callers that need a synchronous recompute.
func (s *Session) Aggregator() *passes.Aggregator { return s.agg }

// Apply loads d into the session. The map becomes available to the
// aggregator once tiles are present.
func (s *Session) Apply(d Dataset) error {
	var errs []error
	if d.Metadata != nil {
		if err := s.store.SetMetadata(*d.Metadata); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Catalog != nil {
		if err := s.store.SetCatalog(d.Catalog); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Tiles != nil {
		s.view.SetTiles(d.Tiles)
		s.handle.Resolve(s.view)
	}
	return errors.Join(errs...)
}

// Close stops the aggregator and detaches from the store and the view.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsub()
		s.agg.Close()
		s.view.Close()
		s.logger.Debug("session closed", "age", time.Since(s.created).String())
	})
}
