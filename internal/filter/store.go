package filter

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mohammed-shakir/passmap/internal/core/observability"
	"github.com/mohammed-shakir/passmap/internal/filter/expr"
)

// State is an immutable snapshot of the store. Maps and slices are copies.
type State struct {
	Metadata    *Metadata              `json:"metadata"`
	Selections  map[Dimension]string   `json:"selections"`
	TimeRange   *TimeRange             `json:"timeRange"`
	Options     map[Dimension][]Option `json:"options"`
	Expression  expr.Expr              `json:"mapFilter"`
	Fingerprint string                 `json:"fingerprint"`
}

type Listener func(State)

// Store is the single source of truth for one viewer's filter state. Every
// mutation recomputes the derived options and expression before returning.
type Store struct {
	// serializes mutation+notification so listeners observe states in order
	notifyMu sync.Mutex

	mu          sync.RWMutex
	logger      *slog.Logger
	meta        *Metadata
	catalog     []Satellite
	sel         selections
	tr          *TimeRange
	options     map[Dimension][]Option
	expression  expr.AllOf
	fingerprint string

	subMu     sync.Mutex
	listeners map[int]Listener
	nextID    int
}

type StoreOption func(*Store)

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...StoreOption) *Store {
	s := &Store{
		logger:    slog.Default(),
		sel:       defaultSelections(),
		listeners: map[int]Listener{},
	}
	for _, o := range opts {
		o(s)
	}
	s.recomputeLocked()
	return s
}

// Subscribe registers fn for every successful mutation. fn runs synchronously
// on the mutating goroutine and must not call back into the store's setters.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{
		Selections:  s.sel.clone(),
		Options:     make(map[Dimension][]Option, len(s.options)),
		Expression:  s.expression,
		Fingerprint: s.fingerprint,
	}
	if s.meta != nil {
		st.Metadata = s.meta.clone()
	}
	if s.tr != nil {
		tr := *s.tr
		st.TimeRange = &tr
	}
	for d, opts := range s.options {
		st.Options[d] = slices.Clone(opts)
	}
	return st
}

// Expression returns the current map filter.
func (s *Store) Expression() expr.Expr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expression
}

func (s *Store) Options(d Dimension) []Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.options[d])
}

// SetMetadata replaces the value domains wholesale. Malformed metadata is
// rejected and the previous state kept.
func (s *Store) SetMetadata(m Metadata) error {
	if err := m.Validate(); err != nil {
		return s.reject("metadata", err)
	}
	s.mutate("metadata", func() {
		s.meta = m.clone()
		if s.tr == nil {
			s.tr = &TimeRange{Start: m.MinTime, End: m.MaxTime}
		} else {
			tr := clampRange(*s.tr, s.meta)
			s.tr = &tr
		}
		// selections that fell out of the new domain go back to all
		for _, d := range dimensions {
			if v := s.sel[d]; v != AllValues && !slices.Contains(domain(s.meta, d), v) {
				s.sel[d] = AllValues
			}
		}
	})
	return nil
}

// SetCatalog replaces the satellite list used for cross-narrowing.
func (s *Store) SetCatalog(c []Satellite) error {
	if err := ValidateCatalog(c); err != nil {
		return s.reject("catalog", err)
	}
	s.mutate("catalog", func() {
		s.catalog = slices.Clone(c)
	})
	return nil
}

// SetTimeRange clamps into the metadata bounds when metadata is loaded.
func (s *Store) SetTimeRange(start, end int64) error {
	if start > end {
		return s.reject("time_range", &ValidationError{Field: "timeRange", Reason: "start after end"})
	}
	s.mutate("time_range", func() {
		tr := clampRange(TimeRange{Start: start, End: end}, s.meta)
		s.tr = &tr
	})
	return nil
}

// Set selects value on dimension d; value is AllValues or a member of d's domain.
func (s *Store) Set(d Dimension, value string) error {
	if _, ok := ParseDimension(string(d)); !ok {
		return s.reject("unknown", fmt.Errorf("%w: unknown dimension %q", ErrInvalidValue, d))
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if value != AllValues && !slices.Contains(domain(s.meta, d), value) {
		s.mu.Unlock()
		return s.reject(string(d), &InvalidValueError{Dimension: d, Value: value})
	}
	s.sel[d] = value
	st := s.commitLocked(string(d))
	s.mu.Unlock()

	s.notify(st)
	return nil
}

func (s *Store) SetConstellation(v string) error { return s.Set(Constellation, v) }
func (s *Store) SetOperator(v string) error      { return s.Set(Operator, v) }
func (s *Store) SetSensorType(v string) error    { return s.Set(SensorType, v) }
func (s *Store) SetResolution(v string) error    { return s.Set(Resolution, v) }
func (s *Store) SetDataAccess(v string) error    { return s.Set(DataAccess, v) }
func (s *Store) SetTasking(v string) error       { return s.Set(Tasking, v) }
func (s *Store) SetDaylight(v string) error      { return s.Set(Daylight, v) }

// ResetFilters returns every dimension to all. The time range is kept.
func (s *Store) ResetFilters() {
	s.mutate("reset", func() {
		s.sel = defaultSelections()
	})
}

// FilteredCatalog returns the catalog satellites matching every active selection.
func (s *Store) FilteredCatalog() []Satellite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Satellite
	for _, sat := range s.catalog {
		ok := true
		for _, d := range dimensions {
			if !sat.matches(d, s.sel[d]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, sat)
		}
	}
	return out
}

func (s *Store) mutate(kind string, apply func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	apply()
	st := s.commitLocked(kind)
	s.mu.Unlock()

	s.notify(st)
}

func (s *Store) commitLocked(kind string) State {
	s.recomputeLocked()
	observability.ObserveFilterMutation(kind, nil)
	return s.snapshotLocked()
}

func (s *Store) recomputeLocked() {
	start := time.Now()
	s.options = deriveOptions(s.meta, s.catalog, s.sel)
	s.expression = buildExpression(s.meta, s.tr, s.sel)
	fp, err := expr.Fingerprint(s.expression)
	if err != nil {
		// clauses are built from validated values only
		s.logger.Error("fingerprint map filter", "err", err)
	}
	s.fingerprint = fp
	observability.ObserveFilterRecompute(time.Since(start))
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.subMu.Unlock()
	for _, l := range ls {
		l(st)
	}
}

func (s *Store) reject(kind string, err error) error {
	observability.ObserveFilterMutation(kind, err)
	s.logger.Warn("filter update rejected", "kind", kind, "err", err)
	return err
}
