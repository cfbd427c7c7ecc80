package headless

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/passmap/internal/engine"
	"github.com/mohammed-shakir/passmap/internal/filter/expr"
)

var (
	ErrClosed          = errors.New("view closed")
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrInvalidViewport = errors.New("invalid viewport")
)

// World is the default viewport.
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// View is one viewer's map: a layer over a TileSet, a viewport and a filter.
// It implements engine.Engine.
type View struct {
	layer  string
	logger *slog.Logger

	mu     sync.RWMutex
	tiles  *TileSet
	bound  orb.Bound
	filter expr.Expr
	closed bool

	lmu       sync.Mutex
	listeners map[engine.Event]map[engine.ListenerID]func()
	nextID    engine.ListenerID
}

var _ engine.Engine = (*View)(nil)

type ViewOption func(*View)

func WithViewLogger(l *slog.Logger) ViewOption {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

func NewView(layer string, tiles *TileSet, opts ...ViewOption) *View {
	v := &View{
		layer:     layer,
		logger:    slog.Default(),
		tiles:     tiles,
		bound:     World,
		filter:    expr.All(),
		listeners: map[engine.Event]map[engine.ListenerID]func(){},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

func (v *View) Layer() string { return v.layer }

func (v *View) Viewport() orb.Bound {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bound
}

// SetViewport moves the map and fires moveend.
func (v *View) SetViewport(b orb.Bound) error {
	if err := ValidateBound(b); err != nil {
		return err
	}
	if !v.update(func() { v.bound = b }) {
		return ErrClosed
	}
	v.fire(engine.EventMoveEnd)
	return nil
}

// SetFilter replaces the layer filter and fires sourcedata.
func (v *View) SetFilter(e expr.Expr) {
	if e == nil {
		e = expr.All()
	}
	if v.update(func() { v.filter = e }) {
		v.fire(engine.EventSourceData)
	}
}

// SetTiles swaps the underlying data and fires sourcedata.
func (v *View) SetTiles(ts *TileSet) {
	if v.update(func() { v.tiles = ts }) {
		v.fire(engine.EventSourceData)
	}
}

func (v *View) update(apply func()) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	apply()
	return true
}

// QueryRenderedFeatures returns every fragment of layer drawn in the viewport
// that passes the filter. Returned property maps are shared and read-only.
func (v *View) QueryRenderedFeatures(ctx context.Context, layer string) ([]engine.Feature, error) {
	if layer != v.layer {
		return nil, fmt.Errorf("%w %q", ErrUnknownLayer, layer)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}
	if v.tiles == nil {
		// source not loaded yet; the browser returns nothing as well
		return nil, nil
	}

	var out []engine.Feature
	for i, f := range v.tiles.fragments {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !v.bound.Contains(f.at) {
			continue
		}
		if !v.filter.Eval(f.props) {
			continue
		}
		out = append(out, engine.Feature{Properties: f.props})
	}
	return out, nil
}

func (v *View) On(ev engine.Event, fn func()) engine.ListenerID {
	v.lmu.Lock()
	defer v.lmu.Unlock()
	v.nextID++
	id := v.nextID
	if v.listeners[ev] == nil {
		v.listeners[ev] = map[engine.ListenerID]func(){}
	}
	v.listeners[ev][id] = fn
	return id
}

func (v *View) Off(ev engine.Event, id engine.ListenerID) {
	v.lmu.Lock()
	defer v.lmu.Unlock()
	delete(v.listeners[ev], id)
}

func (v *View) fire(ev engine.Event) {
	v.lmu.Lock()
	fns := make([]func(), 0, len(v.listeners[ev]))
	for _, fn := range v.listeners[ev] {
		fns = append(fns, fn)
	}
	v.lmu.Unlock()
	v.logger.Debug("engine event", "event", string(ev), "listeners", len(fns))
	for _, fn := range fns {
		fn()
	}
}

// Close detaches every listener; later queries fail with ErrClosed.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()

	v.lmu.Lock()
	v.listeners = map[engine.Event]map[engine.ListenerID]func(){}
	v.lmu.Unlock()
}

// ValidateBound accepts lon/lat bounds with min <= max inside the world.
func ValidateBound(b orb.Bound) error {
	switch {
	case b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1]:
		return fmt.Errorf("%w: min must not exceed max", ErrInvalidViewport)
	case b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90:
		return fmt.Errorf("%w: outside lon/lat range", ErrInvalidViewport)
	}
	return nil
}
