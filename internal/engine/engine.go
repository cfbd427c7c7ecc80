// Package engine is the contract between the pass aggregator and whatever
// draws the satellite paths.
package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned while no engine has been attached to a Handle.
var ErrUnavailable = errors.New("rendering engine unavailable")

type Event string

const (
	// EventMoveEnd fires once the viewport settles.
	EventMoveEnd Event = "moveend"
	// EventSourceData fires when the underlying features or their filter change.
	EventSourceData Event = "sourcedata"
)

type ListenerID uint64

// Feature is one rendered fragment. Properties holds the tile attributes.
type Feature struct {
	Properties map[string]any
}

type Engine interface {
	QueryRenderedFeatures(ctx context.Context, layer string) ([]Feature, error)
	On(ev Event, fn func()) ListenerID
	Off(ev Event, id ListenerID)
}

// Handle is resolved by the host once its engine exists.
type Handle struct {
	once  sync.Once
	ready chan struct{}
	eng   Engine
}

func NewHandle() *Handle {
	return &Handle{ready: make(chan struct{})}
}

// Resolve publishes e. Only the first call has an effect.
func (h *Handle) Resolve(e Engine) {
	h.once.Do(func() {
		h.eng = e
		close(h.ready)
	})
}

// Wait blocks until Resolve or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Engine, error) {
	select {
	case <-h.ready:
		return h.eng, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrUnavailable, ctx.Err())
	}
}

// Get returns the engine without blocking.
func (h *Handle) Get() (Engine, error) {
	select {
	case <-h.ready:
		return h.eng, nil
	default:
		return nil, ErrUnavailable
	}
}

// Ready is closed once the handle is resolved.
func (h *Handle) Ready() <-chan struct{} { return h.ready }
