package passes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/passmap/internal/core/observability"
	"github.com/mohammed-shakir/passmap/internal/debounce"
	"github.com/mohammed-shakir/passmap/internal/engine"
)

const (
	DefaultDebounce     = 300 * time.Millisecond
	DefaultInitialDelay = time.Second
)

type Config struct {
	Layer        string
	Debounce     time.Duration
	InitialDelay time.Duration
	Options      Options
	Logger       *slog.Logger
	// OnUpdate is called after every publish, outside the aggregator's locks.
	// It may be nil.
	OnUpdate func(Result)
}

// Aggregator keeps the visible passes of one engine current. It attaches to
// the engine once the handle resolves and recomputes on moveend and
// sourcedata, debounced.
type Aggregator struct {
	handle *engine.Handle
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	res       Result
	seq       uint64
	published uint64

	life     sync.Mutex
	started  bool
	closed   bool
	eng      engine.Engine
	attached []attachment
	deb      *debounce.Debouncer
	initial  *time.Timer
	done     chan struct{}
}

type attachment struct {
	ev engine.Event
	id engine.ListenerID
}

func NewAggregator(h *engine.Handle, cfg Config) *Aggregator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	cfg.Options = cfg.Options.withDefaults()
	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		handle: h,
		cfg:    cfg,
		logger: lg.With("layer", cfg.Layer),
		ctx:    ctx,
		cancel: cancel,
		res:    unknown(),
		done:   make(chan struct{}),
	}
	a.deb = debounce.New(cfg.Debounce, a.recomputeAsync)
	return a
}

// Start waits for the engine in the background and attaches exactly once.
func (a *Aggregator) Start() {
	a.life.Lock()
	defer a.life.Unlock()
	if a.started || a.closed {
		return
	}
	a.started = true
	go func() {
		defer close(a.done)
		eng, err := a.handle.Wait(a.ctx)
		if err != nil {
			a.logger.Debug("aggregator stopped before engine was ready", "err", err)
			return
		}
		a.attach(eng)
	}()
}

func (a *Aggregator) attach(eng engine.Engine) {
	a.life.Lock()
	defer a.life.Unlock()
	if a.closed || a.eng != nil {
		return
	}
	a.eng = eng
	for _, ev := range []engine.Event{engine.EventMoveEnd, engine.EventSourceData} {
		a.attached = append(a.attached, attachment{ev: ev, id: eng.On(ev, a.deb.Trigger)})
	}
	// the layer may not have data yet when the listeners go on
	a.initial = time.AfterFunc(a.cfg.InitialDelay, a.recomputeAsync)
	a.logger.Debug("aggregator attached")
}

// Recompute queries the engine now and publishes the outcome.
func (a *Aggregator) Recompute(ctx context.Context) Result {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.mu.Unlock()

	res, outcome := a.query(ctx)
	if ctx.Err() != nil {
		// the caller gave up; what was published stays
		observability.ObserveViewport("cancelled", 0, 0)
		return a.Snapshot()
	}
	observability.ObserveViewport(outcome, res.Rendered, len(res.Passes))

	a.mu.Lock()
	// a slower, older query must not overwrite a newer one
	if seq < a.published || a.isClosed() {
		cur := a.res.clone()
		a.mu.Unlock()
		return cur
	}
	a.published = seq
	a.res = res
	out := res.clone()
	a.mu.Unlock()

	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate(out.clone())
	}
	return out
}

func (a *Aggregator) recomputeAsync() {
	if a.ctx.Err() != nil {
		return
	}
	a.Recompute(a.ctx)
}

func (a *Aggregator) query(ctx context.Context) (Result, string) {
	eng, err := a.handle.Get()
	if err != nil {
		return unknown(), "unavailable"
	}
	features, err := eng.QueryRenderedFeatures(ctx, a.cfg.Layer)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Error("query rendered features", "err", err)
		}
		return unknown(), "error"
	}
	res := Aggregate(features, a.cfg.Options)
	switch {
	case res.Rendered == 0:
		return res, "empty"
	case res.Rendered > a.cfg.Options.Max:
		return res, "overflow"
	}
	return res, "ok"
}

// Snapshot returns the last published count and passes together.
func (a *Aggregator) Snapshot() Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.res.clone()
}

func (a *Aggregator) Summary() string {
	return a.SummaryOf(a.Snapshot())
}

// SummaryOf renders the summary line for a result already in hand, so the
// count and its text describe the same publish.
func (a *Aggregator) SummaryOf(r Result) string {
	return a.cfg.Options.Summary(r.Count)
}

func (a *Aggregator) isClosed() bool {
	return a.ctx.Err() != nil
}

// Close cancels pending work and detaches from the engine. Nothing is
// published afterwards.
func (a *Aggregator) Close() {
	a.life.Lock()
	if a.closed {
		a.life.Unlock()
		return
	}
	a.closed = true
	a.cancel()
	a.deb.Cancel()
	if a.initial != nil {
		a.initial.Stop()
	}
	if a.eng != nil {
		for _, at := range a.attached {
			a.eng.Off(at.ev, at.id)
		}
		a.attached = nil
	}
	started := a.started
	a.life.Unlock()

	if started {
		<-a.done
	}
}
