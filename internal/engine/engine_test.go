package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type nopEngine struct{ name string }

func (nopEngine) QueryRenderedFeatures(context.Context, string) ([]Feature, error) { return nil, nil }
func (nopEngine) On(Event, func()) ListenerID                                    { return 0 }
func (nopEngine) Off(Event, ListenerID)                                          {}

func TestHandle_GetBeforeResolve(t *testing.T) {
	h := NewHandle()
	if _, err := h.Get(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestHandle_WaitTimesOut(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}

func TestHandle_ResolveUnblocksWaitersOnce(t *testing.T) {
	h := NewHandle()
	got := make(chan Engine, 1)
	go func() {
		e, err := h.Wait(context.Background())
		if err != nil {
			t.Errorf("wait: %v", err)
		}
		got <- e
	}()

	h.Resolve(nopEngine{name: "first"})
	h.Resolve(nopEngine{name: "second"})

	select {
	case e := <-got:
		if e.(nopEngine).name != "first" {
			t.Fatalf("got %v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter not released")
	}
	if e, err := h.Get(); err != nil || e.(nopEngine).name != "first" {
		t.Fatalf("Get=%v,%v", e, err)
	}
}
