package refresh

import (
	"context"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	ok := Event{Version: 1, Op: "refresh", Source: "generate_satellite_paths", GeneratedAt: time.Now()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	bad := []Event{
		{Version: 2, Op: "refresh", Source: "x", GeneratedAt: time.Now()},
		{Version: 1, Op: "update", Source: "x", GeneratedAt: time.Now()},
		{Version: 1, Op: "refresh", Source: "  ", GeneratedAt: time.Now()},
		{Version: 1, Op: "refresh", Source: "x"},
	}
	for i, ev := range bad {
		if ev.Validate() == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestReloadFunc(t *testing.T) {
	called := false
	var r Reloader = ReloadFunc(func(context.Context) error { called = true; return nil })
	if err := r.Reload(context.Background()); err != nil || !called {
		t.Fatalf("called=%v err=%v", called, err)
	}
}
