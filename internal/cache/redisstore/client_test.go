package redisstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "doc:metadata", []byte(`{"minTime":0}`), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := rc.Get(ctx, "doc:metadata")
	if err != nil || string(got) != `{"minTime":0}` {
		t.Fatalf("Get=%q err=%v", got, err)
	}
	if _, err := rc.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err=%v want ErrMiss", err)
	}
	if err := rc.Del(ctx, "doc:metadata"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := rc.Get(ctx, "doc:metadata"); !errors.Is(err, ErrMiss) {
		t.Fatalf("key survived Del: %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "ttl-key", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(3 * time.Second)
	if _, err := rc.Get(ctx, "ttl-key"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after expiry, err=%v", err)
	}
}

func TestDelPrefix(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"passmap:doc:a", "passmap:doc:b", "other:c"} {
		if err := rc.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	n, err := rc.DelPrefix(ctx, "passmap:doc:")
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if !mr.Exists("other:c") || mr.Exists("passmap:doc:a") {
		t.Fatalf("wrong keys removed: %v", mr.Keys())
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.Get(ctx, "k"); err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected transport error on Get with canceled context, got %v", err)
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()
	for _, op := range []string{"set", "get", "del"} {
		if !strings.Contains(body, `doc_cache_ops_total{op="`+op+`"`) {
			t.Fatalf("missing doc_cache_ops_total for %s; got:\n%s", op, body)
		}
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram")
	}
}
