package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.PassLayer != "satellite_paths" {
		t.Fatalf("PassLayer=%q", cfg.PassLayer)
	}
	if cfg.PassDebounce != 300*time.Millisecond || cfg.PassInitialDelay != time.Second {
		t.Fatalf("debounce=%v initial=%v", cfg.PassDebounce, cfg.PassInitialDelay)
	}
	if cfg.PassMax != 100 || cfg.PassBucket != 15*time.Minute {
		t.Fatalf("max=%d bucket=%v", cfg.PassMax, cfg.PassBucket)
	}
	if cfg.Refresh.Enabled {
		t.Fatalf("refresh must be disabled by default")
	}
	if cfg.RedisPoolSize != 16 || cfg.RedisTimeout != time.Second {
		t.Fatalf("redis pool=%d timeout=%v", cfg.RedisPoolSize, cfg.RedisTimeout)
	}
}

func TestFromEnv_OverridesAndClamps(t *testing.T) {
	t.Setenv("RENDER_H3_RES", "22")
	t.Setenv("PASS_MAX", "-3")
	t.Setenv("PASS_DEBOUNCE", "50ms")
	t.Setenv("DOC_CACHE_ENABLED", "yes")
	t.Setenv("REFRESH_ENABLED", "1")
	t.Setenv("KAFKA_TOPIC", "paths")

	cfg := FromEnv()
	if cfg.RenderH3Res != 15 {
		t.Fatalf("RenderH3Res=%d want 15", cfg.RenderH3Res)
	}
	if cfg.PassMax != 100 {
		t.Fatalf("PassMax=%d want fallback 100", cfg.PassMax)
	}
	if cfg.PassDebounce != 50*time.Millisecond {
		t.Fatalf("PassDebounce=%v", cfg.PassDebounce)
	}
	if !cfg.DocCacheEnabled || !cfg.Refresh.Enabled || cfg.Refresh.Topic != "paths" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("PASS_BUCKET", "soon")
	t.Setenv("SESSIONS_MAX", "many")
	cfg := FromEnv()
	if cfg.PassBucket != 15*time.Minute || cfg.SessionsMax != 1024 {
		t.Fatalf("bucket=%v sessions=%d", cfg.PassBucket, cfg.SessionsMax)
	}
}
