package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RefreshCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr             string
	LogLevel         string
	MetadataURL      string
	CatalogURL       string
	StatusURL        string
	PathsURL         string
	RedisAddr        string
	RedisPoolSize    int
	RedisTimeout     time.Duration
	DocCacheEnabled  bool
	DocCacheTTL      time.Duration
	FetchTimeout     time.Duration
	PassLayer        string
	PassDebounce     time.Duration
	PassInitialDelay time.Duration
	PassMax          int
	PassBucket       time.Duration
	RenderH3Res      int
	SessionsMax      int
	Refresh          RefreshCfg
}

func FromEnv() Config {
	res := getint("RENDER_H3_RES", 4)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	passMax := getint("PASS_MAX", 100)
	if passMax <= 0 {
		passMax = 100
	}

	bucket := getduration("PASS_BUCKET", 15*time.Minute)
	if bucket <= 0 {
		bucket = 15 * time.Minute
	}

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		MetadataURL:      getenv("METADATA_URL", "http://localhost:8080/satellite_paths_metadata.json"),
		CatalogURL:       getenv("CATALOG_URL", "http://localhost:8080/scripts/satellite-list.json"),
		StatusURL:        getenv("STATUS_URL", ""),
		PathsURL:         getenv("PATHS_URL", "http://localhost:8080/satellite_paths.geojson"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize:    getint("REDIS_POOL_SIZE", 16),
		RedisTimeout:     getduration("REDIS_TIMEOUT", time.Second),
		DocCacheEnabled:  getbool("DOC_CACHE_ENABLED", false),
		DocCacheTTL:      getduration("DOC_CACHE_TTL", 10*time.Minute),
		FetchTimeout:     getduration("FETCH_TIMEOUT", 30*time.Second),
		PassLayer:        getenv("PASS_LAYER", "satellite_paths"),
		PassDebounce:     getduration("PASS_DEBOUNCE", 300*time.Millisecond),
		PassInitialDelay: getduration("PASS_INITIAL_DELAY", time.Second),
		PassMax:          passMax,
		PassBucket:       bucket,
		RenderH3Res:      res,
		SessionsMax:      getint("SESSIONS_MAX", 1024),
		Refresh: RefreshCfg{
			Enabled: getbool("REFRESH_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "satellite-paths-refresh"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "passmap"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
