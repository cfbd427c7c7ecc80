// Package loader fetches the documents the offline path generator publishes:
// value-domain metadata, the satellite catalog, the fetch status report and
// the path features themselves.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/passmap/internal/core/observability"
	"github.com/mohammed-shakir/passmap/internal/filter"
	"github.com/mohammed-shakir/passmap/internal/timefmt"
)

const (
	DocMetadata = "metadata"
	DocCatalog  = "catalog"
	DocStatus   = "fetch_status"
	DocPaths    = "paths"

	keyPrefix = "passmap:doc:"

	// generated path files run to tens of MB
	maxDocBytes = 256 << 20
)

var (
	ErrFetch         = errors.New("data fetch failed")
	ErrNotConfigured = errors.New("document url not configured")
)

// FetchError is a DataFetchFailure for one document.
type FetchError struct {
	Document string
	URL      string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s from %s: upstream status %d", e.Document, e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s from %s: %v", e.Document, e.URL, e.Err)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
func (e *FetchError) Unwrap() error        { return e.Err }

// DocCache stores raw documents; redisstore.Client satisfies it.
type DocCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	MetadataURL string
	CatalogURL  string
	StatusURL   string
	PathsURL    string
	CacheTTL    time.Duration
}

type Loader struct {
	logger *slog.Logger
	client *http.Client
	cfg    Config
	cache  DocCache
}

type Option func(*Loader)

// WithCache puts c in front of every fetch.
func WithCache(c DocCache) Option {
	return func(l *Loader) { l.cache = c }
}

func New(logger *slog.Logger, client *http.Client, cfg Config, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	l := &Loader{logger: logger, client: client, cfg: cfg}
	for _, o := range opts {
		o(l)
	}
	return l
}

type rawMetadata struct {
	MinTime           json.RawMessage `json:"minTime"`
	MaxTime           json.RawMessage `json:"maxTime"`
	Constellations    []string        `json:"constellations"`
	Operators         []string        `json:"operators"`
	SensorTypes       []string        `json:"sensor_types"`
	DataAccessOptions []string        `json:"data_access_options"`
	LastUpdated       string          `json:"lastUpdated"`
}

// FetchMetadata returns the value domains with times converted to epoch millis.
// Domain lists are passed through as-is; the filter store validates them.
func (l *Loader) FetchMetadata(ctx context.Context) (filter.Metadata, error) {
	b, err := l.fetch(ctx, DocMetadata, l.cfg.MetadataURL)
	if err != nil {
		return filter.Metadata{}, err
	}
	m, err := DecodeMetadata(b)
	if err != nil {
		return filter.Metadata{}, &FetchError{Document: DocMetadata, URL: l.cfg.MetadataURL, Err: err}
	}
	return m, nil
}

func DecodeMetadata(b []byte) (filter.Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal(b, &raw); err != nil {
		return filter.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	minT, err := millis(raw.MinTime)
	if err != nil {
		return filter.Metadata{}, fmt.Errorf("minTime: %w", err)
	}
	maxT, err := millis(raw.MaxTime)
	if err != nil {
		return filter.Metadata{}, fmt.Errorf("maxTime: %w", err)
	}
	return filter.Metadata{
		MinTime:           minT,
		MaxTime:           maxT,
		Constellations:    raw.Constellations,
		Operators:         raw.Operators,
		SensorTypes:       raw.SensorTypes,
		DataAccessOptions: raw.DataAccessOptions,
		LastUpdated:       raw.LastUpdated,
	}, nil
}

// millis accepts an ISO-8601 string or a number of epoch millis.
func millis(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return timefmt.ParseMillis(s)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("not a timestamp: %s", raw)
	}
	return int64(n), nil
}

func (l *Loader) FetchCatalog(ctx context.Context) ([]filter.Satellite, error) {
	b, err := l.fetch(ctx, DocCatalog, l.cfg.CatalogURL)
	if err != nil {
		return nil, err
	}
	var sats []filter.Satellite
	if err := json.Unmarshal(b, &sats); err != nil {
		return nil, &FetchError{Document: DocCatalog, URL: l.cfg.CatalogURL, Err: fmt.Errorf("decode catalog: %w", err)}
	}
	return sats, nil
}

// FetchStatus returns the per-satellite prediction report untouched.
func (l *Loader) FetchStatus(ctx context.Context) (json.RawMessage, error) {
	b, err := l.fetch(ctx, DocStatus, l.cfg.StatusURL)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, &FetchError{Document: DocStatus, URL: l.cfg.StatusURL, Err: errors.New("invalid json")}
	}
	return json.RawMessage(b), nil
}

// FetchPaths returns the raw GeoJSON FeatureCollection of pass segments.
func (l *Loader) FetchPaths(ctx context.Context) ([]byte, error) {
	return l.fetch(ctx, DocPaths, l.cfg.PathsURL)
}

// Invalidate drops every cached document.
func (l *Loader) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	n, err := l.cache.DelPrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidate documents: %w", err)
	}
	l.logger.Info("document cache invalidated", "keys", n)
	return nil
}

func cacheKey(doc, url string) string {
	return keyPrefix + doc + ":" + strconv.FormatUint(xxhash.Sum64String(url), 16)
}

func (l *Loader) fetch(ctx context.Context, doc, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%s: %w", doc, ErrNotConfigured)
	}
	key := cacheKey(doc, url)
	if l.cache != nil {
		start := time.Now()
		b, err := l.cache.Get(ctx, key)
		if err == nil {
			observability.ObserveFetch(doc, "cache", nil, time.Since(start))
			return b, nil
		}
		// a broken cache only costs an upstream round trip
		l.logger.Debug("document cache miss", "document", doc, "err", err)
	}

	start := time.Now()
	b, err := l.get(ctx, doc, url)
	observability.ObserveFetch(doc, "upstream", err, time.Since(start))
	if err != nil {
		l.logger.Warn("document fetch failed", "document", doc, "url", url, "err", err)
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, b, l.cfg.CacheTTL); err != nil {
			l.logger.Warn("document cache store failed", "document", doc, "err", err)
		}
	}
	return b, nil
}

func (l *Loader) get(ctx context.Context, doc, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<10))
		return nil, &FetchError{Document: doc, URL: url, Status: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}
