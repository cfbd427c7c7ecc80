// Package refresh reacts to the path generator announcing a new batch.
package refresh

import (
	"context"
	"errors"
	"strings"
	"time"
)

const OpRefresh = "refresh"

// Event is published by the generator after it rewrites the path documents.
type Event struct {
	Version     int       `json:"version"`
	Op          string    `json:"op"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	if e.Op != OpRefresh {
		return errors.New("op must be refresh")
	}
	if strings.TrimSpace(e.Source) == "" {
		return errors.New("source is required")
	}
	if e.GeneratedAt.IsZero() {
		return errors.New("generated_at is required")
	}
	return nil
}

// Reloader re-fetches every document and swaps it into the running service.
type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloadFunc func(ctx context.Context) error

func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }
