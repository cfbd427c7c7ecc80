// Package api exposes viewer sessions over HTTP: filter state, viewport and
// the visible passes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/passmap/internal/engine/headless"
	"github.com/mohammed-shakir/passmap/internal/filter"
	"github.com/mohammed-shakir/passmap/internal/loader"
	mylog "github.com/mohammed-shakir/passmap/internal/logger"
	"github.com/mohammed-shakir/passmap/internal/session"
)

const maxBodyBytes = 1 << 20

var (
	errSessionNotFound = errors.New("session not found")
	errNotLoaded       = errors.New("metadata not loaded")
)

// StatusSource serves the upstream fetch status document.
type StatusSource interface {
	FetchStatus(ctx context.Context) (json.RawMessage, error)
}

type Handler struct {
	logger   *slog.Logger
	sessions *session.Registry
	status   StatusSource
	now      func() time.Time
}

func New(logger *slog.Logger, sessions *session.Registry, status StatusSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, sessions: sessions, status: status, now: time.Now}
}

// Routes returns the /v1 router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/metadata", h.getMetadata)
	r.Get("/fetch-status", h.getFetchStatus)

	r.Post("/sessions", h.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(h.withSession)
		r.Delete("/", h.deleteSession)
		r.Get("/filters", h.getFilters)
		r.Post("/filters/reset", h.resetFilters)
		r.Put("/filters/{dimension}", h.setFilter)
		r.Put("/time-range", h.setTimeRange)
		r.Put("/viewport", h.setViewport)
		r.Get("/passes", h.getPasses)
		r.Get("/satellites", h.getSatellites)
	})
	return r
}

type ctxKey struct{}

func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := h.sessions.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", errSessionNotFound, id))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, s)
		ctx = mylog.WithSessionID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, filter.ErrValidation),
		errors.Is(err, filter.ErrInvalidValue),
		errors.Is(err, headless.ErrInvalidViewport):
		return http.StatusBadRequest
	case errors.Is(err, headless.ErrClosed), errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, errNotLoaded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := statusFor(err)
	if st >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, st, err)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &filter.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
