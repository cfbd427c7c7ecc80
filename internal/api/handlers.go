package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/passmap/internal/filter"
	"github.com/mohammed-shakir/passmap/internal/passes"
	"github.com/mohammed-shakir/passmap/internal/timefmt"
)

type sessionResponse struct {
	ID      string       `json:"id"`
	Created time.Time    `json:"created"`
	Filters filter.State `json:"filters"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+s.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:      s.ID(),
		Created: s.Created().UTC(),
		Filters: s.Store().Snapshot(),
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func etag(fp string) string { return `"` + fp + `"` }

func (h *Handler) getFilters(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r).Store().Snapshot()
	tag := etag(st.Fingerprint)
	w.Header().Set("ETag", tag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) writeState(w http.ResponseWriter, st filter.State) {
	w.Header().Set("ETag", etag(st.Fingerprint))
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) setFilter(w http.ResponseWriter, r *http.Request) {
	d, ok := filter.ParseDimension(chi.URLParam(r, "dimension"))
	if !ok {
		h.fail(w, r, fmt.Errorf("%w: unknown dimension %q, want one of %v",
			filter.ErrInvalidValue, chi.URLParam(r, "dimension"), filter.Dimensions()))
		return
	}
	var body struct {
		Value *string `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body.Value == nil {
		h.fail(w, r, &filter.ValidationError{Field: "value", Reason: "missing"})
		return
	}
	store := sessionFrom(r).Store()
	if err := store.Set(d, *body.Value); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeState(w, store.Snapshot())
}

func (h *Handler) resetFilters(w http.ResponseWriter, r *http.Request) {
	store := sessionFrom(r).Store()
	store.ResetFilters()
	h.writeState(w, store.Snapshot())
}

func (h *Handler) setTimeRange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start json.RawMessage `json:"start"`
		End   json.RawMessage `json:"end"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := instant("start", body.Start)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := instant("end", body.End)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	store := sessionFrom(r).Store()
	if err := store.SetTimeRange(start, end); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeState(w, store.Snapshot())
}

// instant accepts epoch millis or an ISO-8601 string.
func instant(field string, raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, &filter.ValidationError{Field: field, Reason: "missing"}
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return ms, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, &filter.ValidationError{Field: field, Reason: "want epoch millis or ISO-8601 string"}
	}
	ms, err := timefmt.ParseMillis(s)
	if err != nil {
		return 0, &filter.ValidationError{Field: field, Reason: err.Error()}
	}
	return ms, nil
}

type viewportBody struct {
	BBox []float64 `json:"bbox"`
}

func (h *Handler) setViewport(w http.ResponseWriter, r *http.Request) {
	var body viewportBody
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(body.BBox) != 4 {
		h.fail(w, r, &filter.ValidationError{Field: "bbox", Reason: "want [minLon,minLat,maxLon,maxLat]"})
		return
	}
	b := orb.Bound{
		Min: orb.Point{body.BBox[0], body.BBox[1]},
		Max: orb.Point{body.BBox[2], body.BBox[3]},
	}
	if err := sessionFrom(r).View().SetViewport(b); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewportBody{BBox: body.BBox})
}

type passesResponse struct {
	Count    *int          `json:"count"`
	Summary  string        `json:"summary"`
	Rendered int           `json:"rendered"`
	Passes   []passes.Pass `json:"passes"`
}

// getPasses serves the last published aggregation. sync=true recomputes
// against the current viewport first.
func (h *Handler) getPasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := -1
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(w, r, &filter.ValidationError{Field: "limit", Reason: "want a non-negative integer"})
			return
		}
		limit = n
	}

	agg := sessionFrom(r).Aggregator()
	var res passes.Result
	if sync, _ := strconv.ParseBool(q.Get("sync")); sync {
		res = agg.Recompute(r.Context())
	} else {
		res = agg.Snapshot()
	}
	list := res.Passes
	if limit >= 0 && len(list) > limit {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, passesResponse{
		Count:    res.Count,
		Summary:  agg.SummaryOf(res),
		Rendered: res.Rendered,
		Passes:   list,
	})
}

func (h *Handler) getSatellites(w http.ResponseWriter, r *http.Request) {
	sats := sessionFrom(r).Store().FilteredCatalog()
	if sats == nil {
		sats = []filter.Satellite{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(sats), "satellites": sats})
}

type metadataDisplay struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Zone        string `json:"zone"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type metadataResponse struct {
	*filter.Metadata
	Display metadataDisplay `json:"display"`
}

// getMetadata serves the value domains plus display strings; tz picks the
// zone the window is rendered in and defaults to UTC.
func (h *Handler) getMetadata(w http.ResponseWriter, r *http.Request) {
	m := h.sessions.Dataset().Metadata
	if m == nil {
		h.fail(w, r, errNotLoaded)
		return
	}
	loc := time.UTC
	if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			h.fail(w, r, &filter.ValidationError{Field: "tz", Reason: err.Error()})
			return
		}
		loc = l
	}
	now := h.now()
	d := metadataDisplay{
		Start: timefmt.FormatTimeDisplay(m.MinTime, loc),
		End:   timefmt.FormatTimeDisplay(m.MaxTime, loc),
		Zone:  timefmt.FormatLocalOffset(now.In(loc)),
	}
	if m.LastUpdated != "" {
		if ms, err := timefmt.ParseMillis(m.LastUpdated); err == nil {
			d.LastUpdated = timefmt.FormatLastUpdated(time.UnixMilli(ms), now)
		}
	}
	writeJSON(w, http.StatusOK, metadataResponse{Metadata: m, Display: d})
}

func (h *Handler) getFetchStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		h.fail(w, r, errNotLoaded)
		return
	}
	doc, err := h.status.FetchStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
