// Package headless is a server-side stand-in for the browser map. It cuts the
// generated satellite paths into per-H3-cell fragments, the way vector tiles
// cut a ground track, and answers rendered-feature queries for a viewport.
package headless

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/passmap/internal/timefmt"
)

var ErrInvalidRes = errors.New("invalid H3 resolution")

// bisection depth per segment; at res 4 a 20x split is well under one cell
const maxSplitDepth = 20

type fragment struct {
	cell  h3.Cell
	at    orb.Point
	props map[string]any
}

// TileSet is an immutable set of fragments. Replace it wholesale to reload.
type TileSet struct {
	res       int
	features  int
	skipped   int
	fragments []fragment
}

func (t *TileSet) Res() int { return t.res }

// Features is the number of source features that produced fragments.
func (t *TileSet) Features() int { return t.features }

// Skipped counts source features without usable geometry.
func (t *TileSet) Skipped() int { return t.skipped }

func (t *TileSet) Fragments() int { return len(t.fragments) }

// DecodeTileSet parses a GeoJSON FeatureCollection and fragments it at res.
func DecodeTileSet(data []byte, res int) (*TileSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode paths: %w", err)
	}
	return NewTileSet(fc, res)
}

func NewTileSet(fc *geojson.FeatureCollection, res int) (*TileSet, error) {
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("%w %d (must be 0..15)", ErrInvalidRes, res)
	}
	ts := &TileSet{res: res}
	if fc == nil {
		return ts, nil
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			ts.skipped++
			continue
		}
		props := normalize(f.Properties)
		n := len(ts.fragments)
		for _, line := range lines(f.Geometry) {
			ts.fragments = appendLine(ts.fragments, line, res, props)
		}
		if len(ts.fragments) == n {
			ts.skipped++
			continue
		}
		ts.features++
	}
	return ts, nil
}

// normalize converts the feature attributes once so every query sees the
// canonical schema: resolution in meters and millisecond UTC timestamps.
func normalize(in geojson.Properties) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if _, ok := out["spatial_res_m"]; !ok {
		if cm, ok := out["spatial_res_cm"].(float64); ok {
			out["spatial_res_m"] = cm / 100
		}
	}
	delete(out, "spatial_res_cm")
	for _, k := range []string{"start_time", "end_time"} {
		s, ok := out[k].(string)
		if !ok {
			continue
		}
		if ms, err := timefmt.ParseMillis(s); err == nil {
			out[k] = timefmt.ISO(ms)
		}
	}
	return out
}

// lines flattens a geometry into the polylines a renderer would stroke.
func lines(g orb.Geometry) []orb.LineString {
	switch g := g.(type) {
	case orb.Point:
		return []orb.LineString{{g}}
	case orb.LineString:
		return []orb.LineString{g}
	case orb.MultiLineString:
		return g
	case orb.Ring:
		return []orb.LineString{orb.LineString(g)}
	case orb.Polygon:
		out := make([]orb.LineString, 0, len(g))
		for _, r := range g {
			out = append(out, orb.LineString(r))
		}
		return out
	case orb.MultiPolygon:
		var out []orb.LineString
		for _, p := range g {
			out = append(out, lines(p)...)
		}
		return out
	case orb.Collection:
		var out []orb.LineString
		for _, c := range g {
			out = append(out, lines(c)...)
		}
		return out
	}
	return nil
}

// appendLine emits one fragment per distinct consecutive cell the line crosses.
func appendLine(dst []fragment, line orb.LineString, res int, props map[string]any) []fragment {
	last := h3.Cell(0)
	emit := func(p orb.Point, c h3.Cell) {
		if c == last {
			return
		}
		last = c
		dst = append(dst, fragment{cell: c, at: p, props: props})
	}

	for i, p := range line {
		c, err := cellAt(p, res)
		if err != nil {
			continue
		}
		if i > 0 {
			prev := line[i-1]
			if pc, err := cellAt(prev, res); err == nil && pc != c {
				split(prev, pc, p, c, res, 0, emit)
			}
		}
		emit(p, c)
	}
	return dst
}

// split bisects a-b until both halves of every piece share a cell, emitting
// the cells in between in path order.
func split(a orb.Point, ca h3.Cell, b orb.Point, cb h3.Cell, res, depth int, emit func(orb.Point, h3.Cell)) {
	if ca == cb || depth >= maxSplitDepth {
		return
	}
	m := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	cm, err := cellAt(m, res)
	if err != nil {
		return
	}
	split(a, ca, m, cm, res, depth+1, emit)
	emit(m, cm)
	split(m, cm, b, cb, res, depth+1, emit)
}

func cellAt(p orb.Point, res int) (h3.Cell, error) {
	return h3.LatLngToCell(h3.LatLng{Lat: p.Lat(), Lng: p.Lon()}, res)
}
