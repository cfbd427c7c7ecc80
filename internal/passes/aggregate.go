// Package passes turns the fragments a map has drawn into the distinct
// satellite passes a viewer can see.
package passes

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/mohammed-shakir/passmap/internal/engine"
	"github.com/mohammed-shakir/passmap/internal/resolution"
	"github.com/mohammed-shakir/passmap/internal/timefmt"
)

const (
	DefaultMax    = 100
	DefaultBucket = 15 * time.Minute
)

type Options struct {
	// Max is the largest raw feature count that is still aggregated.
	Max int
	// Bucket is the start-time window that collapses fragments of one pass.
	Bucket time.Duration
}

func DefaultOptions() Options {
	return Options{Max: DefaultMax, Bucket: DefaultBucket}
}

func (o Options) withDefaults() Options {
	if o.Max <= 0 {
		o.Max = DefaultMax
	}
	if o.Bucket <= 0 {
		o.Bucket = DefaultBucket
	}
	return o
}

// Overflow is the count published when more than Max features are rendered.
func (o Options) Overflow() int { return o.withDefaults().Max + 1 }

type Pass struct {
	Satellite     string    `json:"name"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time,omitempty"`
	Constellation string    `json:"constellation,omitempty"`
	Operator      string    `json:"operator,omitempty"`
	SensorType    string    `json:"sensor_type,omitempty"`
	SpatialResM   *float64  `json:"spatial_res_m,omitempty"`
	Resolution    string    `json:"resolution,omitempty"`
	ResolutionCat string    `json:"resolution_category,omitempty"`
	DataAccess    string    `json:"data_access,omitempty"`
	Tasking       *bool     `json:"tasking,omitempty"`
	IsDaytime     *bool     `json:"is_daytime,omitempty"`
	DataRepo      *RepoLink `json:"data_repo,omitempty"`

	startMS int64
}

// StartMillis is the parsed start time.
func (p Pass) StartMillis() int64 { return p.startMS }

// Result is one published aggregation. A nil Count means unknown.
type Result struct {
	Count    *int   `json:"count"`
	Passes   []Pass `json:"passes"`
	Rendered int    `json:"rendered"`
}

func (r Result) clone() Result {
	out := Result{Passes: slices.Clone(r.Passes), Rendered: r.Rendered}
	if r.Count != nil {
		n := *r.Count
		out.Count = &n
	}
	if out.Passes == nil {
		out.Passes = []Pass{}
	}
	return out
}

func unknown() Result {
	return Result{Passes: []Pass{}}
}

func counted(n int) *int { return &n }

// Aggregate collapses rendered fragments into passes: one per satellite and
// start-time bucket, keeping the earliest start, sorted by start. Count is the
// number of passes, or the overflow sentinel when too many features are drawn.
func Aggregate(features []engine.Feature, o Options) Result {
	o = o.withDefaults()
	res := Result{Passes: []Pass{}, Rendered: len(features)}
	switch {
	case len(features) == 0:
		res.Count = counted(0)
		return res
	case len(features) > o.Max:
		res.Count = counted(o.Overflow())
		return res
	}

	type key struct {
		sat    string
		bucket int64
	}
	bucketMS := o.Bucket.Milliseconds()
	groups := make(map[key]Pass, len(features))
	for _, f := range features {
		p, ok := candidate(f.Properties)
		if !ok {
			continue
		}
		k := key{sat: p.Satellite, bucket: floorDiv(p.startMS, bucketMS)}
		if cur, seen := groups[k]; !seen || p.startMS < cur.startMS {
			groups[k] = p
		}
	}

	for _, p := range groups {
		res.Passes = append(res.Passes, p)
	}
	slices.SortFunc(res.Passes, func(a, b Pass) int {
		return cmp.Or(cmp.Compare(a.startMS, b.startMS), cmp.Compare(a.Satellite, b.Satellite))
	})
	res.Count = counted(len(res.Passes))
	return res
}

// candidate maps a fragment to a pass; fragments without a satellite or a
// parseable start time are dropped.
func candidate(props map[string]any) (Pass, bool) {
	name := str(props["satellite"])
	if name == "" {
		name = str(props["name"])
	}
	start := str(props["start_time"])
	if name == "" || start == "" {
		return Pass{}, false
	}
	ms, err := timefmt.ParseMillis(start)
	if err != nil {
		return Pass{}, false
	}

	p := Pass{
		Satellite:     name,
		StartTime:     start,
		EndTime:       str(props["end_time"]),
		Constellation: str(props["constellation"]),
		Operator:      str(props["operator"]),
		SensorType:    str(props["sensor_type"]),
		DataAccess:    str(props["data_access"]),
		Tasking:       boolean(props["tasking"]),
		IsDaytime:     boolean(props["is_daytime"]),
		DataRepo:      BuildDataRepoLink(str(props["data_repo_type"]), str(props["data_repo_url"])),
		startMS:       ms,
	}
	if m, ok := number(props["spatial_res_m"]); ok && m != 0 {
		p.SpatialResM = &m
		p.Resolution = resolution.FormatMeters(m)
		if c, err := resolution.ClassifyMeters(m); err == nil {
			p.ResolutionCat = string(c)
		}
	}
	return p, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func str(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func number(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func boolean(v any) *bool {
	switch v := v.(type) {
	case bool:
		return &v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return &b
		}
	}
	return nil
}
