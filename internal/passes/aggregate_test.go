package passes

import (
	"fmt"
	"testing"
	"time"

	"github.com/mohammed-shakir/passmap/internal/engine"
)

func feat(props map[string]any) engine.Feature {
	return engine.Feature{Properties: props}
}

func at(base time.Time, d time.Duration) string {
	return base.Add(d).UTC().Format(time.RFC3339)
}

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestAggregate_SegmentsOfOnePassCollapse(t *testing.T) {
	var fs []engine.Feature
	for _, m := range []int{9, 3, 7, 1, 5} {
		fs = append(fs, feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, time.Duration(m)*time.Minute)}))
	}
	res := Aggregate(fs, DefaultOptions())
	if res.Count == nil || *res.Count != 1 || len(res.Passes) != 1 {
		t.Fatalf("got %+v want one pass", res)
	}
	if want := at(t0, time.Minute); res.Passes[0].StartTime != want {
		t.Fatalf("start=%s want earliest %s", res.Passes[0].StartTime, want)
	}
	if res.Rendered != 5 {
		t.Fatalf("rendered=%d", res.Rendered)
	}
}

func TestAggregate_DistinctBucketsAreDistinctPasses(t *testing.T) {
	fs := []engine.Feature{
		feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, 20*time.Minute)}),
		feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, 5*time.Minute)}),
	}
	res := Aggregate(fs, DefaultOptions())
	if *res.Count != 2 {
		t.Fatalf("count=%d want 2", *res.Count)
	}
	if res.Passes[0].StartTime != at(t0, 5*time.Minute) || res.Passes[1].StartTime != at(t0, 20*time.Minute) {
		t.Fatalf("not sorted ascending: %+v", res.Passes)
	}
}

func TestAggregate_SameBucketDifferentSatellites(t *testing.T) {
	fs := []engine.Feature{
		feat(map[string]any{"satellite": "SAT-B", "start_time": at(t0, 2*time.Minute)}),
		feat(map[string]any{"name": "SAT-A", "start_time": at(t0, 2*time.Minute)}),
	}
	res := Aggregate(fs, DefaultOptions())
	if *res.Count != 2 || res.Passes[0].Satellite != "SAT-A" {
		t.Fatalf("got %+v", res.Passes)
	}
}

func TestAggregate_Overflow(t *testing.T) {
	fs := make([]engine.Feature, 150)
	for i := range fs {
		fs[i] = feat(map[string]any{"satellite": fmt.Sprintf("SAT-%d", i), "start_time": at(t0, 0)})
	}
	res := Aggregate(fs, DefaultOptions())
	if res.Count == nil || *res.Count != 101 || len(res.Passes) != 0 {
		t.Fatalf("got count=%v passes=%d", res.Count, len(res.Passes))
	}
	if got := Summary(res.Count); got != "Many passes (100+)" {
		t.Fatalf("summary=%q", got)
	}

	// exactly at the threshold is still aggregated
	res = Aggregate(fs[:100], DefaultOptions())
	if *res.Count != 100 {
		t.Fatalf("count=%d want 100", *res.Count)
	}
}

func TestAggregate_MalformedFeaturesAreSkipped(t *testing.T) {
	fs := []engine.Feature{
		feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, 0)}),
		feat(map[string]any{"start_time": at(t0, 0)}),
		feat(map[string]any{"satellite": "SAT-B"}),
		feat(map[string]any{"satellite": "SAT-C", "start_time": "yesterday"}),
		feat(nil),
	}
	res := Aggregate(fs, DefaultOptions())
	// published count is the grouped count, not the raw feature count
	if *res.Count != 1 || res.Rendered != 5 {
		t.Fatalf("count=%d rendered=%d", *res.Count, res.Rendered)
	}
}

func TestAggregate_EmptyIsConfirmedZero(t *testing.T) {
	res := Aggregate(nil, DefaultOptions())
	if res.Count == nil || *res.Count != 0 || res.Passes == nil {
		t.Fatalf("got %+v", res)
	}
}

func TestAggregate_CarriesDisplayAttributes(t *testing.T) {
	res := Aggregate([]engine.Feature{feat(map[string]any{
		"satellite":      "ICEYE-X2",
		"start_time":     at(t0, 0),
		"end_time":       at(t0, 9*time.Minute),
		"operator":       "ICEYE Oy",
		"spatial_res_m":  0.5,
		"tasking":        true,
		"is_daytime":     false,
		"data_repo_type": "STAC",
		"data_repo_url":  "https://example.com/catalog.json",
	})}, DefaultOptions())
	p := res.Passes[0]
	if p.SpatialResM == nil || *p.SpatialResM != 0.5 || p.Resolution != "50cm" || p.ResolutionCat != "high" {
		t.Fatalf("resolution fields: %+v", p)
	}
	if p.Tasking == nil || !*p.Tasking || p.IsDaytime == nil || *p.IsDaytime {
		t.Fatalf("bool fields: %+v", p)
	}
	if p.DataRepo == nil || !p.DataRepo.IsSTAC {
		t.Fatalf("repo link: %+v", p.DataRepo)
	}
	if p.StartMillis() != t0.UnixMilli() {
		t.Fatalf("start millis=%d", p.StartMillis())
	}
}

func TestAggregate_CustomBucket(t *testing.T) {
	fs := []engine.Feature{
		feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, 5*time.Minute)}),
		feat(map[string]any{"satellite": "SAT-A", "start_time": at(t0, 20*time.Minute)}),
	}
	res := Aggregate(fs, Options{Bucket: time.Hour})
	if *res.Count != 1 {
		t.Fatalf("count=%d want 1 with hour buckets", *res.Count)
	}
}

func TestFloorDiv_NegativeTimes(t *testing.T) {
	if floorDiv(-1, 900000) != -1 || floorDiv(0, 900000) != 0 || floorDiv(900000, 900000) != 1 {
		t.Fatalf("floorDiv wrong")
	}
}

func TestSummary(t *testing.T) {
	n := func(i int) *int { return &i }
	cases := []struct {
		in   *int
		want string
	}{
		{nil, "Loading…"},
		{n(0), "No passes"},
		{n(1), "1 pass"},
		{n(42), "42 passes"},
		{n(100), "100 passes"},
		{n(101), "Many passes (100+)"},
	}
	for _, c := range cases {
		if got := Summary(c.in); got != c.want {
			t.Fatalf("Summary(%v)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestBuildDataRepoLink(t *testing.T) {
	if BuildDataRepoLink("stac", "") != nil {
		t.Fatalf("link without url")
	}
	l := BuildDataRepoLink("other", "https://example.com/data")
	if l.URL != "https://example.com/data" || l.IsSTAC {
		t.Fatalf("got %+v", l)
	}
	l = BuildDataRepoLink("Stac", "https://example.com/a b.json")
	want := "https://developmentseed.org/stac-map/?href=https%3A%2F%2Fexample.com%2Fa%20b.json"
	if l.URL != want || !l.IsSTAC {
		t.Fatalf("got %q want %q", l.URL, want)
	}
}

func TestBuildDataRepoLink_EncodesLikeURIComponent(t *testing.T) {
	l := BuildDataRepoLink("stac", "https://example.com/it's (v2)!*~/å?q=a+b&x=1#f")
	want := stacViewer + "https%3A%2F%2Fexample.com%2Fit's%20(v2)!*~%2F%C3%A5%3Fq%3Da%2Bb%26x%3D1%23f"
	if l.URL != want {
		t.Fatalf("got %q want %q", l.URL, want)
	}
}
