package expr

import (
	"encoding/json"
	"testing"
)

func mustJSON(t *testing.T, e Expr) string {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestMarshal_MapLibreSyntax(t *testing.T) {
	e := All(
		Gte("start_time", "1970-01-01T00:00:01.000Z"),
		Lte("end_time", "1970-01-01T00:00:02.000Z"),
		Eq("constellation", "ICEYE"),
		All(Gte("spatial_res_m", 5.0), Lte("spatial_res_m", 30.0)),
		Eq("tasking", true),
	)
	want := `["all",` +
		`[">=",["get","start_time"],"1970-01-01T00:00:01.000Z"],` +
		`["<=",["get","end_time"],"1970-01-01T00:00:02.000Z"],` +
		`["==",["get","constellation"],"ICEYE"],` +
		`["all",[">=",["get","spatial_res_m"],5],["<=",["get","spatial_res_m"],30]],` +
		`["==",["get","tasking"],true]]`
	if got := mustJSON(t, e); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestMarshal_EmptyGroups(t *testing.T) {
	if got := mustJSON(t, All()); got != `["all"]` {
		t.Fatalf("got %s", got)
	}
	if got := mustJSON(t, Any()); got != `["any"]` {
		t.Fatalf("got %s", got)
	}
}

func TestMarshal_RejectsBadClauses(t *testing.T) {
	if _, err := json.Marshal(Compare{Op: "~", Field: "x", Value: "y"}); err == nil {
		t.Fatalf("expected error for invalid op")
	}
	if _, err := json.Marshal(Eq("x", []int{1})); err == nil {
		t.Fatalf("expected error for unsupported literal")
	}
}

func TestEval(t *testing.T) {
	props := map[string]any{
		"start_time":    "2024-06-01T10:00:00.000Z",
		"constellation": "ICEYE",
		"spatial_res_m": 0.5,
		"tasking":       true,
	}
	cases := []struct {
		name string
		e    Expr
		want bool
	}{
		{"empty all", All(), true},
		{"empty any", Any(), false},
		{"string eq", Eq("constellation", "ICEYE"), true},
		{"string ne", Compare{Op: OpNe, Field: "constellation", Value: "Capella"}, true},
		{"iso gte", Gte("start_time", "2024-06-01T09:00:00.000Z"), true},
		{"iso lte", Lte("start_time", "2024-06-01T09:00:00.000Z"), false},
		{"number lt", Lt("spatial_res_m", 5), true},
		{"number gt", Gt("spatial_res_m", 30.0), false},
		{"bool eq", Eq("tasking", true), true},
		{"bool ordering", Lt("tasking", true), false},
		{"missing field", Eq("operator", "x"), false},
		{"type mismatch eq", Eq("spatial_res_m", "0.5"), false},
		{"type mismatch ne", Compare{Op: OpNe, Field: "spatial_res_m", Value: "0.5"}, true},
		{"nested any", Any(Eq("constellation", "Capella"), Eq("tasking", true)), true},
		{"all short", All(Eq("constellation", "ICEYE"), Eq("tasking", false)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.e.Eval(props); got != tc.want {
				t.Fatalf("Eval=%v want %v", got, tc.want)
			}
		})
	}
}

func TestEval_JSONNumberProperties(t *testing.T) {
	props := map[string]any{"spatial_res_m": json.Number("12")}
	if !All(Gte("spatial_res_m", 5.0), Lte("spatial_res_m", 30.0)).Eval(props) {
		t.Fatalf("json.Number property should compare numerically")
	}
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	a, err := Fingerprint(All(Eq("operator", "ICEYE")))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Fingerprint(All(Eq("operator", "ICEYE")))
	c, _ := Fingerprint(All(Eq("operator", "Capella")))
	if a != b {
		t.Fatalf("equal expressions differ: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different expressions collide: %s", a)
	}
}
