package timefmt

import (
	"testing"
	"time"
)

func TestISO_MatchesBrowserFormat(t *testing.T) {
	cases := map[int64]string{
		0:             "1970-01-01T00:00:00.000Z",
		1000:          "1970-01-01T00:00:01.000Z",
		1717243200123: "2024-06-01T12:00:00.123Z",
	}
	for ms, want := range cases {
		if got := ISO(ms); got != want {
			t.Fatalf("ISO(%d)=%q want %q", ms, got, want)
		}
	}
}

func TestParseMillis_RoundTripsISO(t *testing.T) {
	for _, ms := range []int64{0, 1717243200123} {
		got, err := ParseMillis(ISO(ms))
		if err != nil {
			t.Fatal(err)
		}
		if got != ms {
			t.Fatalf("ParseMillis(ISO(%d))=%d", ms, got)
		}
	}
	if _, err := ParseMillis("yesterday"); err == nil {
		t.Fatalf("expected error for garbage")
	}
	got, err := ParseMillis("2024-06-01T12:00:00+02:00")
	if err != nil || got != 1717236000000 {
		t.Fatalf("offset form: got %d err %v", got, err)
	}
}

func TestFormatUTCOffset(t *testing.T) {
	utc := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatUTCOffset(utc); got != "UTC" {
		t.Fatalf("got %q", got)
	}
	east := utc.In(time.FixedZone("CEST", 2*3600))
	if got := FormatUTCOffset(east); got != "+2h UTC" {
		t.Fatalf("got %q", got)
	}
	india := utc.In(time.FixedZone("IST", 5*3600+1800))
	if got := FormatUTCOffset(india); got != "+5.5h UTC" {
		t.Fatalf("got %q", got)
	}
	west := utc.In(time.FixedZone("PDT", -7*3600))
	if got := FormatLocalOffset(west); got != "(-7h local)" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatTimeDisplay(t *testing.T) {
	ms := time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC).UnixMilli()
	if got := FormatTimeDisplay(ms, nil); got != "Jun 1, 09:05 UTC" {
		t.Fatalf("got %q", got)
	}
	if got := FormatTimeDisplay(ms, time.FixedZone("X", 3600)); got != "Jun 1, 10:05 +1h UTC" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatLastUpdated(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Minute, "Less than 1 hour ago"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{25 * time.Hour, "1 day ago"},
		{49 * time.Hour, "2 days ago"},
	}
	for _, tc := range cases {
		if got := FormatLastUpdated(now.Add(-tc.ago), now); got != tc.want {
			t.Fatalf("ago=%v got %q want %q", tc.ago, got, tc.want)
		}
	}
}
