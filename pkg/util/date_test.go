package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestParseDateTruncatesToDay(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":          "2024-03-05",
		"2024-03-05 23:59:59": "2024-03-05",
		"2024/03/05":          "2024-03-05",
		"2024-03-05T10:00:00Z": "2024-03-05",
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		if !ok {
			t.Fatalf("%q: expected ok", in)
		}
		if FormatDate(got) != want {
			t.Fatalf("%q: got %s want %s", in, FormatDate(got), want)
		}
	}
	if _, ok := ParseDate("not a date"); ok {
		t.Fatalf("expected failure")
	}
}

func TestSafeFileName(t *testing.T) {
	cases := map[string]string{
		"data.csv":             "data.csv",
		"../../etc/passwd":     "passwd",
		"..\\windows\\x y.csv": "x_y.csv",
		"..":                   "file",
	}
	for in, want := range cases {
		if got := SafeFileName(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("abc", 100) != 100 {
		t.Fatalf("expected default")
	}
	if ParseIntDefault(" 25 ", 100) != 25 {
		t.Fatalf("expected 25")
	}
}
