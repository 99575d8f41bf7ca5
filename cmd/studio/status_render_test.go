package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "ffmpeg", Available: true, Version: "7.1"},
		{Name: "ffprobe", Available: false},
		{Name: "yt-dlp", Available: false, Optional: true, Detail: "not installed"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] Ready (7.1)") {
		t.Fatalf("expected ready detail in first line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not installed") {
		t.Fatalf("expected warn detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing") || !strings.Contains(lines[3], "ffprobe") {
		t.Fatalf("expected missing summary naming ffprobe, got %q", lines[3])
	}
}

func TestBuildJobCountRowsSkipsZeroes(t *testing.T) {
	rows := buildJobCountRows(api.JobCounts{Total: 3, Pending: 1, Complete: 2})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "pending" || rows[0][1] != "1" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[2][0] != "total" || rows[2][1] != "3" {
		t.Fatalf("unexpected total row %v", rows[2])
	}

	if got := buildJobCountRows(api.JobCounts{}); got != nil {
		t.Fatalf("expected nil rows for empty counts, got %v", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		1536:    "1.5 KiB",
		1 << 30: "1.0 GiB",
		5 << 20: "5.0 MiB",
	}
	for input, want := range cases {
		if got := humanBytes(input); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[float64]string{
		0:    "0:00",
		30:   "0:30",
		90.6: "1:31",
		600:  "10:00",
	}
	for input, want := range cases {
		if got := formatSeconds(input); got != want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", input, got, want)
		}
	}
}
