package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestPrintTimingStats(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	defer func() { Output, Verbose = oldOut, oldVerbose }()
	Output = &buf

	stats := &TimingStats{TotalTime: 4 * time.Second, ForwardPassTime: time.Second}
	PrintTimingStats(stats, 2)
	out := buf.String()
	if !strings.Contains(out, "Forward pass: 1s (25.0%)") {
		t.Errorf("missing forward share in:\n%s", out)
	}
	if !strings.Contains(out, "Average forward pass time: 500ms") {
		t.Errorf("missing average in:\n%s", out)
	}

	buf.Reset()
	PrintTimingStats(&TimingStats{}, 0)
	if strings.Contains(buf.String(), "Average") {
		t.Errorf("averages printed for zero batches")
	}

	buf.Reset()
	Verbose = false
	PrintTimingStats(stats, 2)
	if buf.Len() != 0 {
		t.Errorf("output written with Verbose=false")
	}
}
