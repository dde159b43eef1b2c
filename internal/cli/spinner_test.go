package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerDrawsAndClears(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), "Rendering...")
	s.out = &buf
	s.Start()
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Rendering...") {
		t.Errorf("spinner output %q missing message", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("spinner did not clear its line: %q", out)
	}
	if s.Cancelled() {
		t.Error("Stop() must not report cancellation")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	quietStatus(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinner(ctx, "Testing with context...")
	s.Start()
	cancel()
	s.Stop()

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	quietStatus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinner(ctx, "Testing with timeout...")
	s.Start()
	<-ctx.Done()
	s.Stop()

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	quietStatus(t)
	s := newSpinner(context.Background(), "Testing idempotent stop...")
	s.Start()

	s.Stop()
	s.Stop()
	s.StopWithError("Failed!")
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	quietStatus(t)
	s := newSpinner(context.Background(), "never started")
	s.Stop()
}
