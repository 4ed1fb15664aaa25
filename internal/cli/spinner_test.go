package cli

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestSpinnerWritesFrames(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(context.Background(), "Running queries...")
	s.out = &buf

	s.Start()
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	s.mu.Lock()
	out := buf.String()
	s.mu.Unlock()
	if !bytes.Contains([]byte(out), []byte("Running queries...")) {
		t.Errorf("spinner output %q should contain the message", out)
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "work")
	s.out = &bytes.Buffer{}
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()

	if s.Cancelled() {
		t.Error("Cancelled() = true after a plain Stop, want false")
	}
}

func TestSpinnerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerWithContext(ctx, "work")
	s.out = &bytes.Buffer{}
	s.Start()

	cancel()
	<-s.stopped

	if !s.Cancelled() {
		t.Error("Cancelled() = false after context cancellation, want true")
	}
}

func TestSpinnerContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), spinnerInterval)
	defer cancel()

	s := newSpinnerWithContext(ctx, "work")
	s.out = &bytes.Buffer{}
	s.Start()

	<-s.stopped
	if !s.Cancelled() {
		t.Error("Cancelled() = false after context timeout, want true")
	}
}
