package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestVerboseToggle(t *testing.T) {
	defer SetVerbose(false)

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose after SetVerbose(true)")
	}
	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected quiet after SetVerbose(false)")
	}
}

func TestVerboseLevels(t *testing.T) {
	buf := capture(t)
	SetVerbose(true)

	Debug("chunks: %d", 7)
	Info("ingested %s", "txns")
	Warn("provider %s failed", "ollama")
	Section("Retrieval")

	want := "[DEBUG] chunks: 7\n" +
		"[INFO] ingested txns\n" +
		"[WARN] provider ollama failed\n" +
		"\n=== Retrieval ===\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\n%q\nwant:\n%q", got, want)
	}
}

func TestQuietSuppressesAllButError(t *testing.T) {
	buf := capture(t)
	SetVerbose(false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	if buf.Len() > 0 {
		t.Errorf("expected no output when quiet, got %q", buf.String())
	}

	Error("store: %v", "disk full")
	if got := buf.String(); got != "[ERROR] store: disk full\n" {
		t.Errorf("errors must print regardless of verbosity, got %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	capture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetVerbose(true)
			Debug("concurrent %d", n)
			IsVerbose()
			SetVerbose(false)
		}(i)
	}
	wg.Wait()
}
