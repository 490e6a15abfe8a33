package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAdapterWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	NewAdapter(l).Warn("notification emission failed", "template", "LOW_STOCK", "error", errors.New("store down"), "count", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["message"] != "notification emission failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["template"] != "LOW_STOCK" || entry["error"] != "store down" || entry["count"] != float64(3) {
		t.Fatalf("fields not mapped: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a := NewAdapter(l)
	a.Debug("hidden")
	a.Info("hidden")
	a.Error("shown", "id", "x")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("info", "console", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	NewAdapter(l).Info("inventory item added", "name", "Aspirin")
	out := buf.String()
	if !strings.Contains(out, "inventory item added") || !strings.Contains(out, "name=") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json", nil); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestFieldsHandlesOddArgs(t *testing.T) {
	got := fields([]any{"a", 1, 2, "b", "dangling"})
	if got["a"] != 1 || got["2"] != "b" || got["!BADKEY"] != "dangling" {
		t.Fatalf("unexpected fields %v", got)
	}
}
