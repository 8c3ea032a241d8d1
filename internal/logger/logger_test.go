package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJobFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	log.Info("stage", Job("j1", "  Acme  ")...)
	log.Info("stage", Job("j2", "   ")...)

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first[FieldJobID] != "j1" || first["company"] != "Acme" {
		t.Fatalf("unexpected fields: %v", first)
	}

	second := entries[1].ContextMap()
	if _, ok := second["company"]; ok {
		t.Fatalf("expected empty company to be omitted, got %v", second)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected fallback logger when nil provided")
	}

	// Ensure logging with the fallback logger does not panic.
	OrNop(nil).Info("noop")
}

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{name: "short", input: "  hello ", limit: 10, want: "hello"},
		{name: "exact", input: "hello", limit: 5, want: "hello"},
		{name: "long", input: strings.Repeat("é", 8), limit: 3, want: "ééé..."},
		{name: "zero limit", input: "hello", limit: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateForLog(tt.input, tt.limit); got != tt.want {
				t.Errorf("TruncateForLog(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
		})
	}
}
