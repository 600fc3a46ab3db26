package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug)

	tests := []struct {
		name     string
		fn       func()
		expected []string
	}{
		{
			name:     "Info",
			fn:       func() { l.Info("test message") },
			expected: []string{"INF", "test message"},
		},
		{
			name:     "Warn",
			fn:       func() { l.Warn("warning message") },
			expected: []string{"WRN", "warning message"},
		},
		{
			name:     "Error",
			fn:       func() { l.Error("error message") },
			expected: []string{"ERR", "error message"},
		},
		{
			name:     "Debug",
			fn:       func() { l.Debug("debug message") },
			expected: []string{"DBG", "debug message"},
		},
		{
			name:     "Info with attrs",
			fn:       func() { l.Info("imported", "id", 42, "bytes", 1024) },
			expected: []string{"INF", "imported", "id=42", "bytes=1024"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn()
			got := strings.TrimSpace(buf.String())
			for _, want := range tt.expected {
				if !strings.Contains(got, want) {
					t.Errorf("got %q, want it to contain %q", got, want)
				}
			}
			if strings.Contains(got, "\x1b[") {
				t.Errorf("expected no color codes for a non-terminal writer, got %q", got)
			}
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)

	l.Info("hidden")
	l.Debug("hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}

	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn message, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	if Default == nil {
		t.Error("Default logger should not be nil")
	}
	if Discard == nil {
		t.Error("Discard logger should not be nil")
	}

	Discard.Info("test")
}
