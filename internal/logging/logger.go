package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

// Logger writes structured log lines. Fields are merged into the entry.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// JSONLogger writes one JSON object per line through slog's JSON handler.
type JSONLogger struct {
	l *slog.Logger
}

func NewJSONLogger(out io.Writer) *JSONLogger {
	if out == nil {
		out = os.Stdout
	}
	return &JSONLogger{l: slog.New(slog.NewJSONHandler(out, nil))}
}

// Slog exposes the underlying logger for code that wants slog directly.
func (l *JSONLogger) Slog() *slog.Logger { return l.l }

func (l *JSONLogger) log(level slog.Level, msg string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.l.LogAttrs(context.Background(), level, msg, attrs...)
}

func (l *JSONLogger) Info(msg string, fields map[string]any) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *JSONLogger) Error(msg string, fields map[string]any) {
	l.log(slog.LevelError, msg, fields)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Info(string, map[string]any)  {}
func (Nop) Error(string, map[string]any) {}
