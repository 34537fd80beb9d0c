package main

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. JSON output keeps the
// per-frame analysis records machine-parseable for downstream tooling.
func NewLogger(level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
