package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide slog.Logger. LOG_FORMAT=json selects
// the JSON handler, anything else gets text output.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
