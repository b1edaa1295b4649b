// Package logging sets up the bootloader's structured logger. It mirrors
// the teacher's telemetry.SlogHandler pattern of wrapping a text handler,
// but drops the OTLP bridging half: spec.md section 1 names logging sinks
// an external collaborator with a defined contract only, so this package
// commits to log/slog as the logging idiom without also owning where the
// bytes end up.
package logging

import (
	"io"
	"log/slog"
)

// New builds a slog.Logger that writes level-tagged text lines to w. On the
// board, w is the debug UART; in tests and cmd/tester, it is any io.Writer.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop discards all records. Core packages default to this so call sites
// never need the teacher's repeated "if logger != nil" guard.
func Noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
