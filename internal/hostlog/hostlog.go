// Package hostlog is a thin wrapper around the standard library's log
// package, matching the warning-to-stderr convention used throughout
// pkg/vault and internal/mcp rather than introducing a logging framework.
package hostlog

import (
	"log"
	"os"
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// Warnf logs a non-fatal warning. Callers that can recover from the
// underlying condition use this instead of returning an error.
func Warnf(format string, args ...any) {
	logger.Printf("warning: "+format, args...)
}

// Errorf logs an error that was already handled (e.g. via a fallback) but
// is still worth surfacing to whoever is watching stderr.
func Errorf(format string, args ...any) {
	logger.Printf("error: "+format, args...)
}
