// Package logging is a thin wrapper over the standard logger with an
// explicit debug capability. Callers check Debug() before serializing debug
// payloads so the serialization cost is only paid when wanted.
package logging

import (
	"io"
	"log"
)

// Logger writes leveled lines to one destination.
type Logger struct {
	base  *log.Logger
	debug bool
}

// New builds a logger. debug enables Debugf output and the Debug capability.
func New(w io.Writer, debug bool) *Logger {
	return &Logger{base: log.New(w, "", log.LstdFlags|log.Lmsgprefix), debug: debug}
}

// Default logs to the process standard logger destination.
func Default(debug bool) *Logger {
	return &Logger{base: log.Default(), debug: debug}
}

// Debug reports whether debug output is wanted.
func (l *Logger) Debug() bool { return l != nil && l.debug }

// Debugf logs a debug line when debug output is wanted.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.Debug() {
		return
	}
	l.base.Printf("DEBUG "+format, args...)
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.base.Printf("INFO "+format, args...)
}

// Errorf logs an error line.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.base.Printf("ERROR "+format, args...)
}
