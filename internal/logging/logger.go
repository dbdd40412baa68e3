// Package logging wraps the shared logger used across the optimizer passes.
package logging

import "go.uber.org/zap"

// Logger encapsulates a logger and the pass it belongs to.
// Use this through SetLogger() of a pass.
type Logger struct {
	*zap.SugaredLogger
	module string
}

// LogSetter is implemented by passes that accept a shared logger.
type LogSetter interface {
	SetLogger(*Logger)
}

// Named returns a copy of the logger tagged with a pass name.
func (l *Logger) Named(module string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(module), module: module}
}

// Module returns the pass name the logger is tagged with.
func (l *Logger) Module() string {
	return l.module
}
