// Package observability wires the runtime's ambient logging and metrics,
// shared by every component kind's transport shell.
package observability

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger. Production builds
// use zap's JSON production config; set development to true for the
// human-readable console encoder during local runs.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ComponentFields returns the base structured fields every log line for a
// given component instance should carry.
func ComponentFields(kind, name string) []zap.Field {
	return []zap.Field{
		zap.String("component_kind", kind),
		zap.String("component_name", name),
	}
}
