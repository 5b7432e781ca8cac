// Package xlog provides the instancer module's logging facade.
package xlog

import "github.com/npillmayer/schuko/tracing"

// Tracer returns the trace sink for the instancer package.
func Tracer() tracing.Trace {
	return tracing.Select("instancer")
}
