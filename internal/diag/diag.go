// Package diag collects non-fatal diagnostics raised during a repair run.
//
// Geometry and structural warnings never abort a stage; they are logged as
// they occur and reported to the caller when the run completes.
package diag

import (
	"fmt"

	"github.com/osmsim/worldfix/internal/logger"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// Geometry covers degenerate faces, isolated vertices, and
	// undetectable bounding boxes.
	Geometry Kind = iota
	// Structural covers missing descriptor subtrees filled with defaults.
	Structural
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Geometry:
		return "geometry"
	case Structural:
		return "structural"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Diagnostic is one non-fatal condition with its documented fallback applied.
type Diagnostic struct {
	Kind Kind
	Msg  string
}

// Recorder accumulates diagnostics and mirrors them to the log.
type Recorder struct {
	warnings []Diagnostic
}

// Geometryf records a geometry warning.
func (r *Recorder) Geometryf(format string, args ...any) {
	r.add(Geometry, format, args...)
}

// Structuralf records a structural warning.
func (r *Recorder) Structuralf(format string, args ...any) {
	r.add(Structural, format, args...)
}

func (r *Recorder) add(kind Kind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, Diagnostic{Kind: kind, Msg: msg})
	logger.Sugar.Warnf("[%s] %s", kind, msg)
}

// Warnings returns all recorded diagnostics in order.
func (r *Recorder) Warnings() []Diagnostic {
	return r.warnings
}

// Count returns the number of recorded diagnostics.
func (r *Recorder) Count() int {
	return len(r.warnings)
}
