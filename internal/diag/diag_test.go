package diag

import (
	"strings"
	"testing"
)

func TestRecorder(t *testing.T) {
	var rec Recorder

	rec.Geometryf("degenerate face %d skipped", 7)
	rec.Structuralf("missing %s subtree", "physics")

	if rec.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", rec.Count())
	}

	warnings := rec.Warnings()
	if warnings[0].Kind != Geometry || !strings.Contains(warnings[0].Msg, "face 7") {
		t.Errorf("first diagnostic = %+v", warnings[0])
	}
	if warnings[1].Kind != Structural || !strings.Contains(warnings[1].Msg, "physics") {
		t.Errorf("second diagnostic = %+v", warnings[1])
	}
}

func TestKindString(t *testing.T) {
	if Geometry.String() != "geometry" {
		t.Errorf("Geometry.String() = %q", Geometry.String())
	}
	if Structural.String() != "structural" {
		t.Errorf("Structural.String() = %q", Structural.String())
	}
	if Kind(9).String() != "unknown(9)" {
		t.Errorf("Kind(9).String() = %q", Kind(9).String())
	}
}
