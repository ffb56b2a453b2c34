package geom

import (
	"math"
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3CrossParallel(t *testing.T) {
	a := Vec3{2, 4, 6}
	b := Vec3{1, 2, 3}
	got := a.Cross(b)
	if !got.IsZero() {
		t.Errorf("cross of parallel vectors = %v, want zero", got)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 4, 0}
	n := v.Normalize()
	if math.Abs(n.Length()-1) > 1e-12 {
		t.Errorf("Normalize().Length() = %v, want 1", n.Length())
	}
}

func TestVec3NormalizeZero(t *testing.T) {
	n := Vec3{}.Normalize()
	if !n.IsZero() {
		t.Errorf("zero vector normalized to %v, want zero", n)
	}
}

func TestBoundsExtend(t *testing.T) {
	b := NewBounds()
	if b.Valid() {
		t.Fatal("empty bounds should not be valid")
	}

	points := []Vec3{{1, 2, 3}, {-1, 5, 0}, {4, -2, 1}}
	for _, p := range points {
		b.Extend(p)
	}

	if !b.Valid() {
		t.Fatal("bounds with points should be valid")
	}
	wantMin := Vec3{-1, -2, 0}
	wantMax := Vec3{4, 5, 3}
	if b.Min != wantMin || b.Max != wantMax {
		t.Errorf("bounds = [%v, %v], want [%v, %v]", b.Min, b.Max, wantMin, wantMax)
	}
	if got := b.Size(); got != (Vec3{5, 7, 3}) {
		t.Errorf("Size() = %v, want {5 7 3}", got)
	}
}

func TestBoundsCenter(t *testing.T) {
	b := NewBounds()
	b.Extend(Vec3{0, 0, 0})
	b.Extend(Vec3{2, 4, 6})
	if got := b.Center(); got != (Vec3{1, 2, 3}) {
		t.Errorf("Center() = %v, want {1 2 3}", got)
	}
}
