package Transformer

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// ErrSingular is returned when an affine transform cannot be inverted.
var ErrSingular = errors.New("affine transform is singular")

// Affine is a 2D affine transform:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

func Identity() Affine {
	return Affine{A: 1, E: 1}
}

func Translate(dx, dy float64) Affine {
	return Affine{A: 1, C: dx, E: 1, F: dy}
}

func Scale(sx, sy float64) Affine {
	return Affine{A: sx, E: sy}
}

// Rotate returns a counter-clockwise rotation about the origin. deg is in degrees.
func Rotate(deg float64) Affine {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Affine{A: cos, B: -sin, D: sin, E: cos}
}

// Then returns the transform that applies m first and next second.
func (m Affine) Then(next Affine) Affine {
	return Affine{
		A: next.A*m.A + next.B*m.D,
		B: next.A*m.B + next.B*m.E,
		C: next.A*m.C + next.B*m.F + next.C,
		D: next.D*m.A + next.E*m.D,
		E: next.D*m.B + next.E*m.E,
		F: next.D*m.C + next.E*m.F + next.F,
	}
}

// Compose chains transforms in application order: Compose(a, b, c) applies a, then b, then c.
func Compose(steps ...Affine) Affine {
	out := Identity()
	for _, s := range steps {
		out = out.Then(s)
	}
	return out
}

func (m Affine) Apply(p orb.Point) orb.Point {
	return orb.Point{
		m.A*p[0] + m.B*p[1] + m.C,
		m.D*p[0] + m.E*p[1] + m.F,
	}
}

// Linear drops the translation part.
func (m Affine) Linear() Affine {
	return Affine{A: m.A, B: m.B, D: m.D, E: m.E}
}

func (m Affine) Determinant() float64 {
	return m.A*m.E - m.B*m.D
}

func (m Affine) Invert() (Affine, error) {
	det := m.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, ErrSingular
	}
	inv := Affine{
		A: m.E / det,
		B: -m.B / det,
		D: -m.D / det,
		E: m.A / det,
	}
	inv.C = -(inv.A*m.C + inv.B*m.F)
	inv.F = -(inv.D*m.C + inv.E*m.F)
	return inv, nil
}

// Matrix returns the transform as a row-major 3x3 matrix.
func (m Affine) Matrix() [3][3]float64 {
	return [3][3]float64{
		{m.A, m.B, m.C},
		{m.D, m.E, m.F},
		{0, 0, 1},
	}
}

// RotatePoint rotates point A around point B by angle degrees, counter-clockwise.
func RotatePoint(A, B orb.Point, angle float64) orb.Point {
	return Compose(Translate(-B[0], -B[1]), Rotate(angle), Translate(B[0], B[1])).Apply(A)
}

// Distance is the Euclidean distance between two points.
func Distance(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}
