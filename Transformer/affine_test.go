package Transformer

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPoint(t *testing.T, want, got orb.Point) {
	t.Helper()
	assert.InDelta(t, want[0], got[0], 1e-9, "x")
	assert.InDelta(t, want[1], got[1], 1e-9, "y")
}

func TestRotateIsCounterClockwise(t *testing.T) {
	assertPoint(t, orb.Point{0, 1}, Rotate(90).Apply(orb.Point{1, 0}))
	assertPoint(t, orb.Point{-1, 0}, Rotate(180).Apply(orb.Point{1, 0}))
}

func TestRotatePoint(t *testing.T) {
	assertPoint(t, orb.Point{0, 1}, RotatePoint(orb.Point{1, 0}, orb.Point{0, 0}, 90))
	assertPoint(t, orb.Point{0, 1}, RotatePoint(orb.Point{2, 1}, orb.Point{1, 1}, 180))
	// a full turn in thirds comes back to the start
	p := orb.Point{5, 3}
	c := orb.Point{2, 2}
	assertPoint(t, p, RotatePoint(RotatePoint(RotatePoint(p, c, 120), c, 120), c, 120))
	assert.InDelta(t, Distance(p, c), Distance(RotatePoint(p, c, 37), c), 1e-9)
}

func TestComposeAppliesInOrder(t *testing.T) {
	m := Compose(Translate(-10, 0), Scale(0.5, 0.5))
	assertPoint(t, orb.Point{0, 0}, m.Apply(orb.Point{10, 0}))
	assertPoint(t, orb.Point{5, 1}, m.Apply(orb.Point{20, 2}))

	n := Compose(Scale(0.5, 0.5), Translate(-10, 0))
	assertPoint(t, orb.Point{-5, 0}, n.Apply(orb.Point{10, 0}))
}

func TestInvertRoundTrip(t *testing.T) {
	m := Compose(Translate(-120, 45), Rotate(33), Scale(0.02, 0.02))
	inv, err := m.Invert()
	require.NoError(t, err)
	for _, p := range []orb.Point{{0, 0}, {120, -45}, {1e4, 3.5}} {
		assertPoint(t, p, inv.Apply(m.Apply(p)))
	}
	assertPoint(t, orb.Point{1, 0}, m.Then(inv).Apply(orb.Point{1, 0}))
}

func TestInvertSingular(t *testing.T) {
	_, err := Scale(0, 1).Invert()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 5.0, Distance(orb.Point{10, 20}, orb.Point{13, 24}))
}

func TestSide(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{10, 0}
	assert.Equal(t, 1, Side(a, b, orb.Point{5, 3}))
	assert.Equal(t, -1, Side(a, b, orb.Point{5, -3}))
	assert.Equal(t, 0, Side(a, b, orb.Point{20, 0}))
}

func TestHalfPlanesAreComplementary(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}
	a, b := orb.Point{0, 50}, orb.Point{100, 50}

	keep := VisibleRegion(bounds, []HalfPlane{{A: a, B: b}})
	other := VisibleRegion(bounds, []HalfPlane{{A: a, B: b, Flipped: true}})
	require.NotEmpty(t, keep)
	require.NotEmpty(t, other)
	assert.InDelta(t, 5000, planar.Area(orb.Polygon{keep}), 1e-6)
	assert.InDelta(t, 5000, planar.Area(orb.Polygon{other}), 1e-6)

	assert.True(t, HalfPlane{A: a, B: b}.Contains(orb.Point{50, 75}))
	assert.False(t, HalfPlane{A: a, B: b, Flipped: true}.Contains(orb.Point{50, 75}))
}

func TestCutChainIsIntersection(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}
	cuts := []HalfPlane{
		{A: orb.Point{0, 50}, B: orb.Point{100, 50}},
		{A: orb.Point{50, 0}, B: orb.Point{50, 100}, Flipped: true},
	}
	ring := VisibleRegion(bounds, cuts)
	assert.InDelta(t, 2500, planar.Area(orb.Polygon{ring}), 1e-6)
	c, _ := planar.CentroidArea(orb.Polygon{ring})
	assert.InDelta(t, 75, c[0], 1e-6)
	assert.InDelta(t, 75, c[1], 1e-6)
}

func TestCutOutsideBoundsKeepsAllOrNothing(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}
	a, b := orb.Point{-9999, -9999}, orb.Point{-9999, 99999}

	all := VisibleRegion(bounds, []HalfPlane{{A: a, B: b, Flipped: true}})
	assert.InDelta(t, 10000, planar.Area(orb.Polygon{all}), 1e-6)
	assert.Empty(t, VisibleRegion(bounds, []HalfPlane{{A: a, B: b}}))
}

func TestDegenerateCutKeepsEverything(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	ring := VisibleRegion(bounds, []HalfPlane{{A: orb.Point{5, 5}, B: orb.Point{5, 5}}})
	assert.False(t, math.IsNaN(planar.Area(orb.Polygon{ring})))
	assert.InDelta(t, 100, planar.Area(orb.Polygon{ring}), 1e-9)
}
