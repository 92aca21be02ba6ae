package Transformer

import (
	"github.com/paulmach/orb"
)

const sideEpsilon = 1e-12

// Side classifies p against the directed line a->b:
// +1 when p is on the left, -1 on the right, 0 on the line.
func Side(a, b, p orb.Point) int {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	switch {
	case cross > sideEpsilon:
		return 1
	case cross < -sideEpsilon:
		return -1
	default:
		return 0
	}
}

// HalfPlane is one side of the directed line A->B. An unflipped half-plane
// keeps the left side, a flipped one keeps the right side. Points on the
// line belong to both.
type HalfPlane struct {
	A       orb.Point
	B       orb.Point
	Flipped bool
}

func (h HalfPlane) degenerate() bool {
	return h.A.Equal(h.B)
}

func (h HalfPlane) Contains(p orb.Point) bool {
	if h.degenerate() {
		return true
	}
	s := Side(h.A, h.B, p)
	if h.Flipped {
		return s <= 0
	}
	return s >= 0
}

// signedDistance is proportional to the distance from the boundary, positive inside.
func (h HalfPlane) signedDistance(p orb.Point) float64 {
	cross := (h.B[0]-h.A[0])*(p[1]-h.A[1]) - (h.B[1]-h.A[1])*(p[0]-h.A[0])
	if h.Flipped {
		return -cross
	}
	return cross
}

// ClipRing clips a polygon ring against the half-plane (Sutherland-Hodgman).
// The result is closed, or empty when nothing remains.
func (h HalfPlane) ClipRing(ring orb.Ring) orb.Ring {
	if h.degenerate() {
		return ring
	}
	pts := openRing(ring)
	if len(pts) == 0 {
		return nil
	}

	var out orb.Ring
	prev := pts[len(pts)-1]
	prevIn := h.Contains(prev)
	for _, cur := range pts {
		curIn := h.Contains(cur)
		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, h.intersect(prev, cur), cur)
		case !curIn && prevIn:
			out = append(out, h.intersect(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	if len(out) < 3 {
		return nil
	}
	return append(out, out[0])
}

func (h HalfPlane) intersect(p, q orb.Point) orb.Point {
	dp := h.signedDistance(p)
	dq := h.signedDistance(q)
	if dp == dq {
		return p
	}
	t := dp / (dp - dq)
	return orb.Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}
}

// VisibleRegion intersects bounds with every half-plane in order.
func VisibleRegion(bounds orb.Bound, cuts []HalfPlane) orb.Ring {
	ring := bounds.ToRing()
	for _, c := range cuts {
		ring = c.ClipRing(ring)
		if len(ring) == 0 {
			return nil
		}
	}
	return ring
}

func openRing(ring orb.Ring) []orb.Point {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		return ring[:len(ring)-1]
	}
	return ring
}
