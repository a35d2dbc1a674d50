package junction

import (
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
)

// Conflict is the Bézier-parameter interval over which two connections'
// thickened corridors overlap (spec §3.3). Zero-value AT1/BT1 with AT0==AT1
// means "no overlap."
type Conflict struct {
	AT0, AT1, BT0, BT1 float32
	Exists             bool
}

// ConflictKey order-normalizes a pair of connections so query(a,b) and
// query(b,a) hit the same cache entry (spec §3.3, §8.1).
type ConflictKey struct {
	A, B graph.Connection
}

func NewConflictKey(a, b graph.Connection) ConflictKey {
	if a.Less(b) {
		return ConflictKey{A: a, B: b}
	}
	return ConflictKey{A: b, B: a}
}

// computeConflict runs the spec §4.7 corridor-overlap test: COLLISION_STEPS
// segments on each of (left-offset, right-offset) polylines of both curves,
// four offset combinations, accumulating the min/max parameter where the
// thickened corridors cross.
func computeConflict(aBez, bBez geometry.Bezier3, aIn, aOut, bIn, bOut graph.SegLane, halfWidth float32, steps int) Conflict {
	aLeft := offsetPolyline(aBez, halfWidth, steps)
	aRight := offsetPolyline(aBez, -halfWidth, steps)
	bLeft := offsetPolyline(bBez, halfWidth, steps)
	bRight := offsetPolyline(bBez, -halfWidth, steps)

	var c Conflict
	uMin, uMax := float32(1), float32(0)
	vMin, vMax := float32(1), float32(0)

	for _, aPoly := range [][]geometry.Point{aLeft, aRight} {
		for _, bPoly := range [][]geometry.Point{bLeft, bRight} {
			for i := 0; i < steps; i++ {
				for j := 0; j < steps; j++ {
					u, v, ok := geometry.LineSegmentIntersect(aPoly[i], aPoly[i+1].Sub(aPoly[i]), bPoly[j], bPoly[j+1].Sub(bPoly[j]))
					if !ok {
						continue
					}
					gu := (float32(i) + u) / float32(steps)
					gv := (float32(j) + v) / float32(steps)
					if gu < uMin {
						uMin = gu
					}
					if gu > uMax {
						uMax = gu
					}
					if gv < vMin {
						vMin = gv
					}
					if gv > vMax {
						vMax = gv
					}
					c.Exists = true
				}
			}
		}
	}
	if !c.Exists {
		return c
	}
	if aIn == bIn {
		uMin = 0
	}
	if aOut == bOut {
		uMax = 1
	}
	c.AT0, c.AT1, c.BT0, c.BT1 = uMin, uMax, vMin, vMax
	return c
}

// offsetPolyline samples bez into steps+1 points, each shifted laterally by
// offset along the curve's local normal (rot90 of the unit tangent).
func offsetPolyline(bez geometry.Bezier3, offset float32, steps int) []geometry.Point {
	pts := make([]geometry.Point, steps+1)
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		pos, vel := bez.Eval(t)
		normal := vel.Normalize2D().Rot90()
		pts[i] = pos.Add(normal.Scale(offset))
	}
	return pts
}
