// Package geometry provides the 2D/3D math primitives the simulation core
// builds on: points, cubic Bezier curves, line/segment intersection, and the
// hover-pick primitives used by the interaction surface.
//
// All evaluation is single precision; the simulation does not need more and
// the smaller footprint matters when thousands of curves are cached per
// intersection.
package geometry

import "math"

// Epsilon guards divisions where a near-zero velocity would blow up
// curvature or direction calculations.
const Epsilon = 1e-6

// Point is a 3-space position. Z is carried through for world placement but
// ignored by the 2D curve math (bezier control points live in the XY plane).
type Point struct {
	X, Y, Z float32
}

func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }
func (p Point) Sub(o Point) Point { return Point{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }
func (p Point) Scale(k float32) Point {
	return Point{p.X * k, p.Y * k, p.Z * k}
}

// Len2D returns the planar (XY) length of the vector.
func (p Point) Len2D() float32 {
	return float32(math.Sqrt(float64(p.X*p.X + p.Y*p.Y)))
}

func (p Point) Dist2D(o Point) float32 {
	return p.Sub(o).Len2D()
}

// Normalize2D returns a unit-length vector in the XY plane, or the zero
// vector if the input is (near) zero.
func (p Point) Normalize2D() Point {
	l := p.Len2D()
	if l < Epsilon {
		return Point{}
	}
	return Point{p.X / l, p.Y / l, 0}
}

// Rot90 rotates a 2D vector by +90 degrees (CCW).
func (p Point) Rot90() Point {
	return Point{-p.Y, p.X, p.Z}
}

func Dot2D(a, b Point) float32 {
	return a.X*b.X + a.Y*b.Y
}

// Blend linearly interpolates between a and b by k in [0,1].
func Blend(a, b Point, k float32) Point {
	return Point{
		X: a.X + (b.X-a.X)*k,
		Y: a.Y + (b.Y-a.Y)*k,
		Z: a.Z + (b.Z-a.Z)*k,
	}
}

// Direction is the heading (radians, atan2 convention) of a polyline
// segment.
type Direction struct {
	Angle float32
}

// PolylineLengths2D returns the cumulative arc length at each vertex of line,
// in the XY plane. lengths[0] == 0, lengths[len-1] == total length.
func PolylineLengths2D(line []Point) []float32 {
	lengths := make([]float32, len(line))
	for i := 1; i < len(line); i++ {
		lengths[i] = lengths[i-1] + line[i].Dist2D(line[i-1])
	}
	return lengths
}

// PolylineDirections returns, for each of the len(line)-1 segments, its
// heading.
func PolylineDirections(line []Point) []Direction {
	dirs := make([]Direction, 0, len(line)-1)
	for i := 1; i < len(line); i++ {
		d := line[i].Sub(line[i-1])
		dirs = append(dirs, Direction{Angle: float32(math.Atan2(float64(d.Y), float64(d.X)))})
	}
	return dirs
}
