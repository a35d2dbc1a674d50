package geometry

import "math"

// LineLineIntersect finds the intersection of the infinite lines
// a + u*ab and c + v*cd. Returns ok=false for parallel (or near-parallel)
// lines.
func LineLineIntersect(a, ab, c, cd Point) (pt Point, ok bool) {
	denom := ab.X*cd.Y - ab.Y*cd.X
	if float32(math.Abs(float64(denom))) < Epsilon {
		return Point{}, false
	}
	diff := c.Sub(a)
	u := (diff.X*cd.Y - diff.Y*cd.X) / denom
	pt = a.Add(ab.Scale(u))
	return pt, true
}

// LineSegmentIntersect finds u, v such that a+u*ab == c+v*cd, only reporting
// a hit when both u and v fall in [0,1] (i.e. the intersection lies on both
// finite segments).
func LineSegmentIntersect(a, ab, c, cd Point) (u, v float32, ok bool) {
	denom := ab.X*cd.Y - ab.Y*cd.X
	if float32(math.Abs(float64(denom))) < Epsilon {
		return 0, 0, false
	}
	diff := c.Sub(a)
	u = (diff.X*cd.Y - diff.Y*cd.X) / denom
	v = (diff.X*ab.Y - diff.Y*ab.X) / denom
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return u, v, false
	}
	return u, v, true
}

// Ray is a 3-space ray used for hover picking against graph entities.
type Ray struct {
	Origin, Dir Point
}

// IntersectCircleRay intersects a ray (treated in the XY plane) with a
// circle of given center and radius, returning the nearest positive-t hit.
func IntersectCircleRay(ray Ray, center Point, radius float32) (t float32, ok bool) {
	oc := ray.Origin.Sub(center)
	a := ray.Dir.X*ray.Dir.X + ray.Dir.Y*ray.Dir.Y
	if a < Epsilon {
		return 0, false
	}
	b := 2 * (oc.X*ray.Dir.X + oc.Y*ray.Dir.Y)
	c := oc.X*oc.X + oc.Y*oc.Y - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t0 := (-b - sq) / (2 * a)
	t1 := (-b + sq) / (2 * a)
	if t0 > 0 {
		return t0, true
	}
	if t1 > 0 {
		return t1, true
	}
	return 0, false
}

// Rect is an axis-aligned-in-its-own-frame rectangle used for building
// footprints during hover picking.
type Rect struct {
	Center     Point
	HalfW, HalfH float32
	Angle      float32 // rotation about Z, radians
}

// IntersectRectRay intersects a ray against the rectangle by transforming
// the ray into the rectangle's local frame and doing a 2D slab test.
func IntersectRectRay(ray Ray, r Rect) (t float32, ok bool) {
	cos, sin := float32(math.Cos(float64(-r.Angle))), float32(math.Sin(float64(-r.Angle)))
	rel := ray.Origin.Sub(r.Center)
	lx := rel.X*cos - rel.Y*sin
	ly := rel.X*sin + rel.Y*cos
	dx := ray.Dir.X*cos - ray.Dir.Y*sin
	dy := ray.Dir.X*sin + ray.Dir.Y*cos

	tMin, tMax := float32(math.Inf(-1)), float32(math.Inf(1))
	for _, axis := range [2][3]float32{{lx, dx, r.HalfW}, {ly, dy, r.HalfH}} {
		pos, dir, half := axis[0], axis[1], axis[2]
		if float32(math.Abs(float64(dir))) < Epsilon {
			if pos < -half || pos > half {
				return 0, false
			}
			continue
		}
		t0 := (-half - pos) / dir
		t1 := (half - pos) / dir
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return 0, false
		}
	}
	if tMax < 0 {
		return 0, false
	}
	if tMin >= 0 {
		return tMin, true
	}
	return tMax, true
}

// AABB is an axis-aligned bounding box, used only by FrustumCullAABB which
// is a rendering-side convenience the core exposes but never calls itself.
type AABB struct {
	Min, Max Point
}

// Frustum is six half-space planes (normal, distance) whose inside is
// normal.dot(p) + distance >= 0 for all six.
type Frustum struct {
	Planes [6]Plane
}

type Plane struct {
	Normal Point
	D      float32
}

// FrustumCullAABB reports whether aabb lies entirely outside the frustum.
// This belongs to the rendering collaborator; the core exposes it purely as
// a geometry utility so a caller does not need its own AABB/plane math.
func FrustumCullAABB(f Frustum, box AABB) (culled bool) {
	for _, p := range f.Planes {
		// find the positive vertex wrt the plane normal
		px := box.Min.X
		if p.Normal.X >= 0 {
			px = box.Max.X
		}
		py := box.Min.Y
		if p.Normal.Y >= 0 {
			py = box.Max.Y
		}
		pz := box.Min.Z
		if p.Normal.Z >= 0 {
			pz = box.Max.Z
		}
		if p.Normal.X*px+p.Normal.Y*py+p.Normal.Z*pz+p.D < 0 {
			return true
		}
	}
	return false
}
