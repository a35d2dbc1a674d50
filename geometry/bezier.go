package geometry

import "math"

// Bezier3 is a cubic Bezier curve in the XY plane. Quadratic curves (the
// common case for short node-to-node hops) are represented by collapsing P1
// and P2 onto the same point, matching the teacher's convention of only
// carrying a cubic control-point quad everywhere.
type Bezier3 struct {
	P0, P1, P2, P3 Point
}

// QuadraticBezier3 builds a cubic-form curve equivalent to the quadratic
// curve through (p0, ctrl, p2).
func QuadraticBezier3(p0, ctrl, p2 Point) Bezier3 {
	c1 := Blend(p0, ctrl, 2.0/3.0)
	c2 := Blend(p2, ctrl, 2.0/3.0)
	return Bezier3{P0: p0, P1: c1, P2: c2, P3: p2}
}

// Eval returns the position and velocity (first derivative wrt t) at t.
func (b Bezier3) Eval(t float32) (pos, vel Point) {
	mt := 1 - t
	mt2 := mt * mt
	t2 := t * t

	pos = b.P0.Scale(mt2 * mt).
		Add(b.P1.Scale(3 * mt2 * t)).
		Add(b.P2.Scale(3 * mt * t2)).
		Add(b.P3.Scale(t2 * t))

	vel = b.P1.Sub(b.P0).Scale(3 * mt2).
		Add(b.P2.Sub(b.P1).Scale(6 * mt * t)).
		Add(b.P3.Sub(b.P2).Scale(3 * t2))
	return
}

// EvalWithCurv additionally returns the signed curvature at t.
// curv = (vx*ay - ax*vy) / (vx^2+vy^2)^(3/2); 0 when the curve is nearly
// stationary (|vel|^2 < Epsilon).
func (b Bezier3) EvalWithCurv(t float32) (pos, vel Point, curv float32) {
	mt := 1 - t

	pos, vel = b.Eval(t)

	accel := b.P0.Scale(6 * mt).
		Add(b.P1.Scale(6*t - 12*mt)).
		Add(b.P2.Scale(6*mt - 12*t)).
		Add(b.P3.Scale(6 * t))

	speed2 := vel.X*vel.X + vel.Y*vel.Y
	if speed2 < Epsilon {
		return pos, vel, 0
	}
	num := vel.X*accel.Y - accel.X*vel.Y
	denom := float32(math.Pow(float64(speed2), 1.5))
	return pos, vel, num / denom
}

// ApproxLen approximates the arc length of the curve by sampling steps+1
// points and summing chord lengths.
func (b Bezier3) ApproxLen(steps int) float32 {
	if steps < 1 {
		steps = 1
	}
	var total float32
	prev, _ := b.Eval(0)
	for i := 1; i <= steps; i++ {
		t := float32(i) / float32(steps)
		cur, _ := b.Eval(t)
		total += cur.Dist2D(prev)
		prev = cur
	}
	return total
}

// Split performs De Casteljau subdivision at t, returning the two halves of
// the curve. Used by the node-curve cache to avoid re-evaluating a full
// curve per collision step when only a sub-interval is needed.
func (b Bezier3) Split(t float32) (left, right Bezier3) {
	p01 := Blend(b.P0, b.P1, t)
	p12 := Blend(b.P1, b.P2, t)
	p23 := Blend(b.P2, b.P3, t)
	p012 := Blend(p01, p12, t)
	p123 := Blend(p12, p23, t)
	p0123 := Blend(p012, p123, t)

	left = Bezier3{P0: b.P0, P1: p01, P2: p012, P3: p0123}
	right = Bezier3{P0: p0123, P1: p123, P2: p23, P3: b.P3}
	return
}

// Polyline samples the curve at steps+1 evenly spaced t values.
func (b Bezier3) Polyline(steps int) []Point {
	if steps < 1 {
		steps = 1
	}
	pts := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		p, _ := b.Eval(float32(i) / float32(steps))
		pts = append(pts, p)
	}
	return pts
}
