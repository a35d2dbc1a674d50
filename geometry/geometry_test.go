package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBezierEvalEndpoints(t *testing.T) {
	b := QuadraticBezier3(Point{X: 0, Y: 0}, Point{X: 5, Y: 5}, Point{X: 10, Y: 0})
	p0, _ := b.Eval(0)
	p1, _ := b.Eval(1)
	assert.InDelta(t, 0, p0.X, 1e-4)
	assert.InDelta(t, 0, p0.Y, 1e-4)
	assert.InDelta(t, 10, p1.X, 1e-4)
	assert.InDelta(t, 0, p1.Y, 1e-4)
}

func TestBezierCurvatureZeroWhenStationary(t *testing.T) {
	b := Bezier3{P0: Point{}, P1: Point{}, P2: Point{}, P3: Point{}}
	_, _, curv := b.EvalWithCurv(0.5)
	assert.Equal(t, float32(0), curv)
}

func TestBezierSplitContinuity(t *testing.T) {
	b := QuadraticBezier3(Point{X: 0, Y: 0}, Point{X: 5, Y: 5}, Point{X: 10, Y: 0})
	left, right := b.Split(0.4)
	mid, _ := b.Eval(0.4)
	assert.InDelta(t, mid.X, left.P3.X, 1e-4)
	assert.InDelta(t, mid.X, right.P0.X, 1e-4)
}

func TestLineLineIntersectParallel(t *testing.T) {
	_, ok := LineLineIntersect(Point{0, 0, 0}, Point{1, 0, 0}, Point{0, 1, 0}, Point{1, 0, 0})
	assert.False(t, ok)
}

func TestLineSegmentIntersectBounds(t *testing.T) {
	u, v, ok := LineSegmentIntersect(
		Point{X: 0, Y: 0}, Point{X: 10, Y: 0},
		Point{X: 5, Y: -5}, Point{X: 0, Y: 10},
	)
	require.True(t, ok)
	assert.InDelta(t, 0.5, u, 1e-4)
	assert.InDelta(t, 0.5, v, 1e-4)

	_, _, ok = LineSegmentIntersect(
		Point{X: 0, Y: 0}, Point{X: 10, Y: 0},
		Point{X: 50, Y: -5}, Point{X: 0, Y: 10},
	)
	assert.False(t, ok)
}

func TestIntersectCircleRay(t *testing.T) {
	ray := Ray{Origin: Point{X: -10, Y: 0}, Dir: Point{X: 1, Y: 0}}
	tHit, ok := IntersectCircleRay(ray, Point{X: 0, Y: 0}, 2)
	require.True(t, ok)
	assert.InDelta(t, 8, tHit, 1e-3)
}
