package navigation

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTwoSegmentPath(t *testing.T) (*graph.Manager, []graph.SegmentID) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 13.9})
	m := graph.NewManager(reg)
	a := m.AddNode(geometry.Point{X: 0, Y: 0})
	b := m.AddNode(geometry.Point{X: 100, Y: 0})
	c := m.AddNode(geometry.Point{X: 100, Y: 100})
	s1, err := m.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)
	s2, err := m.AddSegment(b.ID, c.ID, 1, 1)
	require.NoError(t, err)
	return m, []graph.SegmentID{s1.ID, s2.ID}
}

func TestCursorStepSequenceLength(t *testing.T) {
	m, path := buildTwoSegmentPath(t)
	rng := randengine.New(1)
	cfg := config.DefaultConstants()
	start := Endpoint{Pos: geometry.Point{X: -5, Y: 2}, Heading: geometry.Point{X: 1, Y: 0}}
	dest := Endpoint{Pos: geometry.Point{X: 105, Y: 105}}
	cur, err := NewCursor(m, cfg, path, start, dest, rng)
	require.NoError(t, err)
	assert.Equal(t, 5, cur.Len()) // START, SEG, NODE, SEG, END

	kinds := []MotionKind{}
	for i := 0; i < cur.Len(); i++ {
		mo, err := cur.Step(i)
		require.NoError(t, err)
		kinds = append(kinds, mo.Kind)
	}
	assert.Equal(t, []MotionKind{MotionStart, MotionSegment, MotionNode, MotionSegment, MotionEnd}, kinds)
}

func TestSegmentMotionHasCurLane(t *testing.T) {
	m, path := buildTwoSegmentPath(t)
	rng := randengine.New(1)
	cfg := config.DefaultConstants()
	start := Endpoint{Pos: geometry.Point{X: -5, Y: 2}}
	dest := Endpoint{Pos: geometry.Point{X: 105, Y: 105}}
	cur, err := NewCursor(m, cfg, path, start, dest, rng)
	require.NoError(t, err)
	mo, err := cur.Step(1)
	require.NoError(t, err)
	require.NotNil(t, mo.CurLane)
	assert.Equal(t, path[0], mo.CurLane.Segment)
}

func TestRepathRefusedOnMismatchedSegment(t *testing.T) {
	m, path := buildTwoSegmentPath(t)
	rng := randengine.New(1)
	cfg := config.DefaultConstants()
	start := Endpoint{Pos: geometry.Point{X: -5, Y: 2}}
	dest := Endpoint{Pos: geometry.Point{X: 105, Y: 105}}
	_, err := Repath(m, cfg, graph.LaneID{Segment: path[1]}, 0, []graph.SegmentID{path[0]}, start, dest, rng)
	assert.ErrorIs(t, err, ErrRepathRefused)
}
