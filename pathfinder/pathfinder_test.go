package pathfinder

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightLine(t *testing.T) (*graph.Manager, []graph.SegmentID) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 10})
	m := graph.NewManager(reg)
	a := m.AddNode(geometry.Point{X: 0, Y: 0})
	b := m.AddNode(geometry.Point{X: 100, Y: 0})
	c := m.AddNode(geometry.Point{X: 200, Y: 0})
	d := m.AddNode(geometry.Point{X: 300, Y: 0})
	s1, err := m.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)
	s2, err := m.AddSegment(b.ID, c.ID, 1, 1)
	require.NoError(t, err)
	s3, err := m.AddSegment(c.ID, d.ID, 1, 1)
	require.NoError(t, err)
	return m, []graph.SegmentID{s1.ID, s2.ID, s3.ID}
}

func TestFindStraightLine(t *testing.T) {
	m, segs := straightLine(t)
	path, err := Find(m, segs[0], segs[2])
	require.NoError(t, err)
	assert.Equal(t, segs, path)
}

func TestFindSameSegmentIsUnreachable(t *testing.T) {
	m, segs := straightLine(t)
	_, err := Find(m, segs[0], segs[0])
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFindDisconnectedGraph(t *testing.T) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 10})
	m := graph.NewManager(reg)
	a := m.AddNode(geometry.Point{X: 0, Y: 0})
	b := m.AddNode(geometry.Point{X: 100, Y: 0})
	s1, err := m.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)

	c := m.AddNode(geometry.Point{X: 500, Y: 0})
	d := m.AddNode(geometry.Point{X: 600, Y: 0})
	s2, err := m.AddSegment(c.ID, d.ID, 1, 1)
	require.NoError(t, err)

	_, err = Find(m, s1.ID, s2.ID)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFindZeroSpeedLimitUnusable(t *testing.T) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 10})
	reg.PutNetwork(asset.NetworkAsset{ID: 2, Width: 8, LaneCount: 1, SpeedLimit: 0})
	m := graph.NewManager(reg)
	a := m.AddNode(geometry.Point{X: 0, Y: 0})
	b := m.AddNode(geometry.Point{X: 100, Y: 0})
	c := m.AddNode(geometry.Point{X: 200, Y: 0})
	_, err := m.AddSegment(a.ID, b.ID, 2, 1) // unusable (speed limit 0)
	require.NoError(t, err)
	s2, err := m.AddSegment(b.ID, c.ID, 1, 1)
	require.NoError(t, err)

	s1seg, _ := m.Segment(graph.SegmentID(1))
	_ = s1seg
	_, err = Find(m, graph.SegmentID(1), s2.ID)
	assert.ErrorIs(t, err, ErrUnreachable)
}
