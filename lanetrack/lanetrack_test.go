package lanetrack

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneLaneSeg(t *testing.T) (*graph.Manager, *graph.Segment) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 13.9})
	m := graph.NewManager(reg)
	a := m.AddNode(geometry.Point{X: 0, Y: 0})
	b := m.AddNode(geometry.Point{X: 100, Y: 0})
	seg, err := m.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)
	return m, seg
}

func TestInsertOrdersNearestExitFirst(t *testing.T) {
	g, seg := oneLaneSeg(t)
	m := NewManager(g)
	lane := seg.Lanes[0].ID

	lead := vehicle.New(1, 1, 4, 1)
	lead.BezT = 0.8
	follower := vehicle.New(2, 1, 4, 1)
	follower.BezT = 0.2

	m.Insert(lane, follower)
	m.Insert(lane, lead)

	vs := m.Vehicles(lane)
	require.Len(t, vs, 2)
	assert.Equal(t, lead.ID, vs[0].ID)
	assert.Equal(t, follower.ID, vs[1].ID)
}

func TestSegmentPassPropagatesBrake(t *testing.T) {
	g, seg := oneLaneSeg(t)
	m := NewManager(g)
	lane := seg.Lanes[0].ID
	cfg := config.DefaultConstants()

	lead := vehicle.New(1, 1, 4, 1)
	lead.BezT = 0.5
	lead.BezSpeed = 10
	follower := vehicle.New(2, 1, 4, 1)
	follower.BezT = 0.49
	follower.BezSpeed = 10
	follower.Brake = 1

	m.Insert(lane, lead)
	m.Insert(lane, follower)

	m.UpdateSegmentPass(seg, cfg, map[graph.LaneID]float64{})
	assert.Less(t, follower.Brake, 1.0)
}

func TestRemoveDropsFromLane(t *testing.T) {
	g, seg := oneLaneSeg(t)
	m := NewManager(g)
	lane := seg.Lanes[0].ID
	v := vehicle.New(1, 1, 4, 1)
	m.Insert(lane, v)
	m.Remove(v)
	assert.Empty(t, m.Vehicles(lane))
}
