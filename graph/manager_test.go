package graph

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFourWay(t *testing.T) (*Manager, map[string]NodeID, map[string]SegmentID) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 2, SpeedLimit: 13.9})
	m := NewManager(reg)

	center := m.AddNode(geometry.Point{X: 0, Y: 0})
	n := m.AddNode(geometry.Point{X: 0, Y: 100})
	s := m.AddNode(geometry.Point{X: 0, Y: -100})
	e := m.AddNode(geometry.Point{X: 100, Y: 0})
	w := m.AddNode(geometry.Point{X: -100, Y: 0})

	segN, err := m.AddSegment(center.ID, n.ID, 1, 2)
	require.NoError(t, err)
	segS, err := m.AddSegment(s.ID, center.ID, 1, 2)
	require.NoError(t, err)
	segE, err := m.AddSegment(center.ID, e.ID, 1, 2)
	require.NoError(t, err)
	segW, err := m.AddSegment(center.ID, w.ID, 1, 2)
	require.NoError(t, err)

	nodes := map[string]NodeID{"center": center.ID, "n": n.ID, "s": s.ID, "e": e.ID, "w": w.ID}
	segs := map[string]SegmentID{"N": segN.ID, "S": segS.ID, "E": segE.ID, "W": segW.ID}
	return m, nodes, segs
}

func TestUpdateCachedNodeSortsByBearing(t *testing.T) {
	m, nodes, _ := newFourWay(t)
	center, _ := m.Node(nodes["center"])
	require.Len(t, center.Segments, 4)
	for i := 1; i < len(center.Segments); i++ {
		assert.LessOrEqual(t, center.Segments[i-1].Bearing, center.Segments[i].Bearing)
	}
}

func TestClassifyTurnStraightAcrossCross(t *testing.T) {
	m, nodes, segs := newFourWay(t)
	// travelling S -> center -> N is straight through.
	turn, err := m.ClassifyTurn(nodes["center"], segs["S"], segs["N"])
	require.NoError(t, err)
	assert.Equal(t, TurnStraight, turn)

	// and the reverse direction N -> center -> S is also straight.
	turn2, err := m.ClassifyTurn(nodes["center"], segs["N"], segs["S"])
	require.NoError(t, err)
	assert.Equal(t, TurnStraight, turn2)
}

func TestClassifyTurnSymmetricCross(t *testing.T) {
	m, nodes, segs := newFourWay(t)
	ac, err := m.ClassifyTurn(nodes["center"], segs["W"], segs["E"])
	require.NoError(t, err)
	ca, err := m.ClassifyTurn(nodes["center"], segs["E"], segs["W"])
	require.NoError(t, err)
	assert.Equal(t, ac == TurnStraight, ca == TurnStraight)
}

func TestDefaultTurnsTwoLane(t *testing.T) {
	m, _, segs := newFourWay(t)
	seg, ok := m.Segment(segs["N"])
	require.True(t, ok)
	require.Len(t, seg.Lanes, 2)
	assert.Equal(t, TurnLeft|TurnStraight, seg.Lanes[0].Allowed)
	assert.Equal(t, TurnStraight|TurnRight, seg.Lanes[1].Allowed)
}

func TestRemoveSegmentDetachesFromNodes(t *testing.T) {
	m, nodes, segs := newFourWay(t)
	m.RemoveSegment(segs["N"])
	center, _ := m.Node(nodes["center"])
	assert.Len(t, center.Segments, 3)
	_, ok := m.Segment(segs["N"])
	assert.False(t, ok)
}

func TestBuildConnectionsWiresStraightThrough(t *testing.T) {
	m, nodes, segs := newFourWay(t)
	_ = nodes
	south, _ := m.Segment(segs["S"])
	north, _ := m.Segment(segs["N"])
	require.NotEmpty(t, south.Lanes[0].Connections)
	found := false
	for _, c := range south.Lanes[0].Connections {
		if c.Out.Segment == north.ID {
			found = true
		}
	}
	assert.True(t, found, "south inner lane should connect straight through to north")
}

func TestAddSegmentRejectsSelfLoop(t *testing.T) {
	reg := asset.NewRegistry()
	m := NewManager(reg)
	a := m.AddNode(geometry.Point{})
	_, err := m.AddSegment(a.ID, a.ID, 1, 1)
	assert.Error(t, err)
}
