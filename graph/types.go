package graph

import (
	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/geometry"
)

// Connection is a legal intersection traversal from an in-lane to an
// out-lane at some node. Equality is structural (spec §3.1).
type Connection struct {
	In  SegLane
	Out SegLane
}

// Less gives Connection a total order so conflict cache keys can be
// order-normalized (spec §3.3 "ConflictKey ... a < b under a total order").
func (c Connection) Less(o Connection) bool {
	if c.In.Segment != o.In.Segment {
		return c.In.Segment < o.In.Segment
	}
	if c.In.Index != o.In.Index {
		return c.In.Index < o.In.Index
	}
	if c.Out.Segment != o.Out.Segment {
		return c.Out.Segment < o.Out.Segment
	}
	return c.Out.Index < o.Out.Index
}

// Lane is a per-segment driving track.
type Lane struct {
	ID          LaneID
	Allowed     Turn
	MustYield   bool
	Connections []Connection

	// Per-tick mutable admission-control state owned by the lanetrack
	// package; graph only stores it because the graph is the stable home
	// for lane identity (spec §4.6 fields live on the lane record).
	AvailableSpace float64
}

// Segment is a road edge between exactly two nodes.
type Segment struct {
	ID         SegmentID
	NodeA      NodeID
	NodeB      NodeID
	AssetID    int32
	Lanes      []Lane
	Length     float64
	PosA, PosB geometry.Point // endpoint positions, shifted inward by node radius
}

func (s *Segment) SpeedLimit(reg *asset.Registry) float64 {
	if a, ok := reg.Network(s.AssetID); ok {
		return a.SpeedLimit
	}
	return 0
}

// IncidentSegment orders a segment around a node by its outgoing bearing.
type IncidentSegment struct {
	Segment SegmentID
	Other   NodeID  // the node at the far end
	Bearing float64 // radians, CCW from +X, outgoing from this node
}

// Node is an intersection (or dead end, if len(Segments) == 1).
type Node struct {
	ID       NodeID
	Pos      geometry.Point
	Radius   float64
	Segments []IncidentSegment // sorted CCW by outgoing bearing

	InLanes  []SegLane
	OutLanes []SegLane

	HasTrafficLight bool
}
