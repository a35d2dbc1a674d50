// Package graph holds the road-network data model: nodes, segments, lanes,
// and lane connections, plus the topology operations that keep their cached
// geometry consistent.
package graph

import "fmt"

type NodeID int32
type SegmentID int32
type VehicleID int32

// LaneID is a stable (segment, lane index) reference. It never embeds a
// pointer so it survives across ticks and across goroutines in the
// interaction/RPC path without aliasing concerns.
type LaneID struct {
	Segment SegmentID
	Index   uint16
}

func (l LaneID) String() string { return fmt.Sprintf("seg%d#%d", l.Segment, l.Index) }

// SegLane is the spec's name for the same pair; kept as a distinct alias
// since the spec text uses both names in different components.
type SegLane = LaneID

// Turn is a bitflag set of allowed turn directions for a lane.
type Turn uint8

const (
	TurnLeft Turn = 1 << iota
	TurnStraight
	TurnRight
)

func (t Turn) Has(o Turn) bool { return t&o != 0 }

func (t Turn) String() string {
	var s string
	if t.Has(TurnLeft) {
		s += "L"
	}
	if t.Has(TurnStraight) {
		s += "S"
	}
	if t.Has(TurnRight) {
		s += "R"
	}
	if s == "" {
		return "-"
	}
	return s
}
