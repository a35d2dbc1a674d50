package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrTopology is returned (and, at graph-mutation time, should be treated as
// fatal by the caller — see spec §7) when a segment references a node that
// does not exist in the manager, or when a self-loop is attempted.
type ErrTopology struct {
	Reason string
}

func (e *ErrTopology) Error() string { return fmt.Sprintf("graph: topology error: %s", e.Reason) }

// Manager owns the road network: nodes, segments, and their cached geometry.
// It is read-only during a tick (spec §5) except for the small mutable
// fields called out on Lane/Node; the concurrent maps exist so the
// interaction surface and RPC layer can read topology from another
// goroutine between ticks without taking a lock.
type Manager struct {
	assets *asset.Registry

	nodes    *xsync.MapOf[NodeID, *Node]
	segments *xsync.MapOf[SegmentID, *Segment]

	nextNode    NodeID
	nextSegment SegmentID
}

func NewManager(assets *asset.Registry) *Manager {
	return &Manager{
		assets:   assets,
		nodes:    xsync.NewMapOf[NodeID, *Node](),
		segments: xsync.NewMapOf[SegmentID, *Segment](),
	}
}

func (m *Manager) Node(id NodeID) (*Node, bool)       { return m.nodes.Load(id) }
func (m *Manager) Segment(id SegmentID) (*Segment, bool) { return m.segments.Load(id) }

func (m *Manager) AddNode(pos geometry.Point) *Node {
	m.nextNode++
	n := &Node{ID: m.nextNode, Pos: pos}
	m.nodes.Store(n.ID, n)
	return n
}

// AddSegment creates a segment with laneCount lanes of default allowed turns,
// wires it into both endpoint nodes' incident lists, and recomputes cached
// geometry for everything touched.
func (m *Manager) AddSegment(a, b NodeID, assetID int32, laneCount int) (*Segment, error) {
	if a == b {
		return nil, &ErrTopology{Reason: "segment endpoints equal (self-loop)"}
	}
	na, ok := m.nodes.Load(a)
	if !ok {
		return nil, &ErrTopology{Reason: "node_a not found"}
	}
	nb, ok := m.nodes.Load(b)
	if !ok {
		return nil, &ErrTopology{Reason: "node_b not found"}
	}
	m.nextSegment++
	s := &Segment{ID: m.nextSegment, NodeA: a, NodeB: b, AssetID: assetID}
	s.Lanes = make([]Lane, laneCount)
	for i := range s.Lanes {
		s.Lanes[i] = Lane{ID: LaneID{Segment: s.ID, Index: uint16(i)}}
	}
	m.segments.Store(s.ID, s)

	bearingFromA := math.Atan2(float64(nb.Pos.Y-na.Pos.Y), float64(nb.Pos.X-na.Pos.X))
	bearingFromB := math.Atan2(float64(na.Pos.Y-nb.Pos.Y), float64(na.Pos.X-nb.Pos.X))
	na.Segments = append(na.Segments, IncidentSegment{Segment: s.ID, Other: b, Bearing: bearingFromA})
	nb.Segments = append(nb.Segments, IncidentSegment{Segment: s.ID, Other: a, Bearing: bearingFromB})

	m.UpdateCachedSegment(s)
	m.UpdateCachedNode(na)
	m.UpdateCachedNode(nb)
	m.BuildConnections(na.ID)
	m.BuildConnections(nb.ID)
	return s, nil
}

// RemoveSegment detaches a segment from both of its endpoint nodes and drops
// it from the manager. Callers (interaction.Bulldoze) are responsible for
// cancelling trips that reference it first.
func (m *Manager) RemoveSegment(id SegmentID) {
	s, ok := m.segments.Load(id)
	if !ok {
		return
	}
	m.segments.Delete(id)
	for _, nid := range []NodeID{s.NodeA, s.NodeB} {
		n, ok := m.nodes.Load(nid)
		if !ok {
			continue
		}
		out := n.Segments[:0]
		for _, inc := range n.Segments {
			if inc.Segment != id {
				out = append(out, inc)
			}
		}
		n.Segments = out
		m.UpdateCachedNode(n)
		m.BuildConnections(n.ID)
	}
}

// UpdateCachedNode sorts the node's incident segments CCW by outgoing
// bearing, recomputes its radius, and regenerates in/out lane sets and
// default allowed-turn masks (spec §4.2).
func (m *Manager) UpdateCachedNode(n *Node) {
	sort.Slice(n.Segments, func(i, j int) bool { return n.Segments[i].Bearing < n.Segments[j].Bearing })

	n.Radius = 0
	n.InLanes = n.InLanes[:0]
	n.OutLanes = n.OutLanes[:0]
	for _, inc := range n.Segments {
		seg, ok := m.segments.Load(inc.Segment)
		if !ok {
			continue
		}
		if r := m.requiredOffset(seg); r > n.Radius {
			n.Radius = r
		}
		for i := range seg.Lanes {
			l := LaneID{Segment: seg.ID, Index: uint16(i)}
			if seg.NodeA == n.ID {
				// lanes run A -> B by convention: outgoing at A, incoming at B
				n.OutLanes = append(n.OutLanes, l)
			} else {
				n.InLanes = append(n.InLanes, l)
			}
		}
	}

	for _, inc := range n.Segments {
		seg, ok := m.segments.Load(inc.Segment)
		if !ok {
			continue
		}
		m.assignDefaultTurns(seg)
	}
}

// requiredOffset is the minimum inward shift a segment needs from this node
// so its endpoint clears the node's drawn footprint; approximated from the
// asset's road width, matching the teacher's "half width plus margin" shift.
func (m *Manager) requiredOffset(seg *Segment) float64 {
	if a, ok := m.assets.Network(seg.AssetID); ok {
		return a.Width/2 + 2
	}
	return 4
}

// assignDefaultTurns sets Lane.Allowed for every lane of seg, overwriting
// any value already there (spec §4.2: 1 lane -> all turns; 2 lanes ->
// inner {LEFT,STRAIGHT}, outer {STRAIGHT,RIGHT}; otherwise all).
func (m *Manager) assignDefaultTurns(seg *Segment) {
	n := len(seg.Lanes)
	switch n {
	case 0:
		return
	case 1:
		seg.Lanes[0].Allowed = TurnLeft | TurnStraight | TurnRight
	case 2:
		seg.Lanes[0].Allowed = TurnLeft | TurnStraight
		seg.Lanes[1].Allowed = TurnStraight | TurnRight
	default:
		for i := range seg.Lanes {
			seg.Lanes[i].Allowed = TurnLeft | TurnStraight | TurnRight
		}
	}
}

// UpdateCachedSegment recomputes length (distance between node centers minus
// both node radii) and the endpoint positions shifted inward by each node's
// radius (spec §4.2, §3.1).
func (m *Manager) UpdateCachedSegment(s *Segment) {
	na, okA := m.nodes.Load(s.NodeA)
	nb, okB := m.nodes.Load(s.NodeB)
	if !okA || !okB {
		return
	}
	dir := nb.Pos.Sub(na.Pos).Normalize2D()
	s.PosA = na.Pos.Add(dir.Scale(float32(na.Radius)))
	s.PosB = nb.Pos.Sub(dir.Scale(float32(nb.Radius)))
	full := float64(na.Pos.Dist2D(nb.Pos))
	s.Length = full - na.Radius - nb.Radius
	if s.Length < 0 {
		s.Length = 0
	}
}

// ClassifyTurn computes the turn direction an agent takes travelling
// inSeg -> node -> outSeg (spec §4.2).
func (m *Manager) ClassifyTurn(node NodeID, inSeg, outSeg SegmentID) (Turn, error) {
	n, ok := m.nodes.Load(node)
	if !ok {
		return 0, &ErrTopology{Reason: "node not found"}
	}
	in, err := m.incomingDirection(n, inSeg)
	if err != nil {
		return 0, err
	}
	out, err := m.outgoingDirection(n, outSeg)
	if err != nil {
		return 0, err
	}
	dForward := geometry.Dot2D(out, in)
	negIn := in.Scale(-1)
	dRight := geometry.Dot2D(out, negIn.Rot90())
	if dForward > abs32(dRight) {
		return TurnStraight, nil
	}
	if dRight < 0 {
		return TurnRight, nil
	}
	return TurnLeft, nil
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// incomingDirection is the unit heading a vehicle travels as it arrives at
// node along inSeg (pointing into the node).
func (m *Manager) incomingDirection(n *Node, segID SegmentID) (geometry.Point, error) {
	seg, ok := m.segments.Load(segID)
	if !ok {
		return geometry.Point{}, &ErrTopology{Reason: "segment not found"}
	}
	if seg.NodeB == n.ID {
		return seg.PosB.Sub(seg.PosA).Normalize2D(), nil
	}
	return seg.PosA.Sub(seg.PosB).Normalize2D(), nil
}

// outgoingDirection is the unit heading a vehicle travels as it departs node
// along outSeg (pointing away from the node).
func (m *Manager) outgoingDirection(n *Node, segID SegmentID) (geometry.Point, error) {
	seg, ok := m.segments.Load(segID)
	if !ok {
		return geometry.Point{}, &ErrTopology{Reason: "segment not found"}
	}
	if seg.NodeA == n.ID {
		return seg.PosB.Sub(seg.PosA).Normalize2D(), nil
	}
	return seg.PosA.Sub(seg.PosB).Normalize2D(), nil
}

// IsTurnAllowed tests lane's allowed-turn bitflag for the classified turn
// between inSeg and outSeg at node.
func (m *Manager) IsTurnAllowed(lane LaneID, node NodeID, inSeg, outSeg SegmentID) (bool, error) {
	seg, ok := m.segments.Load(lane.Segment)
	if !ok || int(lane.Index) >= len(seg.Lanes) {
		return false, &ErrTopology{Reason: "lane not found"}
	}
	turn, err := m.ClassifyTurn(node, inSeg, outSeg)
	if err != nil {
		return false, err
	}
	return seg.Lanes[lane.Index].Allowed.Has(turn), nil
}

// BuildConnections (re)derives the legal lane-to-lane connections at node
// from each in-lane's allowed-turn mask and the node's incident segment
// order: an in-lane connects to the out-lane of the same index on every
// out-segment its turn mask permits, falling back to the nearest available
// index when the out-segment has fewer lanes. Called after UpdateCachedNode
// whenever topology changes; an explicit lane-editing tool may instead
// assign connections directly, overriding this default wiring.
func (m *Manager) BuildConnections(node NodeID) {
	n, ok := m.nodes.Load(node)
	if !ok {
		return
	}
	bySeg := map[SegmentID]*Segment{}
	for _, inc := range n.Segments {
		if seg, ok := m.segments.Load(inc.Segment); ok {
			bySeg[inc.Segment] = seg
		}
	}
	for _, inc := range n.Segments {
		inSeg := bySeg[inc.Segment]
		if inSeg == nil || inSeg.NodeB != node {
			continue // only the segment's "arriving" end supplies in-lanes
		}
		for li := range inSeg.Lanes {
			lane := &inSeg.Lanes[li]
			lane.Connections = lane.Connections[:0]
			for _, outInc := range n.Segments {
				if outInc.Segment == inc.Segment {
					continue
				}
				outSeg := bySeg[outInc.Segment]
				if outSeg == nil || outSeg.NodeA != node || len(outSeg.Lanes) == 0 {
					continue
				}
				turn, err := m.ClassifyTurn(node, inc.Segment, outInc.Segment)
				if err != nil || !lane.Allowed.Has(turn) {
					continue
				}
				outIdx := li
				if outIdx >= len(outSeg.Lanes) {
					outIdx = len(outSeg.Lanes) - 1
				}
				out := LaneID{Segment: outSeg.ID, Index: uint16(outIdx)}
				lane.Connections = append(lane.Connections, Connection{In: lane.ID, Out: out})
			}
		}
	}
}

// Neighbors returns, for node, the set of (segment, other-end) pairs reached
// from it — used directly by the pathfinder's Dijkstra expansion.
func (m *Manager) Neighbors(node NodeID) []IncidentSegment {
	n, ok := m.nodes.Load(node)
	if !ok {
		return nil
	}
	return n.Segments
}

// OtherNode returns the node at the far end of seg from node.
func OtherNode(s *Segment, node NodeID) NodeID {
	if s.NodeA == node {
		return s.NodeB
	}
	return s.NodeA
}

func (m *Manager) Assets() *asset.Registry { return m.assets }

// AllNodes returns every node, for the tick driver's per-node pass.
func (m *Manager) AllNodes() []*Node {
	nodes := make([]*Node, 0, m.nodes.Size())
	m.nodes.Range(func(_ NodeID, n *Node) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

// AllSegments returns every segment, for the tick driver's per-segment pass.
func (m *Manager) AllSegments() []*Segment {
	segs := make([]*Segment, 0, m.segments.Size())
	m.segments.Range(func(_ SegmentID, s *Segment) bool {
		segs = append(segs, s)
		return true
	})
	return segs
}

// LaneEndpoints returns the centerline start/end points of lane laneIndex on
// seg, offset laterally from the segment centerline by its position in the
// cross-section (driving on the right: lane 0 is leftmost of the forward
// lanes).
func (m *Manager) LaneEndpoints(seg *Segment, laneIndex int) (geometry.Point, geometry.Point) {
	n := len(seg.Lanes)
	if n == 0 {
		return seg.PosA, seg.PosB
	}
	width := 8.0
	if a, ok := m.assets.Network(seg.AssetID); ok && a.Width > 0 {
		width = a.Width
	}
	laneWidth := float32(width / float64(n))
	dir := seg.PosB.Sub(seg.PosA).Normalize2D()
	right := dir.Rot90().Scale(-1)
	offset := (float32(laneIndex) - float32(n-1)/2) * laneWidth
	lateral := right.Scale(offset)
	return seg.PosA.Add(lateral), seg.PosB.Add(lateral)
}
