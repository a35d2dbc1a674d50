// Package pathfinder runs Dijkstra over the road graph's nodes, honoring
// per-lane turn restrictions, to produce a segment path for the navigation
// planner to expand into motions.
package pathfinder

import (
	"errors"

	"github.com/cityworks/trafficsim/container"
	"github.com/cityworks/trafficsim/graph"
)

// ErrUnreachable is returned when the destination segment can never be
// relaxed from the start segment — including the documented path-of-length-1
// limitation (spec §9 open question 1, §8.3): start and destination on the
// same segment is treated as a failure rather than "drive around the block."
var ErrUnreachable = errors.New("pathfinder: destination unreachable")

// state is a Dijkstra frontier entry: the node reached and the segment used
// to arrive there, since turn restrictions depend on the incoming lane.
type state struct {
	node graph.NodeID
	via  graph.SegmentID
}

// Find returns an ordered list of segments from startSeg to destSeg
// inclusive, or ErrUnreachable.
func Find(g *graph.Manager, startSeg, destSeg graph.SegmentID) ([]graph.SegmentID, error) {
	if startSeg == destSeg {
		return nil, ErrUnreachable
	}
	start, ok := g.Segment(startSeg)
	if !ok {
		return nil, ErrUnreachable
	}
	dest, ok := g.Segment(destSeg)
	if !ok {
		return nil, ErrUnreachable
	}
	if start.SpeedLimit(g.Assets()) <= 0 || dest.SpeedLimit(g.Assets()) <= 0 {
		return nil, ErrUnreachable // a zero speed limit makes a segment unusable
	}

	dist := map[state]float64{}
	prev := map[state]state{}
	hasPrev := map[state]bool{}
	visited := map[state]bool{}

	pq := container.NewPriorityQueue[state]()
	s0 := state{node: start.NodeA, via: startSeg}
	s1 := state{node: start.NodeB, via: startSeg}
	dist[s0] = 0
	dist[s1] = 0
	pq.Push(s0, 0)
	pq.Push(s1, 0)

	for pq.Len() > 0 {
		cur, d, ok := pq.Pop()
		if !ok {
			break
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true

		for _, inc := range g.Neighbors(cur.node) {
			if inc.Segment == cur.via {
				continue // no immediate U-turn back along the segment just arrived on
			}
			nextSeg, ok := g.Segment(inc.Segment)
			if !ok {
				continue
			}
			limit := nextSeg.SpeedLimit(g.Assets())
			if limit <= 0 {
				continue // spec §8.3: speed_limit == 0 makes the edge unusable
			}
			if !turnAllowedFromAnyLane(g, cur.node, cur.via, inc.Segment) {
				continue
			}
			weight := nextSeg.Length / limit
			nextState := state{node: inc.Other, via: inc.Segment}
			nd := d + weight
			if old, ok := dist[nextState]; !ok || nd < old {
				dist[nextState] = nd
				prev[nextState] = cur
				hasPrev[nextState] = true
				pq.Push(nextState, nd)
			}
		}
	}

	bestDist := -1.0
	var bestState state
	found := false
	for _, endNode := range []graph.NodeID{dest.NodeA, dest.NodeB} {
		for st, d := range dist {
			if st.node != endNode || !visited[st] {
				continue
			}
			if !turnAllowedFromAnyLane(g, endNode, st.via, destSeg) {
				continue
			}
			if !found || d < bestDist {
				bestDist = d
				bestState = st
				found = true
			}
		}
	}
	if !found {
		return nil, ErrUnreachable
	}

	var path []graph.SegmentID
	cur := bestState
	for {
		path = append([]graph.SegmentID{cur.via}, path...)
		if !hasPrev[cur] {
			break
		}
		cur = prev[cur]
	}
	path = append(path, destSeg)
	return path, nil
}

// turnAllowedFromAnyLane reports whether at least one in-lane of via at node
// permits the classified turn toward candidate.
func turnAllowedFromAnyLane(g *graph.Manager, node graph.NodeID, via, candidate graph.SegmentID) bool {
	seg, ok := g.Segment(via)
	if !ok {
		return false
	}
	for i := range seg.Lanes {
		lane := graph.LaneID{Segment: via, Index: uint16(i)}
		ok, err := g.IsTurnAllowed(lane, node, via, candidate)
		if err == nil && ok {
			return true
		}
	}
	return false
}
