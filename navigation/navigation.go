// Package navigation expands a pathfinder segment path into the ordered
// motion sequence a vehicle follows: START curve, alternating SEGMENT/NODE
// curves, END curve, with per-motion speed limits and lane hand-off points.
package navigation

import (
	"errors"
	"math"

	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/randengine"
)

// ErrRepathRefused is returned when Repath is attempted on a terminal motion
// or when the current motion has no successor segment to splice onto.
var ErrRepathRefused = errors.New("navigation: repath refused on terminal motion")

const (
	endpointSpeedLimit = 5.56 // ~20 km/h, spec §4.4
	minCurveSpeedLimit = 1.39 // 5 km/h floor on curvature-limited speed
)

type MotionKind int

const (
	MotionStart MotionKind = iota
	MotionSegment
	MotionNode
	MotionEnd
)

func (k MotionKind) String() string {
	switch k {
	case MotionStart:
		return "START"
	case MotionSegment:
		return "SEGMENT"
	case MotionNode:
		return "NODE"
	case MotionEnd:
		return "END"
	default:
		return "?"
	}
}

// Motion is one element of a vehicle's planned trajectory.
type Motion struct {
	Kind         MotionKind
	Bezier       geometry.Bezier3
	CurSpeedLim  float64
	NextSpeedLim float64
	EndT         float32
	NextStartT   float32
	CurLane      *graph.LaneID
	NextLane     *graph.LaneID
}

// Endpoint is a synthesis target for the START/END curves: a point in space
// a vehicle departs from or arrives at (a building frontage or parking
// spot). The navigation package only needs the point and facing; trip.go
// builds these from building/parking spot records.
type Endpoint struct {
	Pos     geometry.Point
	Heading geometry.Point // unit vector, facing away from the building (used for START tangent)
}

// Cursor owns a committed segment path and lazily produces motions for it.
// Lane choice is resolved once at construction so that repeated calls to
// Step(idx) are pure and idempotent, per spec §9 "coroutine-like path
// expansion."
type Cursor struct {
	g      *graph.Manager
	cfg    config.Constants
	path   []graph.SegmentID
	laneOf []graph.LaneID // chosen lane per path[i]
	start  Endpoint
	dest   Endpoint
}

// NewCursor builds a cursor for path, choosing lanes back-to-front: the
// final segment's lane is picked at random (pickLastLane), then each earlier
// segment's lane is picked, preferring to "stay" in the lane whose index
// matches the already-chosen next lane, by connection availability (spec
// §4.4 lane-selection policy).
func NewCursor(g *graph.Manager, cfg config.Constants, path []graph.SegmentID, start, dest Endpoint, rng *randengine.Engine) (*Cursor, error) {
	if len(path) == 0 {
		return nil, errors.New("navigation: empty path")
	}
	laneOf := make([]graph.LaneID, len(path))

	last, ok := g.Segment(path[len(path)-1])
	if !ok || len(last.Lanes) == 0 {
		return nil, errors.New("navigation: missing final segment")
	}
	laneOf[len(path)-1] = pickLastLane(last, rng)

	for k := len(path) - 2; k >= 0; k-- {
		seg, ok := g.Segment(path[k])
		if !ok || len(seg.Lanes) == 0 {
			return nil, errors.New("navigation: missing segment in path")
		}
		next := laneOf[k+1]
		laneOf[k] = chooseConnectingLane(seg, next, rng, cfg.LaneSwitchProbability)
	}

	return &Cursor{g: g, cfg: cfg, path: path, laneOf: laneOf, start: start, dest: dest}, nil
}

func pickLastLane(seg *graph.Segment, rng *randengine.Engine) graph.LaneID {
	idx := rng.IntnSafe(len(seg.Lanes))
	return graph.LaneID{Segment: seg.ID, Index: uint16(idx)}
}

// chooseConnectingLane picks a lane on seg that connects to next, preferring
// the lane whose index equals next.Index ("stay"); falls back to a random
// connecting lane, or the nearest lane index to next.Index if no lane
// carries an explicit connection.
func chooseConnectingLane(seg *graph.Segment, next graph.LaneID, rng *randengine.Engine, switchProb float64) graph.LaneID {
	var candidates []int
	stayIdx := -1
	for i := range seg.Lanes {
		for _, c := range seg.Lanes[i].Connections {
			if c.Out == next {
				candidates = append(candidates, i)
				if i == int(next.Index) && i < len(seg.Lanes) {
					stayIdx = i
				}
				break
			}
		}
	}
	if len(candidates) == 0 {
		nearest := int(next.Index)
		if nearest >= len(seg.Lanes) {
			nearest = len(seg.Lanes) - 1
		}
		return graph.LaneID{Segment: seg.ID, Index: uint16(nearest)}
	}
	if stayIdx >= 0 && !rng.PTrueSafe(switchProb) {
		return graph.LaneID{Segment: seg.ID, Index: uint16(stayIdx)}
	}
	pick := candidates[rng.IntnSafe(len(candidates))]
	return graph.LaneID{Segment: seg.ID, Index: uint16(pick)}
}

// Len returns the total motion count: START, (SEGMENT, NODE)* , SEGMENT, END.
func (c *Cursor) Len() int { return 2*len(c.path) + 1 }

// Step builds the motion at idx. idx == 0 is START, idx == Len()-1 is END,
// even indices 2..Len()-3 are NODE motions, odd indices are SEGMENT motions.
func (c *Cursor) Step(idx int) (Motion, error) {
	last := c.Len() - 1
	switch {
	case idx == 0:
		return c.startMotion()
	case idx == last:
		return c.endMotion()
	case idx%2 == 1:
		return c.segmentMotion((idx - 1) / 2)
	default:
		return c.nodeMotion(idx/2 - 1)
	}
}

func (c *Cursor) startMotion() (Motion, error) {
	seg, ok := c.g.Segment(c.path[0])
	if !ok {
		return Motion{}, errors.New("navigation: missing start segment")
	}
	lane := c.laneOf[0]
	laneStart, _ := c.g.LaneEndpoints(seg, int(lane.Index))
	ctrl := geometry.Blend(c.start.Pos.Add(c.start.Heading.Scale(5)), laneStart, 0.5)
	bez := geometry.QuadraticBezier3(c.start.Pos, ctrl, laneStart)
	nextLane := lane
	return Motion{
		Kind:         MotionStart,
		Bezier:       bez,
		CurSpeedLim:  endpointSpeedLimit,
		NextSpeedLim: c.segmentSpeedLimit(seg),
		EndT:         1,
		NextStartT:   0,
		NextLane:     &nextLane,
	}, nil
}

func (c *Cursor) endMotion() (Motion, error) {
	seg, ok := c.g.Segment(c.path[len(c.path)-1])
	if !ok {
		return Motion{}, errors.New("navigation: missing end segment")
	}
	lane := c.laneOf[len(c.laneOf)-1]
	_, laneEnd := c.g.LaneEndpoints(seg, int(lane.Index))
	ctrl := geometry.Blend(laneEnd, c.dest.Pos, 0.5)
	bez := geometry.QuadraticBezier3(laneEnd, ctrl, c.dest.Pos)
	curLane := lane
	return Motion{
		Kind:        MotionEnd,
		Bezier:      bez,
		CurSpeedLim: endpointSpeedLimit,
		EndT:        1,
		CurLane:     &curLane,
	}, nil
}

func (c *Cursor) segmentMotion(k int) (Motion, error) {
	seg, ok := c.g.Segment(c.path[k])
	if !ok {
		return Motion{}, errors.New("navigation: missing segment")
	}
	lane := c.laneOf[k]
	a, b := c.g.LaneEndpoints(seg, int(lane.Index))
	c1 := geometry.Blend(a, b, 1.0/3.0)
	c2 := geometry.Blend(a, b, 2.0/3.0)
	bez := geometry.Bezier3{P0: a, P1: c1, P2: c2, P3: b}

	curLane := lane
	m := Motion{
		Kind:        MotionSegment,
		Bezier:      bez,
		CurSpeedLim: c.segmentSpeedLimit(seg),
		EndT:        1,
		CurLane:     &curLane,
	}
	if k+1 < len(c.path) {
		next := c.laneOf[k+1]
		m.NextLane = &next
		nextSeg, ok := c.g.Segment(c.path[k+1])
		if ok {
			m.NextSpeedLim = c.nodeSpeedLimit(seg, nextSeg, lane, next)
		}
	} else {
		m.NextSpeedLim = endpointSpeedLimit
	}
	return m, nil
}

func (c *Cursor) nodeMotion(k int) (Motion, error) {
	inSeg, ok := c.g.Segment(c.path[k])
	if !ok {
		return Motion{}, errors.New("navigation: missing in segment")
	}
	outSeg, ok := c.g.Segment(c.path[k+1])
	if !ok {
		return Motion{}, errors.New("navigation: missing out segment")
	}
	inLane := c.laneOf[k]
	outLane := c.laneOf[k+1]
	if sharedNode(inSeg, outSeg) == 0 {
		return Motion{}, errors.New("navigation: segments do not share a node")
	}

	bez := c.calcCurve(inSeg, inLane, outSeg, outLane)
	curLane := inLane
	nextLane := outLane
	return Motion{
		Kind:         MotionNode,
		Bezier:       bez,
		CurSpeedLim:  c.nodeSpeedLimit(inSeg, outSeg, inLane, outLane),
		NextSpeedLim: c.segmentSpeedLimit(outSeg),
		EndT:         1,
		CurLane:      &curLane,
		NextLane:     &nextLane,
	}, nil
}

func sharedNode(a, b *graph.Segment) graph.NodeID {
	switch {
	case a.NodeB == b.NodeA || a.NodeB == b.NodeB:
		return a.NodeB
	case a.NodeA == b.NodeA || a.NodeA == b.NodeB:
		return a.NodeA
	default:
		return 0
	}
}

// calcCurve builds the intersection Bézier per spec §4.4.
func (c *Cursor) calcCurve(inSeg *graph.Segment, inLane graph.LaneID, outSeg *graph.Segment, outLane graph.LaneID) geometry.Bezier3 {
	return CalcCurve(c.g, c.cfg, inSeg, inLane, outSeg, outLane)
}

// CalcCurve builds the intersection Bézier from in-lane to out-lane:
// control points at the intersection of their exit/entry tangent lines,
// pulled toward the apex by the corner-sharpness constant (spec §4.4). It is
// exported so the node controller can build the same curve for a freshly
// admitted tracked vehicle without going through a navigation.Cursor.
func CalcCurve(g *graph.Manager, cfg config.Constants, inSeg *graph.Segment, inLane graph.LaneID, outSeg *graph.Segment, outLane graph.LaneID) geometry.Bezier3 {
	inStart, inEnd := g.LaneEndpoints(inSeg, int(inLane.Index))
	outStart, outEnd := g.LaneEndpoints(outSeg, int(outLane.Index))

	inTangent := inEnd.Sub(inStart).Normalize2D()
	outTangent := outEnd.Sub(outStart).Normalize2D()

	k := float32(cfg.CornerSharpness)
	apex, ok := geometry.LineLineIntersect(inEnd, inTangent, outStart, outTangent)
	var p1, p2 geometry.Point
	dist := inEnd.Dist2D(outStart)
	if !ok {
		p1 = inEnd.Add(inTangent.Scale(dist * k))
		p2 = outStart.Sub(outTangent.Scale(dist * k))
	} else {
		p1 = geometry.Blend(inEnd, apex, k)
		p2 = geometry.Blend(outStart, apex, k)
	}
	return geometry.Bezier3{P0: inEnd, P1: p1, P2: p2, P3: outStart}
}

func (c *Cursor) segmentSpeedLimit(seg *graph.Segment) float64 {
	return seg.SpeedLimit(c.g.Assets())
}

// nodeSpeedLimit is min(curve_speed_limit, min(in, out speed limits)), where
// curve_speed_limit derives from the max curvature sampled at t in
// {0.25,0.5,0.75} of the node curve (spec §4.4).
func (c *Cursor) nodeSpeedLimit(inSeg, outSeg *graph.Segment, inLane, outLane graph.LaneID) float64 {
	bez := c.calcCurve(inSeg, inLane, outSeg, outLane)
	var maxCurv float32
	for _, t := range []float32{0.25, 0.5, 0.75} {
		_, _, curv := bez.EvalWithCurv(t)
		if a := absf32(curv); a > maxCurv {
			maxCurv = a
		}
	}
	curveLimit := math.Sqrt(c.cfg.MaxCurveAccel / (float64(maxCurv) + geometry.Epsilon))
	if curveLimit < minCurveSpeedLimit {
		curveLimit = minCurveSpeedLimit
	}
	inLim := c.segmentSpeedLimit(inSeg)
	outLim := c.segmentSpeedLimit(outSeg)
	limit := math.Min(inLim, outLim)
	return math.Min(curveLimit, limit)
}

func absf32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// Repath builds a cursor for newPath whose first lane is forced to
// currentLane, the lane committed at remainingSegIdx (the segment-path index
// of the motion in progress). It returns ErrRepathRefused when
// remainingSegIdx is negative, newPath is empty, or newPath does not start
// on currentLane's segment; it does not inspect the motion kind.
func Repath(g *graph.Manager, cfg config.Constants, currentLane graph.LaneID, remainingSegIdx int, newPath []graph.SegmentID, start, dest Endpoint, rng *randengine.Engine) (*Cursor, error) {
	if remainingSegIdx < 0 || len(newPath) == 0 {
		return nil, ErrRepathRefused
	}
	if newPath[0] != currentLane.Segment {
		return nil, ErrRepathRefused
	}
	cur, err := NewCursor(g, cfg, newPath, start, dest, rng)
	if err != nil {
		return nil, err
	}
	cur.laneOf[0] = currentLane
	return cur, nil
}
