// Package junction implements the intersection controller: admitting
// vehicles into a node's tracked list, computing pairwise conflicts between
// their intersection curves, and resolving priority via yielding and a
// bounded adjacent-swap pass (spec §4.7).
package junction

import (
	"sort"

	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/cityworks/trafficsim/trafficlight"
	"github.com/cityworks/trafficsim/vehicle"
)

const (
	conflictEtaPenalty    = 3.0
	rightBeforeLeftPenalty = 4.0
	yieldLanePenalty      = 2.0
	exitEtaPenalty        = 2.0
	progressBoost         = 1.0
	waitBoost             = 0.5
	betterMargin          = 2.0
)

// NodeAgent is a vehicle tracked by a node as approaching or inside it
// (spec §3.3).
type NodeAgent struct {
	V        *vehicle.SimVehicle
	Conn     graph.Connection
	Bez      geometry.Bezier3
	ConnLen  float64
	FrontK   float64
	RearK    float64
	Blocked  bool
	WaitTime float64
}

// Manager owns every node's tracked-vehicle list, conflict cache, and
// optional traffic light.
type Manager struct {
	g   *graph.Manager
	lt  *lanetrack.Manager
	cfg config.Constants

	lights  map[graph.NodeID]*trafficlight.Light
	tracked map[graph.NodeID][]*NodeAgent
	byID    map[graph.NodeID]map[vehicle.VehicleID]*NodeAgent
	cache   map[graph.NodeID]map[ConflictKey]Conflict
}

func NewManager(g *graph.Manager, lt *lanetrack.Manager, cfg config.Constants) *Manager {
	return &Manager{
		g:       g,
		lt:      lt,
		cfg:     cfg,
		lights:  map[graph.NodeID]*trafficlight.Light{},
		tracked: map[graph.NodeID][]*NodeAgent{},
		byID:    map[graph.NodeID]map[vehicle.VehicleID]*NodeAgent{},
		cache:   map[graph.NodeID]map[ConflictKey]Conflict{},
	}
}

func (m *Manager) SetLight(node graph.NodeID, l *trafficlight.Light) { m.lights[node] = l }
func (m *Manager) Light(node graph.NodeID) *trafficlight.Light       { return m.lights[node] }

// ToggleTrafficLight implements spec §6.2 Node::toggle_traffic_light: if the
// node has a light, remove it (also invalidating its slot-keyed state);
// otherwise the caller should construct one with trafficlight.NewFixed and
// call SetLight.
func (m *Manager) ToggleTrafficLight(node graph.NodeID) {
	if _, ok := m.lights[node]; ok {
		delete(m.lights, node)
	}
}

// InvalidateNode drops a node's cached pairwise conflicts, for a caller
// that just mutated the node's incident segments (spec SPEC_FULL §4.11
// Bulldoze) and needs them recomputed from the new topology next tick.
func (m *Manager) InvalidateNode(node graph.NodeID) {
	delete(m.cache, node)
}

// Pressure sums the queue pressure of a node's in-lanes, for the
// max-pressure traffic-light controller.
func (m *Manager) Pressure(node *graph.Node) float64 {
	var total float64
	for _, lane := range node.InLanes {
		total += m.lt.GetPressure(lane)
	}
	return total
}

// Tick runs the full per-node pass (spec §4.7 steps 1-7).
func (m *Manager) Tick(node *graph.Node, dt float64) {
	if l, ok := m.lights[node.ID]; ok {
		l.Advance(dt)
	}
	m.admit(node)
	m.updateArcPositions(node)
	m.admissionControl(node)
	m.resolveConflicts(node)
	m.priorityReorder(node)
	m.accrueWait(node.ID, dt)
	m.evict(node)
}

func (m *Manager) ensureByID(node graph.NodeID) map[vehicle.VehicleID]*NodeAgent {
	s, ok := m.byID[node]
	if !ok {
		s = map[vehicle.VehicleID]*NodeAgent{}
		m.byID[node] = s
	}
	return s
}

// admit pulls the nearest-to-exit vehicle of each in-lane into node.tracked
// once it is within the lookahead distance of the entry line, or already on
// a NODE motion through this node.
func (m *Manager) admit(node *graph.Node) {
	set := m.ensureByID(node.ID)
	for _, lane := range node.InLanes {
		v := m.lt.Last(lane)
		if v == nil {
			continue
		}
		if _, already := set[v.ID]; already {
			continue
		}
		mo := v.Motion
		switch {
		case mo.Kind == navigation.MotionSegment && mo.CurLane != nil && *mo.CurLane == lane:
			remaining := (float64(mo.EndT) - float64(v.BezT)) * v.BezSpeed
			if remaining > m.cfg.NodeLookaheadDist || mo.NextLane == nil {
				continue
			}
			inSeg, ok := m.g.Segment(lane.Segment)
			if !ok {
				continue
			}
			outSeg, ok := m.g.Segment(mo.NextLane.Segment)
			if !ok {
				continue
			}
			bez := navigation.CalcCurve(m.g, m.cfg, inSeg, lane, outSeg, *mo.NextLane)
			agent := &NodeAgent{V: v, Conn: graph.Connection{In: lane, Out: *mo.NextLane}, Bez: bez, ConnLen: float64(bez.ApproxLen(8))}
			m.trackAgent(node.ID, agent)
		case mo.Kind == navigation.MotionNode && mo.CurLane != nil && *mo.CurLane == lane && mo.NextLane != nil:
			conn := graph.Connection{In: lane, Out: *mo.NextLane}
			agent := &NodeAgent{V: v, Conn: conn, Bez: mo.Bezier, ConnLen: float64(mo.Bezier.ApproxLen(8))}
			m.trackAgent(node.ID, agent)
		}
	}
}

func (m *Manager) trackAgent(node graph.NodeID, agent *NodeAgent) {
	m.tracked[node] = append(m.tracked[node], agent)
	m.ensureByID(node)[agent.V.ID] = agent
}

// updateArcPositions recomputes front_k/rear_k for every tracked vehicle
// (spec §4.7 step 3).
func (m *Manager) updateArcPositions(node *graph.Node) {
	for _, a := range m.tracked[node.ID] {
		mo := a.V.Motion
		switch {
		case mo.Kind == navigation.MotionSegment && mo.CurLane != nil && *mo.CurLane == a.Conn.In:
			a.FrontK = (float64(a.V.BezT) - 1) * a.V.BezSpeed
		case mo.Kind == navigation.MotionNode:
			a.FrontK = float64(a.V.BezT) * a.ConnLen
		default:
			a.FrontK = float64(a.V.BezT)*a.V.BezSpeed + a.ConnLen
		}
		a.RearK = a.FrontK - a.V.Length
	}
}

// admissionControl is spec §4.7 step 4: red light or insufficient exit-lane
// space forces a brake to the stop line.
func (m *Manager) admissionControl(node *graph.Node) {
	for _, a := range m.tracked[node.ID] {
		mo := a.V.Motion
		if mo.Kind != navigation.MotionSegment || mo.CurLane == nil || *mo.CurLane != a.Conn.In {
			continue // already past admission decision
		}
		if l, ok := m.lights[node.ID]; ok {
			if l.Signal(a.Conn.In) == trafficlight.Red {
				m.brakeToStopLine(a, -a.FrontK)
				a.Blocked = true
				continue
			}
		}
		outSeg, ok := m.g.Segment(a.Conn.Out.Segment)
		if !ok {
			continue
		}
		avail := outSeg.Lanes[a.Conn.Out.Index].AvailableSpace
		if avail >= a.V.Length {
			a.Blocked = false
			continue
		}
		m.brakeToStopLine(a, -a.FrontK)
		a.Blocked = true
	}
}

func (m *Manager) brakeToStopLine(a *NodeAgent, distanceToStop float64) {
	coeff := clamp01(distanceToStop / m.cfg.BrakeRampDist)
	a.V.Brake = minf(a.V.Brake, coeff)
}

// resolveConflicts is spec §4.7 step 5.
func (m *Manager) resolveConflicts(node *graph.Node) {
	agents := m.tracked[node.ID]
	for i, a := range agents {
		for j := 0; j < i; j++ {
			b := agents[j]
			m.resolvePair(node.ID, a, b)
		}
		m.brakeForDestinationLane(a)
	}
}

func (m *Manager) resolvePair(node graph.NodeID, a, b *NodeAgent) {
	conf := m.lookupConflict(node, a, b)
	if !conf.Exists {
		return
	}
	aK0, aK1 := conf.AT0*float32(a.ConnLen), conf.AT1*float32(a.ConnLen)
	bK0, bK1 := conf.BT0*float32(b.ConnLen), conf.BT1*float32(b.ConnLen)

	merge := a.Conn.Out == b.Conn.Out
	diverge := a.Conn.In == b.Conn.In
	same := merge && diverge

	if a.RearK >= float64(aK1) || b.RearK >= float64(bK1) {
		return
	}

	if same || diverge || (merge && b.RearK >= float64(bK0)) {
		span := float64(bK1 - bK0)
		frac := 0.0
		if span > geometry.Epsilon {
			frac = (b.RearK - float64(bK0)) / span
		}
		stopK := float64(aK0) + frac*float64(aK1-aK0) - m.cfg.SafetyDist
		m.brakeToStopLine(a, stopK-a.FrontK)
	} else {
		etaA := etaTo(a, float64(aK0))
		etaB := etaTo(b, float64(bK0))
		var stopK float64
		if etaB > etaA*2 || etaA > 10 {
			stopK = -0.1
		} else {
			stopK = float64(aK0) - m.cfg.SafetyDist
		}
		m.brakeToStopLine(a, stopK-a.FrontK)
	}

	if b.Blocked && (merge || diverge) && b.RearK < float64(bK1) {
		a.Blocked = true
	}
}

func etaTo(a *NodeAgent, k float64) float64 {
	speed := a.V.Speed
	if speed < 0.5 {
		speed = 0.5
	}
	d := k - a.FrontK
	if d < 0 {
		return 0
	}
	return d / speed
}

func (m *Manager) brakeForDestinationLane(a *NodeAgent) {
	last := m.lt.Last(a.Conn.Out)
	if last == nil || last == a.V {
		return
	}
	gap := float64(last.Front.Dist2D(a.V.Front)) - last.Length - 1
	a.V.Brake = minf(a.V.Brake, clamp01(gap/8))
}

func (m *Manager) lookupConflict(node graph.NodeID, a, b *NodeAgent) Conflict {
	key := NewConflictKey(a.Conn, b.Conn)
	cache, ok := m.cache[node]
	if !ok {
		cache = map[ConflictKey]Conflict{}
		m.cache[node] = cache
	}
	if c, ok := cache[key]; ok {
		return orientConflict(c, key, a.Conn, b.Conn)
	}
	// compute in the cache's canonical (key.A, key.B) orientation
	var c Conflict
	if key.A == a.Conn {
		c = computeConflict(a.Bez, b.Bez, a.Conn.In, a.Conn.Out, b.Conn.In, b.Conn.Out, float32(m.cfg.LaneCollisionRadius), m.cfg.CollisionSteps)
	} else {
		c = computeConflict(b.Bez, a.Bez, b.Conn.In, b.Conn.Out, a.Conn.In, a.Conn.Out, float32(m.cfg.LaneCollisionRadius), m.cfg.CollisionSteps)
	}
	cache[key] = c
	return orientConflict(c, key, a.Conn, b.Conn)
}

// orientConflict swaps (AT0,AT1)<->(BT0,BT1) when the cache's canonical
// ordering doesn't match (a,b)'s, so callers can always read "a's interval,
// b's interval" regardless of cache orientation (spec §8.1 order-invariance).
func orientConflict(c Conflict, key ConflictKey, a, b graph.Connection) Conflict {
	if key.A == a {
		return c
	}
	return Conflict{AT0: c.BT0, AT1: c.BT1, BT0: c.AT0, BT1: c.AT1, Exists: c.Exists}
}

// priorityReorder is spec §4.7 step 6: a single adjacent-swap bubble pass.
func (m *Manager) priorityReorder(node *graph.Node) {
	agents := m.tracked[node.ID]
	for i := 1; i < len(agents); i++ {
		a, b := agents[i-1], agents[i]
		if a.Blocked != b.Blocked {
			if a.Blocked && !b.Blocked {
				agents[i-1], agents[i] = b, a
			}
			continue
		}
		if m.safeSwap(node.ID, a, b) && m.betterSwap(node.ID, a, b) {
			agents[i-1], agents[i] = b, a
		}
	}
}

// accrueWait accumulates wait_time for every currently blocked tracked
// vehicle at node, resetting it once a vehicle is no longer blocked.
func (m *Manager) accrueWait(node graph.NodeID, dt float64) {
	for _, a := range m.tracked[node] {
		if a.Blocked {
			a.WaitTime += dt
		} else {
			a.WaitTime = 0
		}
	}
}

func (m *Manager) safeSwap(node graph.NodeID, a, b *NodeAgent) bool {
	conf := m.lookupConflict(node, a, b)
	if !conf.Exists {
		return true
	}
	aK1 := float64(conf.AT1) * a.ConnLen
	bK1 := float64(conf.BT1) * b.ConnLen
	if a.RearK >= aK1 || b.RearK >= bK1 {
		return true
	}
	diverge := a.Conn.In == b.Conn.In
	aEntered := a.FrontK >= float64(conf.AT0)*a.ConnLen
	return !aEntered && !diverge
}

func (m *Manager) betterSwap(node graph.NodeID, a, b *NodeAgent) bool {
	return m.penalty(node, a, b) - m.penalty(node, b, a) > betterMargin
}

// penalty scores how costly it is to keep self ahead of other; lower means
// self deserves priority more (spec §4.7 step 6 penalty function).
func (m *Manager) penalty(node graph.NodeID, self, other *NodeAgent) float64 {
	conf := m.lookupConflict(node, self, other)
	var selfK0 float64
	if conf.Exists {
		selfK0 = float64(conf.AT0) * self.ConnLen
	}
	p := conflictEtaPenalty * ramp(etaTo(self, selfK0), 1, 6)
	p += exitEtaPenalty * ramp(etaTo(self, self.ConnLen), 1, 6)

	if left := leftOf(m.g, node, self, other); left == self {
		p += rightBeforeLeftPenalty
	}
	seg, ok := m.g.Segment(self.Conn.In.Segment)
	if ok && seg.Lanes[self.Conn.In.Index].MustYield {
		p += yieldLanePenalty
	}
	if self.FrontK >= 0 && self.ConnLen > 0 {
		p -= progressBoost * (self.FrontK / self.ConnLen)
	}
	p -= waitBoost * self.WaitTime
	return p
}

func ramp(eta, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp01((eta - lo) / (hi - lo))
}

// leftOf determines which of (a,b) is the "left" vehicle per spec §4.7 step
// 6's right-before-left rule.
func leftOf(g *graph.Manager, node graph.NodeID, a, b *NodeAgent) *NodeAgent {
	rel, err := g.ClassifyTurn(node, b.Conn.In.Segment, a.Conn.In.Segment)
	if err == nil {
		if rel == graph.TurnRight {
			return a
		}
		if rel == graph.TurnLeft {
			return b
		}
	}
	aTurn, errA := g.ClassifyTurn(node, a.Conn.In.Segment, a.Conn.Out.Segment)
	bTurn, errB := g.ClassifyTurn(node, b.Conn.In.Segment, b.Conn.Out.Segment)
	if errA == nil && errB == nil {
		if aTurn == graph.TurnLeft && bTurn != graph.TurnLeft {
			return a
		}
		if bTurn == graph.TurnLeft && aTurn != graph.TurnLeft {
			return b
		}
	}
	return nil
}

// evict drops tracked vehicles that are fully past the connection curve
// (spec §4.7 step 7).
func (m *Manager) evict(node *graph.Node) {
	agents := m.tracked[node.ID]
	kept := agents[:0]
	set := m.ensureByID(node.ID)
	for _, a := range agents {
		if a.FrontK-a.ConnLen > a.V.Length {
			delete(set, a.V.ID)
			continue
		}
		kept = append(kept, a)
	}
	m.tracked[node.ID] = kept
}

// Tracked returns node's tracked vehicles, in current priority order.
func (m *Manager) Tracked(node graph.NodeID) []*NodeAgent {
	return m.tracked[node]
}

// RemoveVehicle drops v from every node's tracked list, used when a trip is
// cancelled (spec §4.9 cancel_trip, §6.2 Bulldoze cascade).
func (m *Manager) RemoveVehicle(v *vehicle.SimVehicle) {
	for node, agents := range m.tracked {
		kept := agents[:0]
		for _, a := range agents {
			if a.V.ID == v.ID {
				delete(m.ensureByID(node), v.ID)
				continue
			}
			kept = append(kept, a)
		}
		m.tracked[node] = kept
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// StableBlockedLast re-sorts agents so blocked vehicles trail non-blocked
// ones while preserving relative order within each group, independent of
// the adjacent-swap pass (spec §4.7 step 6, "blocked vs non-blocked uses a
// stable sort rule").
func StableBlockedLast(agents []*NodeAgent) {
	sort.SliceStable(agents, func(i, j int) bool {
		return !agents[i].Blocked && agents[j].Blocked
	})
}
