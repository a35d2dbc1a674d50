// Package trafficlight implements the intersection phase machine: a set of
// 64-bit "go" masks over stable lane slots, advanced on a fixed timer, plus
// an optional max-pressure controller that instead picks whichever eligible
// phase has the greatest queue-pressure differential.
package trafficlight

import (
	"sort"

	"github.com/cityworks/trafficsim/graph"
)

type Signal int

const (
	Red Signal = iota
	Yellow
	Green
)

// Mode selects how phases are constructed and how the controller advances
// between them.
type Mode int

const (
	ModeExclusivePerSegment Mode = iota
	Mode2PhaseOpposingStraights
	ModeMaxPressure
)

// Phase is a bitmask over signal slots (spec §3.3); at most 64 in-lanes per
// node are addressable (spec §1 Non-goals).
type Phase struct {
	Mask uint64
}

// PressureSource lets the max-pressure mode ask lanetrack for a lane's
// current queue pressure without trafficlight importing lanetrack types
// directly into its construction path (constructed per-light at wiring
// time, not a circular package dependency).
type PressureSource func(lane graph.LaneID) float64

// Light is one node's traffic-light instance.
type Light struct {
	Mode   Mode
	Phases []Phase
	Slot   map[graph.LaneID]int

	Current int
	Elapsed float64

	Green, Yellow, AllRed float64

	pressure PressureSource
}

// Slots assigns a stable slot index 0..63 to each in-lane of node in its
// sorted segment order, then by lane index within segment (spec §4.5).
func Slots(g *graph.Manager, node *graph.Node) map[graph.LaneID]int {
	slot := map[graph.LaneID]int{}
	n := 0
	for _, inc := range node.Segments {
		seg, ok := g.Segment(inc.Segment)
		if !ok || seg.NodeB != node.ID {
			continue // only in-lanes (arriving end) get slots
		}
		for i := range seg.Lanes {
			if n >= 64 {
				return slot
			}
			slot[graph.LaneID{Segment: seg.ID, Index: uint16(i)}] = n
			n++
		}
	}
	return slot
}

// NewFixed builds a fixed-timing light for node in the given mode
// (ModeExclusivePerSegment or Mode2PhaseOpposingStraights).
func NewFixed(g *graph.Manager, node *graph.Node, mode Mode, green, yellow, allRed float64) *Light {
	slot := Slots(g, node)
	l := &Light{Mode: mode, Slot: slot, Green: green, Yellow: yellow, AllRed: allRed}

	switch mode {
	case ModeExclusivePerSegment:
		l.Phases = exclusivePerSegmentPhases(g, node, slot)
	default:
		l.Phases = opposingStraightPhases(g, node, slot)
	}
	return l
}

// NewMaxPressure builds a supplemental controller that picks the eligible
// phase with the highest pressure differential once the minimum green
// elapses, sharing the same phase set as the 2-phase construction (spec
// SPEC_FULL §4.5).
func NewMaxPressure(g *graph.Manager, node *graph.Node, green, yellow, allRed float64, pressure PressureSource) *Light {
	l := NewFixed(g, node, Mode2PhaseOpposingStraights, green, yellow, allRed)
	l.Mode = ModeMaxPressure
	l.pressure = pressure
	return l
}

func exclusivePerSegmentPhases(g *graph.Manager, node *graph.Node, slot map[graph.LaneID]int) []Phase {
	var phases []Phase
	for _, inc := range node.Segments {
		seg, ok := g.Segment(inc.Segment)
		if !ok || seg.NodeB != node.ID {
			continue
		}
		var mask uint64
		for i := range seg.Lanes {
			lid := graph.LaneID{Segment: seg.ID, Index: uint16(i)}
			if s, ok := slot[lid]; ok {
				mask |= 1 << uint(s)
			}
		}
		if mask != 0 {
			phases = append(phases, Phase{Mask: mask})
		}
	}
	return phases
}

// opposingStraightPhases pairs each in-segment with whichever other
// in-segment it classifies STRAIGHT toward, giving both approaches green
// together; any segment left unpaired gets its own phase (spec §4.5, §9
// open question 4 — an odd arm count degenerates to this fallback).
func opposingStraightPhases(g *graph.Manager, node *graph.Node, slot map[graph.LaneID]int) []Phase {
	var inSegs []graph.SegmentID
	for _, inc := range node.Segments {
		seg, ok := g.Segment(inc.Segment)
		if ok && seg.NodeB == node.ID {
			inSegs = append(inSegs, inc.Segment)
		}
	}

	paired := map[graph.SegmentID]bool{}
	var phases []Phase
	for _, a := range inSegs {
		if paired[a] {
			continue
		}
		var partner graph.SegmentID
		found := false
		for _, b := range inSegs {
			if b == a || paired[b] {
				continue
			}
			turn, err := g.ClassifyTurn(node.ID, a, b)
			if err == nil && turn == graph.TurnStraight {
				partner = b
				found = true
				break
			}
		}
		mask := maskFor(g, a, slot)
		paired[a] = true
		if found {
			mask |= maskFor(g, partner, slot)
			paired[partner] = true
		}
		if mask != 0 {
			phases = append(phases, Phase{Mask: mask})
		}
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i].Mask < phases[j].Mask })
	return phases
}

func maskFor(g *graph.Manager, segID graph.SegmentID, slot map[graph.LaneID]int) uint64 {
	seg, ok := g.Segment(segID)
	if !ok {
		return 0
	}
	var mask uint64
	for i := range seg.Lanes {
		lid := graph.LaneID{Segment: segID, Index: uint16(i)}
		if s, ok := slot[lid]; ok {
			mask |= 1 << uint(s)
		}
	}
	return mask
}

// Advance moves the phase timer forward by dt, switching phases on fixed
// timing (or, in max-pressure mode, switching early to whichever eligible
// phase has the highest pressure differential once the minimum green has
// elapsed).
func (l *Light) Advance(dt float64) {
	if len(l.Phases) == 0 {
		return
	}
	l.Elapsed += dt
	cycle := l.Green + l.Yellow + l.AllRed

	if l.Mode == ModeMaxPressure {
		if l.Elapsed >= l.Green {
			best := l.bestPressurePhase()
			if best != l.Current || l.Elapsed >= cycle {
				l.Current = best
				l.Elapsed = 0
			}
		}
		return
	}

	if l.Elapsed >= cycle {
		l.Current = (l.Current + 1) % len(l.Phases)
		l.Elapsed -= cycle
	}
}

func (l *Light) bestPressurePhase() int {
	if l.pressure == nil {
		return l.Current
	}
	best, bestScore := l.Current, negInf
	for pi, phase := range l.Phases {
		var score float64
		for lane, s := range l.Slot {
			if phase.Mask&(1<<uint(s)) != 0 {
				score += l.pressure(lane)
			}
		}
		if score > bestScore {
			bestScore, best = score, pi
		}
	}
	return best
}

const negInf = -1e18

// Signal returns the current color for lane, looking it up by its assigned
// slot. Lanes with no slot (e.g. >64th in-lane) are always RED.
func (l *Light) Signal(lane graph.LaneID) Signal {
	slot, ok := l.Slot[lane]
	if !ok || len(l.Phases) == 0 {
		return Red
	}
	mask := l.Phases[l.Current].Mask
	if mask&(1<<uint(slot)) == 0 {
		return Red
	}
	cycle := l.Green + l.Yellow + l.AllRed
	if l.Mode != ModeMaxPressure && l.Elapsed >= l.Green && l.Elapsed < l.Green+l.Yellow {
		return Yellow
	}
	if l.Elapsed >= cycle-l.AllRed && l.Mode != ModeMaxPressure {
		return Red
	}
	return Green
}

// ActiveMask is the OR of every currently GREEN slot, used by the spec §8.1
// phase-sum invariant test.
func (l *Light) ActiveMask() uint64 {
	var mask uint64
	for lane, slot := range l.Slot {
		if l.Signal(lane) == Green {
			mask |= 1 << uint(slot)
		}
	}
	return mask
}

// Node::toggle_traffic_light (spec §6.2) lives on junction.Manager, which
// owns the node->Light map: ToggleTrafficLight deletes the entry, and a
// caller re-adding a light constructs a fresh one with NewFixed or
// NewMaxPressure and calls SetLight.
