// Package lanetrack maintains, for each lane, the ordered list of vehicles
// travelling it and the accounted "available space" used by admission
// control into the lane (spec §4.6).
package lanetrack

import (
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/container"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/vehicle"
	"github.com/samber/lo"
)

type listNode = container.Node[*vehicle.SimVehicle, struct{}]

// Manager owns the per-lane ordered vehicle lists. It is the exclusive
// mutator of lane membership during phase 3 of the tick (spec §5); phases 1
// and 2 only read Values()/AvailableSpace.
type Manager struct {
	g     *graph.Manager
	lanes map[graph.LaneID]*container.OrderedList[*vehicle.SimVehicle, struct{}]
	index map[vehicle.VehicleID]*listNode
	laneOfVehicle map[vehicle.VehicleID]graph.LaneID
}

func NewManager(g *graph.Manager) *Manager {
	return &Manager{
		g:             g,
		lanes:         map[graph.LaneID]*container.OrderedList[*vehicle.SimVehicle, struct{}]{},
		index:         map[vehicle.VehicleID]*listNode{},
		laneOfVehicle: map[vehicle.VehicleID]graph.LaneID{},
	}
}

func (m *Manager) laneList(lane graph.LaneID) *container.OrderedList[*vehicle.SimVehicle, struct{}] {
	l, ok := m.lanes[lane]
	if !ok {
		l = container.NewOrderedList[*vehicle.SimVehicle, struct{}](lane.String())
		m.lanes[lane] = l
	}
	return l
}

// Insert adds v to lane, ordered by BezT (spec: "nearest-to-exit to
// farthest-from-exit", i.e. descending BezT; traversal helpers below walk
// from the tail to honor that).
func (m *Manager) Insert(lane graph.LaneID, v *vehicle.SimVehicle) {
	n := &listNode{S: float64(v.BezT), Value: v}
	m.laneList(lane).InsertSorted(n)
	m.index[v.ID] = n
	m.laneOfVehicle[v.ID] = lane
}

// Remove drops v from whatever lane it is currently tracked in, if any.
func (m *Manager) Remove(v *vehicle.SimVehicle) {
	n, ok := m.index[v.ID]
	if !ok {
		return
	}
	lane := m.laneOfVehicle[v.ID]
	m.laneList(lane).Remove(n)
	delete(m.index, v.ID)
	delete(m.laneOfVehicle, v.ID)
}

// Resort reconciles drift after phase-3 updates BezT out from under the
// list's sort order.
func (m *Manager) Resort(lane graph.LaneID) {
	l := m.laneList(lane)
	for _, n := range l.PopUnsorted() {
		n.S = float64(n.Value.BezT)
		l.InsertSorted(n)
	}
}

// Vehicles returns the lane's vehicles ordered nearest-to-exit first.
func (m *Manager) Vehicles(lane graph.LaneID) []*vehicle.SimVehicle {
	vals := m.laneList(lane).Values()
	return lo.Reverse(vals)
}

func (m *Manager) Last(lane graph.LaneID) *vehicle.SimVehicle {
	n := m.laneList(lane).Last()
	if n == nil {
		return nil
	}
	return n.Value
}

// UpdateSegmentPass runs the spec §4.6 admission-accounting and inter-vehicle
// brake propagation for every lane of seg.
func (m *Manager) UpdateSegmentPass(seg *graph.Segment, cfg config.Constants, nodeIntrusion map[graph.LaneID]float64) {
	for i := range seg.Lanes {
		lane := &seg.Lanes[i]
		id := lane.ID
		intrusion := nodeIntrusion[id]
		lane.AvailableSpace = seg.Length - (intrusion + cfg.SafetyDist)

		vehicles := m.Vehicles(id) // nearest-to-exit first
		for _, v := range vehicles {
			lane.AvailableSpace -= v.Length + 1.25*cfg.SafetyDist
		}

		for i := 0; i+1 < len(vehicles); i++ {
			ahead := vehicles[i]
			behind := vehicles[i+1]
			gap := (float64(ahead.BezT)-float64(behind.BezT))*behind.BezSpeed - (ahead.Length + 1)
			behind.Brake = minf(behind.Brake, clamp01(gap/8))
		}
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

// GetPressure is the predecessor-density minus successor-density signal the
// max-pressure traffic-light controller consumes (spec SPEC_FULL §4.6):
// vehicles queued in lane minus the average queue of lanes it connects to.
func (m *Manager) GetPressure(lane graph.LaneID) float64 {
	seg, ok := m.g.Segment(lane.Segment)
	if !ok || int(lane.Index) >= len(seg.Lanes) {
		return 0
	}
	incoming := float64(m.laneList(lane).Len())
	conns := seg.Lanes[lane.Index].Connections
	if len(conns) == 0 {
		return incoming
	}
	var outgoing float64
	for _, c := range conns {
		outgoing += float64(m.laneList(c.Out).Len())
	}
	outgoing /= float64(len(conns))
	return incoming - outgoing
}
