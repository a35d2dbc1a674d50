// Package interaction implements the hover-pick, bulldoze, and repath
// surface exposed to the rendering/input collaborator (spec §6.2): raycast
// against every selectable entity kind, cascading segment removal, and
// mid-trip replanning.
package interaction

import (
	"errors"
	"math"
	"sort"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/cityworks/trafficsim/pathfinder"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/cityworks/trafficsim/trip"
	"github.com/cityworks/trafficsim/vehicle"
)

// ErrNotFound is returned when a bulldoze or repath target no longer exists.
var ErrNotFound = errors.New("interaction: target not found")

// SelectionKind is a bitmask of the entity kinds a Raycast call may hit.
type SelectionKind uint8

const (
	KindPerson SelectionKind = 1 << iota
	KindVehicle
	KindBuilding
	KindNode
	KindSegment
	KindParkingSpot

	KindAll = KindPerson | KindVehicle | KindBuilding | KindNode | KindSegment | KindParkingSpot
)

const (
	personPickRadius = 0.4
	spotPickRadius   = 0.6
)

// SelectionTarget names a single hit entity and where along the ray it was
// found. Exactly one of the ID fields is meaningful, per Kind.
type SelectionTarget struct {
	Kind SelectionKind
	Pos  geometry.Point
	Dist float32

	Node        graph.NodeID
	Segment     graph.SegmentID
	Vehicle     vehicle.VehicleID
	Building    trip.BuildingID
	Person      trip.PersonID
	ParkingSpot trip.ParkingSpotID
}

type candidate struct {
	t      float32
	target SelectionTarget
}

// Manager wires raycasting, bulldoze, and repath against the live graph and
// trip state.
type Manager struct {
	g     *graph.Manager
	trips *trip.Manager
	junc  *junction.Manager
	cfg   config.Constants
	rng   *randengine.Engine
}

func NewManager(g *graph.Manager, trips *trip.Manager, junc *junction.Manager, cfg config.Constants, rng *randengine.Engine) *Manager {
	return &Manager{g: g, trips: trips, junc: junc, cfg: cfg, rng: rng}
}

// Graph exposes the underlying graph manager, for callers (e.g. the rpc
// package) that need it for an operation interaction.Manager doesn't wrap
// directly, such as pathfinding.
func (m *Manager) Graph() *graph.Manager { return m.g }

// Constants exposes the simulation constants this manager was built with.
func (m *Manager) Constants() config.Constants { return m.cfg }

// Raycast intersects ray against every entity kind enabled in mask and
// returns the nearest positive-t hit (spec §6.2 raycast(ray, mask)).
func (m *Manager) Raycast(ray geometry.Ray, mask SelectionKind) (SelectionTarget, bool) {
	var hits []candidate

	if mask&KindNode != 0 {
		for _, n := range m.g.AllNodes() {
			if t, ok := geometry.IntersectCircleRay(ray, n.Pos, float32(n.Radius)); ok {
				hits = append(hits, candidate{t, SelectionTarget{Kind: KindNode, Node: n.ID, Pos: n.Pos, Dist: t}})
			}
		}
	}

	if mask&KindSegment != 0 {
		for _, s := range m.g.AllSegments() {
			rect := segmentRect(s)
			if t, ok := geometry.IntersectRectRay(ray, rect); ok {
				hits = append(hits, candidate{t, SelectionTarget{Kind: KindSegment, Segment: s.ID, Pos: rect.Center, Dist: t}})
			}
		}
	}

	if mask&(KindBuilding|KindParkingSpot|KindPerson) != 0 {
		m.raycastTripEntities(ray, mask, &hits)
	}

	if mask&KindVehicle != 0 {
		for _, tr := range m.trips.Trips() {
			v := tr.Vehicle
			center := geometry.Blend(v.Rear, v.Front, 0.5)
			radius := float32(v.Length / 2)
			if t, ok := geometry.IntersectCircleRay(ray, center, radius); ok {
				hits = append(hits, candidate{t, SelectionTarget{Kind: KindVehicle, Vehicle: v.ID, Pos: center, Dist: t}})
			}
		}
	}

	if len(hits) == 0 {
		return SelectionTarget{}, false
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	return hits[0].target, true
}

func (m *Manager) raycastTripEntities(ray geometry.Ray, mask SelectionKind, hits *[]candidate) {
	reg := m.g.Assets()
	for _, p := range m.trips.AllPersons() {
		if mask&KindPerson == 0 || p.State != trip.InBuilding {
			continue
		}
		b, ok := m.trips.Building(p.CurrentBuilding)
		if !ok {
			continue
		}
		if t, ok := geometry.IntersectCircleRay(ray, b.Pos, personPickRadius); ok {
			*hits = append(*hits, candidate{t, SelectionTarget{Kind: KindPerson, Person: p.ID, Pos: b.Pos, Dist: t}})
		}
	}

	for _, b := range m.trips.AllBuildings() {
		if mask&KindBuilding != 0 {
			rect := buildingRect(b, reg)
			if t, ok := geometry.IntersectRectRay(ray, rect); ok {
				*hits = append(*hits, candidate{t, SelectionTarget{Kind: KindBuilding, Building: b.ID, Pos: b.Pos, Dist: t}})
			}
		}
		if mask&KindParkingSpot != 0 {
			for _, s := range append(append([]*trip.ParkingSpot{}, b.Spots...), b.StreetSpots...) {
				if t, ok := geometry.IntersectCircleRay(ray, s.Pos, spotPickRadius); ok {
					*hits = append(*hits, candidate{t, SelectionTarget{
						Kind: KindParkingSpot, ParkingSpot: s.ID, Building: b.ID, Pos: s.Pos, Dist: t,
					}})
				}
			}
		}
	}
}

func segmentRect(s *graph.Segment) geometry.Rect {
	mid := geometry.Blend(s.PosA, s.PosB, 0.5)
	dir := s.PosB.Sub(s.PosA)
	angle := float32(math.Atan2(float64(dir.Y), float64(dir.X)))
	width := float32(1.0)
	if len(s.Lanes) > 0 {
		width = float32(len(s.Lanes)) * 3.5
	}
	return geometry.Rect{Center: mid, HalfW: dir.Len2D() / 2, HalfH: width / 2, Angle: angle}
}

func buildingRect(b *trip.Building, reg *asset.Registry) geometry.Rect {
	w, h := float32(10), float32(10)
	if a, ok := reg.Building(b.AssetID); ok {
		w, h = float32(a.FootprintW), float32(a.FootprintH)
	}
	angle := float32(math.Atan2(float64(b.Heading.Y), float64(b.Heading.X)))
	return geometry.Rect{Center: b.Pos, HalfW: w / 2, HalfH: h / 2, Angle: angle}
}

// Bulldoze implements spec §6.2 remove_entity for a segment: cancels every
// trip touching it, removes it from the graph, and invalidates the stale
// conflict cache at both endpoint nodes (spec SPEC_FULL §4.11).
func (m *Manager) Bulldoze(seg graph.SegmentID) error {
	s, ok := m.g.Segment(seg)
	if !ok {
		return ErrNotFound
	}
	m.trips.CancelTripsForSegment(seg)
	m.g.RemoveSegment(seg)
	m.junc.InvalidateNode(s.NodeA)
	m.junc.InvalidateNode(s.NodeB)
	return nil
}

// Repath implements spec §6.2-adjacent mid-trip replanning: finds a new
// path from the vehicle's current segment to destSeg and splices it onto
// the trip in progress, refusing (navigation.ErrRepathRefused) if the
// vehicle has not yet committed to a lane or has already reached its final
// approach.
func (m *Manager) Repath(tr *trip.Trip, destSeg graph.SegmentID) error {
	v := tr.Vehicle
	if v.Motion.CurLane == nil || v.Motion.Kind == navigation.MotionEnd {
		return navigation.ErrRepathRefused
	}
	curLane := *v.Motion.CurLane
	idx := indexOf(tr.Path, curLane.Segment)
	if idx < 0 {
		return navigation.ErrRepathRefused
	}

	dst, ok := m.g.Segment(destSeg)
	if !ok {
		return ErrNotFound
	}
	newPath, err := pathfinder.Find(m.g, curLane.Segment, destSeg)
	if err != nil {
		return err
	}

	heading := dst.PosB.Sub(dst.PosA).Normalize2D()
	dest := navigation.Endpoint{Pos: dst.PosB, Heading: heading}
	cur, err := navigation.Repath(m.g, m.cfg, curLane, idx, newPath, navigation.Endpoint{}, dest, m.rng)
	if err != nil {
		return err
	}

	v.Cursor = cur
	v.MotionIdx = 1 // resume as "on the SEGMENT motion for the new path's first element"
	tr.Path = newPath
	return nil
}

func indexOf(path []graph.SegmentID, seg graph.SegmentID) int {
	for i, s := range path {
		if s == seg {
			return i
		}
	}
	return -1
}
