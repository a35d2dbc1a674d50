// Package trip owns the person/building/parking world and the trip
// lifecycle that creates and destroys SimVehicles: start_trip, finish_trip,
// cancel_trip, and parking reservation at trip start (spec §3.1, §4.9).
package trip

import (
	"errors"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/cityworks/trafficsim/pathfinder"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/cityworks/trafficsim/vehicle"
)

const (
	favoriteWeight     = 5.0
	ordinaryWeight     = 1.0
	personWaitMean     = 60.0
	tripRetryWait      = 20.0
	defaultAggressLo   = 0.7
	defaultAggressHi   = 1.5
)

var ErrNoDestination = errors.New("trip: no candidate destination building")

type BuildingID int32
type PersonID int32
type TripID int32
type ParkingSpotID int32

type ParkingState int

const (
	Free ParkingState = iota
	Reserved
	Occupied
)

func (s ParkingState) String() string {
	switch s {
	case Free:
		return "free"
	case Reserved:
		return "reserved"
	case Occupied:
		return "occupied"
	default:
		return "?"
	}
}

// ParkingSpot is a reservable parking position, owned by a Building or a
// Segment's street-parking strip (spec §3.1).
type ParkingSpot struct {
	ID      ParkingSpotID
	Pos     geometry.Point
	Heading geometry.Point
	State   ParkingState
	Owner   vehicle.VehicleID
}

// Building is a placed instance of a BuildingAsset: a position, a connected
// road segment vehicles depart from and arrive at, and its own parking
// spots plus the street-parking spots along its segment.
type Building struct {
	ID          BuildingID
	AssetID     int32
	Pos         geometry.Point
	Heading     geometry.Point
	Segment     graph.SegmentID
	Spots       []*ParkingSpot
	StreetSpots []*ParkingSpot
}

type PersonState int

const (
	InBuilding PersonState = iota
	Driving
)

// Person oscillates between waiting in a building and driving a trip (spec
// §3.5).
type Person struct {
	ID              PersonID
	Home            BuildingID
	Favorites       []BuildingID
	CurrentBuilding BuildingID
	State           PersonState
	Timer           float64
	Trip            *Trip
}

// Trip owns a SimVehicle for the duration of a drive between two buildings
// (spec §3.1).
type Trip struct {
	ID            TripID
	Person        PersonID
	Vehicle       *vehicle.SimVehicle
	Path          []graph.SegmentID
	StartBuilding BuildingID
	DestBuilding  BuildingID
	DestSpot      *ParkingSpot
}

// Manager owns the population, the building/parking world, and every active
// trip. It holds lanetrack and junction references directly so that
// finish/cancel can evict a vehicle from both without routing through the
// tick driver.
type Manager struct {
	g      *graph.Manager
	assets *asset.Registry
	cfg    config.Constants
	rng    *randengine.Engine
	lt     *lanetrack.Manager
	junc   *junction.Manager

	buildings    map[BuildingID]*Building
	buildingIDs  []BuildingID
	persons      map[PersonID]*Person
	personIDs    []PersonID
	trips        map[TripID]*Trip

	nextBuilding BuildingID
	nextPerson   PersonID
	nextSpot     ParkingSpotID
	nextTrip     TripID
	nextVehicle  vehicle.VehicleID
}

func NewManager(g *graph.Manager, assets *asset.Registry, cfg config.Constants, rng *randengine.Engine, lt *lanetrack.Manager, junc *junction.Manager) *Manager {
	return &Manager{
		g:         g,
		assets:    assets,
		cfg:       cfg,
		rng:       rng,
		lt:        lt,
		junc:      junc,
		buildings: map[BuildingID]*Building{},
		persons:   map[PersonID]*Person{},
		trips:     map[TripID]*Trip{},
	}
}

// AddBuilding places a building instance and generates its parking spots
// from the asset's configured spot count, spread along the building's
// street-facing edge.
func (m *Manager) AddBuilding(assetID int32, pos, heading geometry.Point, segment graph.SegmentID) *Building {
	m.nextBuilding++
	b := &Building{ID: m.nextBuilding, AssetID: assetID, Pos: pos, Heading: heading, Segment: segment}

	if a, ok := m.assets.Building(assetID); ok {
		along := geometry.Point{X: -heading.Y, Y: heading.X}
		for i := 0; i < a.ParkingSpots; i++ {
			offset := (float32(i) - float32(a.ParkingSpots-1)/2) * 2.5
			m.nextSpot++
			b.Spots = append(b.Spots, &ParkingSpot{
				ID:      m.nextSpot,
				Pos:     pos.Add(along.Scale(offset)),
				Heading: heading,
				State:   Free,
			})
		}
	}
	m.buildings[b.ID] = b
	m.buildingIDs = append(m.buildingIDs, b.ID)
	return b
}

// AddStreetParking appends a free street-parking spot at pos to b's street
// spots.
func (m *Manager) AddStreetParking(b *Building, pos, heading geometry.Point) *ParkingSpot {
	m.nextSpot++
	spot := &ParkingSpot{ID: m.nextSpot, Pos: pos, Heading: heading, State: Free}
	b.StreetSpots = append(b.StreetSpots, spot)
	return spot
}

// AddPerson creates a person living at home, with a small set of favorite
// destinations sampled more often than a uniformly random building (spec
// SPEC_FULL §4.9).
func (m *Manager) AddPerson(home BuildingID, favorites []BuildingID) *Person {
	m.nextPerson++
	p := &Person{
		ID:              m.nextPerson,
		Home:            home,
		Favorites:       favorites,
		CurrentBuilding: home,
		State:           InBuilding,
		Timer:           m.waitTimer(),
	}
	m.persons[p.ID] = p
	m.personIDs = append(m.personIDs, p.ID)
	return p
}

func (m *Manager) waitTimer() float64 {
	return personWaitMean * (0.5 + m.rng.Float64Safe())
}

// Tick advances every waiting person's timer, starting trips as timers
// expire.
func (m *Manager) Tick(dt float64) {
	for _, pid := range m.personIDs {
		p := m.persons[pid]
		if p.State != InBuilding {
			continue
		}
		p.Timer -= dt
		if p.Timer <= 0 {
			m.startTrip(p)
		}
	}
}

// pickDestination samples a destination building, weighting a person's
// favorites over the rest of the population (original_source-supplemented
// detail; spec.md's distillation said "pick a random destination
// building").
func (m *Manager) pickDestination(p *Person) (BuildingID, error) {
	if len(m.buildingIDs) < 2 {
		return 0, ErrNoDestination
	}
	candidates := make([]BuildingID, 0, len(m.buildingIDs))
	weights := make([]float64, 0, len(m.buildingIDs))
	favorite := map[BuildingID]bool{}
	for _, f := range p.Favorites {
		favorite[f] = true
	}
	for _, id := range m.buildingIDs {
		if id == p.CurrentBuilding {
			continue
		}
		candidates = append(candidates, id)
		if favorite[id] {
			weights = append(weights, favoriteWeight)
		} else {
			weights = append(weights, ordinaryWeight)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrNoDestination
	}
	idx := m.rng.DiscreteDistributionSafe(weights)
	return candidates[idx], nil
}

// startTrip implements spec §4.9 start_trip.
func (m *Manager) startTrip(p *Person) {
	destID, err := m.pickDestination(p)
	if err != nil {
		p.Timer = tripRetryWait
		return
	}
	startB := m.buildings[p.CurrentBuilding]
	destB := m.buildings[destID]

	path, err := pathfinder.Find(m.g, startB.Segment, destB.Segment)
	if err != nil {
		p.Timer = tripRetryWait
		return
	}

	m.nextVehicle++
	vid := m.nextVehicle
	destSpot := m.reserveParking(destB, vid)

	destPos, destHeading := destB.Pos, destB.Heading
	if destSpot != nil {
		destPos, destHeading = destSpot.Pos, destSpot.Heading
	}

	start := navigation.Endpoint{Pos: startB.Pos, Heading: startB.Heading}
	dest := navigation.Endpoint{Pos: destPos, Heading: destHeading}

	cur, err := navigation.NewCursor(m.g, m.cfg, path, start, dest, m.rng)
	if err != nil {
		m.unreserve(destSpot)
		p.Timer = tripRetryWait
		return
	}

	aggress := defaultAggressLo + m.rng.Float64Safe()*(defaultAggressHi-defaultAggressLo)
	assetID := int32(1)
	length := 4.5
	if va, ok := m.firstVehicleAsset(); ok {
		assetID, length = va.ID, va.Length
	}
	v := vehicle.New(vid, assetID, length, aggress)
	v.Cursor = cur
	v.MotionIdx = 0
	first, err := cur.Step(0)
	if err != nil {
		m.unreserve(destSpot)
		p.Timer = tripRetryWait
		return
	}
	v.Motion = first
	v.Step(0, m.cfg) // initializes Front/Rear at bez_t=0 without advancing

	m.nextTrip++
	trip := &Trip{
		ID:            m.nextTrip,
		Person:        p.ID,
		Vehicle:       v,
		Path:          path,
		StartBuilding: p.CurrentBuilding,
		DestBuilding:  destID,
		DestSpot:      destSpot,
	}
	m.trips[trip.ID] = trip
	p.State = Driving
	p.Trip = trip
}

// ResumeTrip re-attaches a vehicle reconstructed by persist.Decode to a
// driving person as an in-progress trip, without going through startTrip's
// pathfinding and parking-reservation steps (the path and reservation were
// already decided before the snapshot was taken).
func (m *Manager) ResumeTrip(p *Person, v *vehicle.SimVehicle, path []graph.SegmentID, startB, destB BuildingID, destSpot *ParkingSpot) *Trip {
	m.nextTrip++
	trip := &Trip{
		ID:            m.nextTrip,
		Person:        p.ID,
		Vehicle:       v,
		Path:          path,
		StartBuilding: startB,
		DestBuilding:  destB,
		DestSpot:      destSpot,
	}
	m.trips[trip.ID] = trip
	p.State = Driving
	p.Trip = trip
	if v.ID >= m.nextVehicle {
		m.nextVehicle = v.ID
	}
	return trip
}

func (m *Manager) firstVehicleAsset() (asset.VehicleAsset, bool) {
	return m.assets.Vehicle(1)
}

func (m *Manager) reserveParking(b *Building, owner vehicle.VehicleID) *ParkingSpot {
	for _, s := range b.Spots {
		if s.State == Free {
			s.State = Reserved
			s.Owner = owner
			return s
		}
	}
	for _, s := range b.StreetSpots {
		if s.State == Free {
			s.State = Reserved
			s.Owner = owner
			return s
		}
	}
	return nil
}

func (m *Manager) unreserve(s *ParkingSpot) {
	if s == nil {
		return
	}
	s.State = Free
	s.Owner = 0
}

// FinishTrip implements spec §4.9 finish_trip: called by the tick driver
// when a trip's vehicle reports TripDone.
func (m *Manager) FinishTrip(tripID TripID) {
	trip, ok := m.trips[tripID]
	if !ok {
		return
	}
	p := m.persons[trip.Person]
	p.CurrentBuilding = trip.DestBuilding
	p.State = InBuilding
	p.Timer = m.waitTimer()
	p.Trip = nil

	if trip.DestSpot != nil {
		trip.DestSpot.State = Occupied
		trip.DestSpot.Owner = trip.Vehicle.ID
	}

	m.evictVehicle(trip.Vehicle)
	delete(m.trips, tripID)
}

// CancelTrip implements spec §4.9 cancel_trip: the person returns to the
// start building, the vehicle becomes a pocket car, and every reservation
// and list membership is cleared.
func (m *Manager) CancelTrip(tripID TripID) {
	trip, ok := m.trips[tripID]
	if !ok {
		return
	}
	p := m.persons[trip.Person]
	p.CurrentBuilding = trip.StartBuilding
	p.State = InBuilding
	p.Timer = tripRetryWait
	p.Trip = nil

	m.unreserve(trip.DestSpot)
	m.evictVehicle(trip.Vehicle)
	delete(m.trips, tripID)
}

func (m *Manager) evictVehicle(v *vehicle.SimVehicle) {
	m.lt.Remove(v)
	m.junc.RemoveVehicle(v)
}

// CancelTripsForSegment cancels every trip whose planned path touches seg,
// for the bulldoze cascade (spec SPEC_FULL §4.11 Bulldoze).
func (m *Manager) CancelTripsForSegment(seg graph.SegmentID) {
	var toCancel []TripID
	for id, trip := range m.trips {
		for _, s := range trip.Path {
			if s == seg {
				toCancel = append(toCancel, id)
				break
			}
		}
	}
	for _, id := range toCancel {
		m.CancelTrip(id)
	}
}

// Trips returns every active trip, for the tick driver's per-vehicle pass.
func (m *Manager) Trips() map[TripID]*Trip { return m.trips }

func (m *Manager) Person(id PersonID) (*Person, bool) { p, ok := m.persons[id]; return p, ok }
func (m *Manager) Building(id BuildingID) (*Building, bool) { b, ok := m.buildings[id]; return b, ok }

// AllPersons returns every person, for hover picking and UI enumeration.
func (m *Manager) AllPersons() []*Person {
	out := make([]*Person, 0, len(m.personIDs))
	for _, id := range m.personIDs {
		out = append(out, m.persons[id])
	}
	return out
}

// AllBuildings returns every placed building, for hover picking and UI
// enumeration.
func (m *Manager) AllBuildings() []*Building {
	out := make([]*Building, 0, len(m.buildingIDs))
	for _, id := range m.buildingIDs {
		out = append(out, m.buildings[id])
	}
	return out
}
