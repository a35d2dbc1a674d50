package interaction

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/cityworks/trafficsim/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	g     *graph.Manager
	trips *trip.Manager
	junc  *junction.Manager
	m     *Manager
	a, b  *graph.Node
	seg   *graph.Segment
	b1    *trip.Building
	b2    *trip.Building
}

func threeNodeWorld(t *testing.T) world {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 13.9})
	reg.PutBuilding(asset.BuildingAsset{ID: 1, FootprintW: 10, FootprintH: 10, ParkingSpots: 1})
	reg.PutVehicle(asset.VehicleAsset{ID: 1, Length: 4.5, WheelBase: 2.7})

	g := graph.NewManager(reg)
	a := g.AddNode(geometry.Point{X: 0, Y: 0})
	b := g.AddNode(geometry.Point{X: 200, Y: 0})
	c := g.AddNode(geometry.Point{X: 400, Y: 0})
	seg1, err := g.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)
	seg2, err := g.AddSegment(b.ID, c.ID, 1, 1)
	require.NoError(t, err)

	cfg := config.DefaultConstants()
	rng := randengine.New(3)
	lt := lanetrack.NewManager(g)
	junc := junction.NewManager(g, lt, cfg)
	trips := trip.NewManager(g, reg, cfg, rng, lt, junc)

	b1 := trips.AddBuilding(1, geometry.Point{X: 10, Y: 5}, geometry.Point{X: 0, Y: 1}, seg1.ID)
	b2 := trips.AddBuilding(1, geometry.Point{X: 390, Y: 5}, geometry.Point{X: 0, Y: 1}, seg2.ID)

	m := NewManager(g, trips, junc, cfg, rng)
	return world{g: g, trips: trips, junc: junc, m: m, a: a, b: b, seg: seg1, b1: b1, b2: b2}
}

func TestRaycastHitsNearestNode(t *testing.T) {
	w := threeNodeWorld(t)
	ray := geometry.Ray{Origin: geometry.Point{X: 0, Y: -50}, Dir: geometry.Point{X: 0, Y: 1}}

	target, ok := w.m.Raycast(ray, KindNode)
	require.True(t, ok)
	assert.Equal(t, KindNode, target.Kind)
	assert.Equal(t, w.a.ID, target.Node)
}

func TestRaycastRespectsMask(t *testing.T) {
	w := threeNodeWorld(t)
	ray := geometry.Ray{Origin: geometry.Point{X: 0, Y: -50}, Dir: geometry.Point{X: 0, Y: 1}}

	_, ok := w.m.Raycast(ray, KindVehicle)
	assert.False(t, ok, "no vehicle exists at the origin node")
}

func TestRaycastHitsParkingSpot(t *testing.T) {
	w := threeNodeWorld(t)
	spot := w.b1.Spots[0]
	ray := geometry.Ray{Origin: spot.Pos.Add(geometry.Point{X: 0, Y: -30}), Dir: geometry.Point{X: 0, Y: 1}}

	target, ok := w.m.Raycast(ray, KindParkingSpot)
	require.True(t, ok)
	assert.Equal(t, spot.ID, target.ParkingSpot)
}

func TestBulldozeCancelsTripsAndInvalidatesCache(t *testing.T) {
	w := threeNodeWorld(t)
	p := w.trips.AddPerson(w.b1.ID, []trip.BuildingID{w.b2.ID})
	p.Timer = 0
	w.trips.Tick(0.01)
	require.Len(t, w.trips.Trips(), 1)

	err := w.m.Bulldoze(w.seg.ID)
	require.NoError(t, err)

	assert.Empty(t, w.trips.Trips())
	_, ok := w.g.Segment(w.seg.ID)
	assert.False(t, ok)
}

func TestBulldozeUnknownSegmentReturnsNotFound(t *testing.T) {
	w := threeNodeWorld(t)
	err := w.m.Bulldoze(graph.SegmentID(9999))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepathRefusedOnStartMotion(t *testing.T) {
	w := threeNodeWorld(t)
	p := w.trips.AddPerson(w.b1.ID, []trip.BuildingID{w.b2.ID})
	p.Timer = 0
	w.trips.Tick(0.01)
	require.NotNil(t, p.Trip)

	p.Trip.Vehicle.Motion.Kind = navigation.MotionStart
	p.Trip.Vehicle.Motion.CurLane = nil

	err := w.m.Repath(p.Trip, w.seg.ID)
	assert.ErrorIs(t, err, navigation.ErrRepathRefused)
}
