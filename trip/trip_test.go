package trip

import (
	"testing"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBuildingWorld(t *testing.T, parkingSpots int) (*Manager, *Building, *Building) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 13.9})
	reg.PutBuilding(asset.BuildingAsset{ID: 1, FootprintW: 10, FootprintH: 10, ParkingSpots: parkingSpots})
	reg.PutVehicle(asset.VehicleAsset{ID: 1, Length: 4.5, WheelBase: 2.7})

	g := graph.NewManager(reg)
	a := g.AddNode(geometry.Point{X: 0, Y: 0})
	b := g.AddNode(geometry.Point{X: 200, Y: 0})
	c := g.AddNode(geometry.Point{X: 400, Y: 0})
	seg, err := g.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)
	seg2, err := g.AddSegment(b.ID, c.ID, 1, 1)
	require.NoError(t, err)

	cfg := config.DefaultConstants()
	rng := randengine.New(1)
	lt := lanetrack.NewManager(g)
	junc := junction.NewManager(g, lt, cfg)
	m := NewManager(g, reg, cfg, rng, lt, junc)

	b1 := m.AddBuilding(1, geometry.Point{X: 10, Y: 5}, geometry.Point{X: 0, Y: 1}, seg.ID)
	b2 := m.AddBuilding(1, geometry.Point{X: 390, Y: 5}, geometry.Point{X: 0, Y: 1}, seg2.ID)
	return m, b1, b2
}

func TestStartTripBuildsVehicleAndCursor(t *testing.T) {
	m, b1, _ := twoBuildingWorld(t, 1)
	p := m.AddPerson(b1.ID, nil)
	p.Timer = 0

	m.Tick(0.01)

	require.Equal(t, Driving, p.State)
	require.NotNil(t, p.Trip)
	assert.NotNil(t, p.Trip.Vehicle.Cursor)
	assert.Len(t, m.Trips(), 1)
}

func TestFinishTripReturnsPersonHomeAndOccupiesSpot(t *testing.T) {
	m, b1, b2 := twoBuildingWorld(t, 1)
	p := m.AddPerson(b1.ID, []BuildingID{b2.ID})
	p.Timer = 0
	m.Tick(0.01)
	require.NotNil(t, p.Trip)
	tripID := p.Trip.ID
	trip := m.trips[tripID]
	require.NotNil(t, trip.DestSpot)
	assert.Equal(t, Reserved, trip.DestSpot.State)

	m.FinishTrip(tripID)

	assert.Equal(t, InBuilding, p.State)
	assert.Equal(t, b2.ID, p.CurrentBuilding)
	assert.Empty(t, m.Trips())
	assert.Equal(t, Occupied, trip.DestSpot.State)
}

func TestCancelTripReturnsPersonToStartAndFreesSpot(t *testing.T) {
	m, b1, b2 := twoBuildingWorld(t, 1)
	p := m.AddPerson(b1.ID, []BuildingID{b2.ID})
	p.Timer = 0
	m.Tick(0.01)
	require.NotNil(t, p.Trip)
	tripID := p.Trip.ID
	trip := m.trips[tripID]
	spot := trip.DestSpot
	require.NotNil(t, spot)

	m.CancelTrip(tripID)

	assert.Equal(t, InBuilding, p.State)
	assert.Equal(t, b1.ID, p.CurrentBuilding)
	assert.Equal(t, Free, spot.State)
	assert.Empty(t, m.Trips())
}

func TestCancelTripsForSegmentCascades(t *testing.T) {
	m, b1, b2 := twoBuildingWorld(t, 0)
	p := m.AddPerson(b1.ID, []BuildingID{b2.ID})
	p.Timer = 0
	m.Tick(0.01)
	require.Len(t, m.Trips(), 1)

	m.CancelTripsForSegment(b1.Segment)

	assert.Empty(t, m.Trips())
}

func TestNoParkingSpotFallsBackToBuildingFront(t *testing.T) {
	m, b1, b2 := twoBuildingWorld(t, 0)
	p := m.AddPerson(b1.ID, []BuildingID{b2.ID})
	p.Timer = 0
	m.Tick(0.01)
	require.NotNil(t, p.Trip)
	assert.Nil(t, p.Trip.DestSpot)
}
