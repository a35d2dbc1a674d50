package rpc

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/clock"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/interaction"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/cityworks/trafficsim/sim"
	"github.com/cityworks/trafficsim/trip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func buildService(t *testing.T) (*Service, *graph.Node, *graph.Segment) {
	reg := asset.NewRegistry()
	reg.PutNetwork(asset.NetworkAsset{ID: 1, Width: 8, LaneCount: 1, SpeedLimit: 13.9})
	reg.PutBuilding(asset.BuildingAsset{ID: 1, FootprintW: 10, FootprintH: 10, ParkingSpots: 1})
	reg.PutVehicle(asset.VehicleAsset{ID: 1, Length: 4.5, WheelBase: 2.7})

	g := graph.NewManager(reg)
	a := g.AddNode(geometry.Point{X: 0, Y: 0})
	b := g.AddNode(geometry.Point{X: 200, Y: 0})
	seg, err := g.AddSegment(a.ID, b.ID, 1, 1)
	require.NoError(t, err)

	cfg := config.DefaultConstants()
	rng := randengine.New(5)
	lt := lanetrack.NewManager(g)
	junc := junction.NewManager(g, lt, cfg)
	trips := trip.NewManager(g, reg, cfg, rng, lt, junc)
	interact := interaction.NewManager(g, trips, junc, cfg, rng)

	clk := clock.New(0.1)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	driver := sim.New(g, lt, junc, trips, clk, cfg, 2, log)

	svc := NewService(driver, junc, interact, log.WithField("test", true))
	return svc, a, seg
}

func TestSimulateReturnsMetrics(t *testing.T) {
	svc, _, _ := buildService(t)
	req, _ := structpb.NewStruct(map[string]any{"dt": 0.1})
	resp, err := svc.Simulate(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.Contains(t, resp.Msg.Fields, "active_trips")
}

func TestToggleTrafficLightInstallsThenRemoves(t *testing.T) {
	svc, node, _ := buildService(t)
	req, _ := structpb.NewStruct(map[string]any{"node": float64(node.ID)})

	resp, err := svc.ToggleTrafficLight(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Fields["has_light"].GetBoolValue())
	assert.NotNil(t, svc.junc.Light(node.ID))

	resp2, err := svc.ToggleTrafficLight(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.False(t, resp2.Msg.Fields["has_light"].GetBoolValue())
	assert.Nil(t, svc.junc.Light(node.ID))
}

func TestRemoveEntityBulldozesSegment(t *testing.T) {
	svc, _, seg := buildService(t)
	req, _ := structpb.NewStruct(map[string]any{"segment": float64(seg.ID)})
	resp, err := svc.RemoveEntity(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.True(t, resp.Msg.Fields["removed"].GetBoolValue())
}

func TestRemoveEntityUnknownSegmentErrors(t *testing.T) {
	svc, _, _ := buildService(t)
	req, _ := structpb.NewStruct(map[string]any{"segment": float64(9999)})
	_, err := svc.RemoveEntity(context.Background(), connect.NewRequest(req))
	assert.Error(t, err)
}

func TestRaycastMisses(t *testing.T) {
	svc, _, _ := buildService(t)
	req, _ := structpb.NewStruct(map[string]any{
		"origin_x": -1000.0, "origin_y": -1000.0, "origin_z": 0.0,
		"dir_x": 0.0, "dir_y": 1.0, "dir_z": 0.0,
		"mask": float64(interaction.KindNode),
	})
	resp, err := svc.Raycast(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.False(t, resp.Msg.Fields["hit"].GetBoolValue())
}
