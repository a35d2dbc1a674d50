// Package rpc exposes the core's external interface (spec §6.2) over
// connect-rpc: Simulate, Pathfind, ToggleTrafficLight, Raycast, and
// RemoveEntity. Grounded on the teacher's ecosim/server.go and
// clock/rpc.go, which each register one connect unary handler per RPC
// method on a plain http.ServeMux; the teacher's methods take generated
// protobuf request/response types from an internal proto registry this
// pack does not ship for our domain, so requests and responses here use
// google.golang.org/protobuf's well-known structpb.Struct instead — a
// real proto.Message the default connect-go codec already knows how to
// marshal, without needing generated code we have no way to produce.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpcreflect"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/interaction"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/pathfinder"
	"github.com/cityworks/trafficsim/sim"
	"github.com/cityworks/trafficsim/trafficlight"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "trafficsim.v1.SimulationService"

const (
	procSimulate           = "/" + serviceName + "/Simulate"
	procPathfind           = "/" + serviceName + "/Pathfind"
	procToggleTrafficLight = "/" + serviceName + "/ToggleTrafficLight"
	procRaycast            = "/" + serviceName + "/Raycast"
	procRemoveEntity       = "/" + serviceName + "/RemoveEntity"
)

// Service implements the five exposed RPCs against the live driver and
// interaction managers.
type Service struct {
	driver   *sim.Driver
	junc     *junction.Manager
	interact *interaction.Manager
	log      *logrus.Entry
}

func NewService(driver *sim.Driver, junc *junction.Manager, interact *interaction.Manager, log *logrus.Entry) *Service {
	return &Service{driver: driver, junc: junc, interact: interact, log: log.WithField("component", "rpc.Service")}
}

// Simulate implements Network::simulate(dt).
func (s *Service) Simulate(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	dt := req.Msg.Fields["dt"].GetNumberValue()
	m := s.driver.Advance(dt)
	out, err := structpb.NewStruct(map[string]any{
		"step":         float64(m.Step),
		"active_trips": float64(m.ActiveTrips),
		"mean_speed":   m.MeanSpeed,
		"p90_speed":    m.P90Speed,
		"mean_wait":    m.MeanWait,
		"max_wait":     m.MaxWait,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Pathfind implements Network::pathfind(start_seg, dest_seg).
func (s *Service) Pathfind(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	start := graph.SegmentID(req.Msg.Fields["start_segment"].GetNumberValue())
	dest := graph.SegmentID(req.Msg.Fields["dest_segment"].GetNumberValue())

	path, err := pathfinder.Find(s.interact.Graph(), start, dest)
	if err != nil {
		out, _ := structpb.NewStruct(map[string]any{"error": err.Error()})
		return connect.NewResponse(out), nil
	}
	segs := make([]any, len(path))
	for i, id := range path {
		segs[i] = float64(id)
	}
	out, err := structpb.NewStruct(map[string]any{"path": segs})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ToggleTrafficLight implements Node::toggle_traffic_light(): removes an
// existing light, or installs a default fixed-timing one if the node has
// none (spec §4.5, §6.2).
func (s *Service) ToggleTrafficLight(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	nodeID := graph.NodeID(req.Msg.Fields["node"].GetNumberValue())
	node, ok := s.interact.Graph().Node(nodeID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("rpc: unknown node"))
	}

	hadLight := s.junc.Light(nodeID) != nil
	s.junc.ToggleTrafficLight(nodeID)
	if !hadLight {
		cfg := s.interact.Constants()
		light := trafficlight.NewFixed(s.interact.Graph(), node, trafficlight.Mode2PhaseOpposingStraights, cfg.GreenSeconds, cfg.YellowSeconds, cfg.AllRedSeconds)
		s.junc.SetLight(nodeID, light)
	}

	out, _ := structpb.NewStruct(map[string]any{"has_light": !hadLight})
	return connect.NewResponse(out), nil
}

// Raycast implements the hover-pick surface (spec §6.2).
func (s *Service) Raycast(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	ray := rayFromStruct(req.Msg)
	mask := interaction.SelectionKind(req.Msg.Fields["mask"].GetNumberValue())
	if mask == 0 {
		mask = interaction.KindAll
	}

	target, ok := s.interact.Raycast(ray, mask)
	if !ok {
		out, _ := structpb.NewStruct(map[string]any{"hit": false})
		return connect.NewResponse(out), nil
	}
	out, err := structpb.NewStruct(map[string]any{
		"hit":          true,
		"kind":         float64(target.Kind),
		"node":         float64(target.Node),
		"segment":      float64(target.Segment),
		"vehicle":      float64(target.Vehicle),
		"building":     float64(target.Building),
		"person":       float64(target.Person),
		"parking_spot": float64(target.ParkingSpot),
		"distance":     float64(target.Dist),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// RemoveEntity implements remove_entity(target): a segment bulldoze
// cascading into trip cancellation (spec §6.2).
func (s *Service) RemoveEntity(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	segID := graph.SegmentID(req.Msg.Fields["segment"].GetNumberValue())
	if err := s.interact.Bulldoze(segID); err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	out, _ := structpb.NewStruct(map[string]any{"removed": true})
	return connect.NewResponse(out), nil
}

func rayFromStruct(msg *structpb.Struct) geometry.Ray {
	f := func(key string) float32 { return float32(msg.Fields[key].GetNumberValue()) }
	return geometry.Ray{
		Origin: geometry.Point{X: f("origin_x"), Y: f("origin_y"), Z: f("origin_z")},
		Dir:    geometry.Point{X: f("dir_x"), Y: f("dir_y"), Z: f("dir_z")},
	}
}

// NewMux wires every RPC handler plus gRPC server reflection onto a fresh
// ServeMux, grounded on the teacher's sidecar.Register call sites which
// each hand back a (path, handler) pair for mux.Handle.
func NewMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(procSimulate, connect.NewUnaryHandler(procSimulate, svc.Simulate))
	mux.Handle(procPathfind, connect.NewUnaryHandler(procPathfind, svc.Pathfind))
	mux.Handle(procToggleTrafficLight, connect.NewUnaryHandler(procToggleTrafficLight, svc.ToggleTrafficLight))
	mux.Handle(procRaycast, connect.NewUnaryHandler(procRaycast, svc.Raycast))
	mux.Handle(procRemoveEntity, connect.NewUnaryHandler(procRemoveEntity, svc.RemoveEntity))

	reflector := grpcreflect.NewStaticReflector(serviceName)
	reflectPath, reflectHandler := grpcreflect.NewHandlerV1(reflector)
	mux.Handle(reflectPath, reflectHandler)
	alphaPath, alphaHandler := grpcreflect.NewHandlerV1Alpha(reflector)
	mux.Handle(alphaPath, alphaHandler)

	return mux
}

// Serve runs the RPC gateway behind permissive CORS, matching the teacher's
// plain http.ListenAndServe entry point (no distributed syncer sidecar —
// that layer is dropped, see DESIGN.md).
func Serve(addr string, svc *Service) error {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(NewMux(svc))
	return http.ListenAndServe(addr, handler)
}
