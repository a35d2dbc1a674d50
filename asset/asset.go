// Package asset holds the AssetRegistry: the explicit, constructor-injected
// home for network/building/vehicle asset data that external collaborators
// (the map/asset pipeline) provide. The teacher's original reached a global
// process-wide asset pointer during deserialization; per spec.md §9 ("Global
// mutable state") the core never does that — every manager that needs asset
// data receives a *Registry explicitly.
package asset

import "github.com/puzpuzpuz/xsync/v3"

// NetworkAsset describes a road cross-section: width, per-lane turn
// allowances, speed limit, and cosmetic fields the core stores but never
// interprets (sidewalks, line markings, streetlight spacing, traffic-light
// prop reference) since rendering those is out of scope.
type NetworkAsset struct {
	ID              int32
	Width           float64
	LaneCount       int
	SpeedLimit      float64 // m/s; 0 means the edge is unusable (spec §8.3)
	HasSidewalks    bool
	LineMarkingKind string
	StreetlightGap  float64
	TrafficLightProp string
}

// BuildingAsset describes a building footprint and its parking layout.
type BuildingAsset struct {
	ID           int32
	FootprintW   float64
	FootprintH   float64
	ParkingSpots int
}

// VehicleAsset describes a vehicle's physical envelope.
type VehicleAsset struct {
	ID         int32
	Length     float64
	WheelBase  float64
	ColorIndex int
}

// Registry is a concurrent-read store of the three asset kinds above. Reads
// happen from the interaction surface and RPC layer outside the tick (hence
// the lock-free map), and from manager Init during setup (single-threaded,
// before any tick runs).
type Registry struct {
	networks  *xsync.MapOf[int32, NetworkAsset]
	buildings *xsync.MapOf[int32, BuildingAsset]
	vehicles  *xsync.MapOf[int32, VehicleAsset]
}

func NewRegistry() *Registry {
	return &Registry{
		networks:  xsync.NewMapOf[int32, NetworkAsset](),
		buildings: xsync.NewMapOf[int32, BuildingAsset](),
		vehicles:  xsync.NewMapOf[int32, VehicleAsset](),
	}
}

func (r *Registry) PutNetwork(a NetworkAsset)   { r.networks.Store(a.ID, a) }
func (r *Registry) PutBuilding(a BuildingAsset) { r.buildings.Store(a.ID, a) }
func (r *Registry) PutVehicle(a VehicleAsset)   { r.vehicles.Store(a.ID, a) }

func (r *Registry) Network(id int32) (NetworkAsset, bool)   { return r.networks.Load(id) }
func (r *Registry) Building(id int32) (BuildingAsset, bool) { return r.buildings.Load(id) }
func (r *Registry) Vehicle(id int32) (VehicleAsset, bool)   { return r.vehicles.Load(id) }
