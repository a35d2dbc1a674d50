// Package scenario loads the authored starting world for a run — assets,
// topology, buildings, and population — from config.Input.Map.File.
// Grounded on the teacher's utils/input/input.go file-load branch
// (protoutil.UnmarshalFromFile against a configured path takes priority
// over the database loader); ours is JSON rather than protobuf, since the
// teacher's map/person schema is defined in an internal proto registry
// this workspace cannot import. It reuses persist.Snapshot's record types
// and persist.Decode's topology/ID-remapping and population-building logic
// rather than duplicating them, since an authored scenario is simply a
// Snapshot with zero in-progress trips.
package scenario

import (
	"encoding/json"
	"os"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/persist"
	"github.com/cityworks/trafficsim/randengine"
)

// Scenario is the on-disk authoring format for an initial world.
type Scenario struct {
	NetworkAssets  []asset.NetworkAsset     `json:"network_assets"`
	BuildingAssets []asset.BuildingAsset    `json:"building_assets"`
	VehicleAssets  []asset.VehicleAsset     `json:"vehicle_assets"`
	Nodes          []persist.NodeRecord     `json:"nodes"`
	Segments       []persist.SegmentRecord  `json:"segments"`
	Buildings      []persist.BuildingRecord `json:"buildings"`
	Persons        []persist.PersonRecord   `json:"persons"`
}

// Load reads and parses a JSON scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Build populates a fresh asset registry from the scenario's asset tables
// and constructs the initial World through persist.Decode, the same path a
// mid-run snapshot reload takes.
func Build(cfg config.Constants, rng *randengine.Engine, sc *Scenario) (*persist.World, error) {
	reg := asset.NewRegistry()
	for _, a := range sc.NetworkAssets {
		reg.PutNetwork(a)
	}
	for _, a := range sc.BuildingAssets {
		reg.PutBuilding(a)
	}
	for _, a := range sc.VehicleAssets {
		reg.PutVehicle(a)
	}

	snap := &persist.Snapshot{
		Nodes:     sc.Nodes,
		Segments:  sc.Segments,
		Buildings: sc.Buildings,
		Persons:   sc.Persons,
	}
	return persist.Decode(reg, cfg, rng, snap)
}
