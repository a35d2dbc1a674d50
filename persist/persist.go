// Package persist encodes and decodes a simulation's live state to BSON
// documents: the topology, the building/parking/person world, and every
// in-progress trip. Grounded on the teacher's utils/input/input.go, which
// reads its Mongo-backed input through go.mongodb.org/mongo-driver/bson; we
// reuse the same driver for our own document shape rather than the
// teacher's protobuf map/person schema, since that schema is defined in an
// internal proto registry this workspace cannot reach.
package persist

import (
	"sort"
	"time"

	"github.com/cityworks/trafficsim/asset"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/cityworks/trafficsim/trip"
	"github.com/cityworks/trafficsim/vehicle"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// NodeRecord is one persisted intersection.
type NodeRecord struct {
	ID int32   `bson:"id"`
	X  float32 `bson:"x"`
	Y  float32 `bson:"y"`
}

// SegmentRecord is one persisted road edge. NodeA/NodeB reference
// NodeRecord.ID values within the same Snapshot, not live graph.NodeIDs.
type SegmentRecord struct {
	ID        int32 `bson:"id"`
	NodeA     int32 `bson:"node_a"`
	NodeB     int32 `bson:"node_b"`
	AssetID   int32 `bson:"asset_id"`
	LaneCount int   `bson:"lane_count"`
}

// ParkingSpotRecord is one persisted parking position, either in a
// building's lot (Street=false) or along its frontage (Street=true).
type ParkingSpotRecord struct {
	ID      int32   `bson:"id"`
	X       float32 `bson:"x"`
	Y       float32 `bson:"y"`
	HeadX   float32 `bson:"head_x"`
	HeadY   float32 `bson:"head_y"`
	State   int     `bson:"state"`
	Street  bool    `bson:"street"`
}

// BuildingRecord is one persisted placed building.
type BuildingRecord struct {
	ID      int32               `bson:"id"`
	AssetID int32               `bson:"asset_id"`
	X       float32             `bson:"x"`
	Y       float32             `bson:"y"`
	HeadX   float32             `bson:"head_x"`
	HeadY   float32             `bson:"head_y"`
	Segment int32               `bson:"segment"`
	Spots   []ParkingSpotRecord `bson:"spots"`
}

// PersonRecord is one persisted resident.
type PersonRecord struct {
	ID              int32   `bson:"id"`
	Home            int32   `bson:"home"`
	Favorites       []int32 `bson:"favorites"`
	CurrentBuilding int32   `bson:"current_building"`
	State           int     `bson:"state"`
	Timer           float64 `bson:"timer"`
}

// TripRecord is one persisted in-progress trip. PathIdx names the element
// of Path the vehicle currently occupies; on decode the trip resumes from
// the start of that segment rather than mid-curve, see Decode.
type TripRecord struct {
	ID             int32   `bson:"id"`
	Person         int32   `bson:"person"`
	Path           []int32 `bson:"path"`
	PathIdx        int     `bson:"path_idx"`
	StartBuilding  int32   `bson:"start_building"`
	DestBuilding   int32   `bson:"dest_building"`
	DestSpot       int32   `bson:"dest_spot"`
	VehicleID      int32   `bson:"vehicle_id"`
	VehicleAsset   int32   `bson:"vehicle_asset"`
	Length         float64 `bson:"length"`
	Aggressiveness float64 `bson:"aggressiveness"`
}

// Snapshot is the full persisted state of one run at a point in time.
type Snapshot struct {
	CreatedAt *timestamppb.Timestamp `bson:"created_at"`
	Nodes     []NodeRecord           `bson:"nodes"`
	Segments  []SegmentRecord        `bson:"segments"`
	Buildings []BuildingRecord       `bson:"buildings"`
	Persons   []PersonRecord         `bson:"persons"`
	Trips     []TripRecord           `bson:"trips"`
}

// Encode captures the live graph and trip state into a Snapshot.
func Encode(g *graph.Manager, trips *trip.Manager) *Snapshot {
	snap := &Snapshot{CreatedAt: timestamppb.New(time.Now())}

	nodes := g.AllNodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		snap.Nodes = append(snap.Nodes, NodeRecord{ID: int32(n.ID), X: n.Pos.X, Y: n.Pos.Y})
	}

	segs := g.AllSegments()
	sort.Slice(segs, func(i, j int) bool { return segs[i].ID < segs[j].ID })
	for _, s := range segs {
		snap.Segments = append(snap.Segments, SegmentRecord{
			ID: int32(s.ID), NodeA: int32(s.NodeA), NodeB: int32(s.NodeB),
			AssetID: s.AssetID, LaneCount: len(s.Lanes),
		})
	}

	for _, b := range trips.AllBuildings() {
		rec := BuildingRecord{
			ID: int32(b.ID), AssetID: b.AssetID, X: b.Pos.X, Y: b.Pos.Y,
			HeadX: b.Heading.X, HeadY: b.Heading.Y, Segment: int32(b.Segment),
		}
		for _, s := range b.Spots {
			rec.Spots = append(rec.Spots, spotRecord(s, false))
		}
		for _, s := range b.StreetSpots {
			rec.Spots = append(rec.Spots, spotRecord(s, true))
		}
		snap.Buildings = append(snap.Buildings, rec)
	}

	for _, p := range trips.AllPersons() {
		favs := make([]int32, len(p.Favorites))
		for i, f := range p.Favorites {
			favs[i] = int32(f)
		}
		snap.Persons = append(snap.Persons, PersonRecord{
			ID: int32(p.ID), Home: int32(p.Home), Favorites: favs,
			CurrentBuilding: int32(p.CurrentBuilding), State: int(p.State), Timer: p.Timer,
		})
	}

	for id, tr := range trips.Trips() {
		path := make([]int32, len(tr.Path))
		for i, s := range tr.Path {
			path[i] = int32(s)
		}
		pathIdx := 0
		if tr.Vehicle.Motion.CurLane != nil {
			if i := indexOf(tr.Path, tr.Vehicle.Motion.CurLane.Segment); i >= 0 {
				pathIdx = i
			}
		}
		var destSpot int32
		if tr.DestSpot != nil {
			destSpot = int32(tr.DestSpot.ID)
		}
		snap.Trips = append(snap.Trips, TripRecord{
			ID: int32(id), Person: int32(tr.Person), Path: path, PathIdx: pathIdx,
			StartBuilding: int32(tr.StartBuilding), DestBuilding: int32(tr.DestBuilding),
			DestSpot: destSpot, VehicleID: int32(tr.Vehicle.ID), VehicleAsset: tr.Vehicle.AssetID,
			Length: tr.Vehicle.Length, Aggressiveness: tr.Vehicle.Aggressiveness,
		})
	}

	return snap
}

func spotRecord(s *trip.ParkingSpot, street bool) ParkingSpotRecord {
	return ParkingSpotRecord{
		ID: int32(s.ID), X: s.Pos.X, Y: s.Pos.Y, HeadX: s.Heading.X, HeadY: s.Heading.Y,
		State: int(s.State), Street: street,
	}
}

func indexOf(path []graph.SegmentID, seg graph.SegmentID) int {
	for i, s := range path {
		if s == seg {
			return i
		}
	}
	return -1
}

// Marshal renders a Snapshot to BSON bytes.
func Marshal(snap *Snapshot) ([]byte, error) { return bson.Marshal(snap) }

// Unmarshal parses BSON bytes produced by Marshal.
func Unmarshal(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := bson.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// World is the set of live managers Decode reconstructs, wired together the
// same way cmd/trafficsim's startup does for a fresh run.
type World struct {
	Graph     *graph.Manager
	LaneTrack *lanetrack.Manager
	Junction  *junction.Manager
	Trips     *trip.Manager
}

// Decode rebuilds a live World from a Snapshot. Node and segment identity is
// not preserved byte-for-byte: the graph is replayed through AddNode/
// AddSegment in Snapshot order, which reassigns dense IDs starting at 1, and
// every stored ID reference (segment endpoints, building segments, trip
// paths) is translated through the resulting old-to-new maps. An
// in-progress trip resumes at the start of its current segment rather than
// its exact mid-curve position: the vehicle's Cursor is rebuilt fresh by
// navigation.NewCursor for the remaining sub-path, the same way
// interaction.Repath splices a new cursor onto a live trip.
func Decode(reg *asset.Registry, cfg config.Constants, rng *randengine.Engine, snap *Snapshot) (*World, error) {
	g := graph.NewManager(reg)
	nodeMap := make(map[int32]graph.NodeID, len(snap.Nodes))
	for _, nr := range snap.Nodes {
		n := g.AddNode(geometry.Point{X: nr.X, Y: nr.Y})
		nodeMap[nr.ID] = n.ID
	}

	segMap := make(map[int32]graph.SegmentID, len(snap.Segments))
	for _, sr := range snap.Segments {
		s, err := g.AddSegment(nodeMap[sr.NodeA], nodeMap[sr.NodeB], sr.AssetID, sr.LaneCount)
		if err != nil {
			return nil, err
		}
		segMap[sr.ID] = s.ID
	}

	lt := lanetrack.NewManager(g)
	junc := junction.NewManager(g, lt, cfg)
	trips := trip.NewManager(g, reg, cfg, rng, lt, junc)

	buildingMap := make(map[int32]trip.BuildingID, len(snap.Buildings))
	spotMap := make(map[int32]*trip.ParkingSpot)
	for _, br := range snap.Buildings {
		b := trips.AddBuilding(br.AssetID, geometry.Point{X: br.X, Y: br.Y},
			geometry.Point{X: br.HeadX, Y: br.HeadY}, segMap[br.Segment])
		buildingMap[br.ID] = b.ID
		for i, sr := range br.Spots {
			var spot *trip.ParkingSpot
			if sr.Street {
				spot = trips.AddStreetParking(b, geometry.Point{X: sr.X, Y: sr.Y}, geometry.Point{X: sr.HeadX, Y: sr.HeadY})
			} else if i < len(b.Spots) {
				spot = b.Spots[i]
			}
			if spot != nil {
				spot.State = trip.ParkingState(sr.State)
				spotMap[sr.ID] = spot
			}
		}
	}

	personMap := make(map[int32]*trip.Person, len(snap.Persons))
	for _, pr := range snap.Persons {
		favs := make([]trip.BuildingID, len(pr.Favorites))
		for i, f := range pr.Favorites {
			favs[i] = buildingMap[f]
		}
		p := trips.AddPerson(buildingMap[pr.Home], favs)
		p.CurrentBuilding = buildingMap[pr.CurrentBuilding]
		p.State = trip.PersonState(pr.State)
		p.Timer = pr.Timer
		personMap[pr.ID] = p
	}

	for _, tr := range snap.Trips {
		if err := resumeTrip(g, cfg, rng, lt, trips, segMap, buildingMap, spotMap, personMap, tr); err != nil {
			return nil, err
		}
	}

	return &World{Graph: g, LaneTrack: lt, Junction: junc, Trips: trips}, nil
}

func resumeTrip(
	g *graph.Manager, cfg config.Constants, rng *randengine.Engine, lt *lanetrack.Manager,
	trips *trip.Manager, segMap map[int32]graph.SegmentID, buildingMap map[int32]trip.BuildingID,
	spotMap map[int32]*trip.ParkingSpot, personMap map[int32]*trip.Person, tr TripRecord,
) error {
	path := make([]graph.SegmentID, len(tr.Path))
	for i, s := range tr.Path {
		path[i] = segMap[s]
	}
	remaining := path[tr.PathIdx:]
	if len(remaining) == 0 {
		return nil
	}

	destB, _ := trips.Building(buildingMap[tr.DestBuilding])
	destPos, destHeading := destB.Pos, destB.Heading
	if spot, ok := spotMap[tr.DestSpot]; ok {
		destPos, destHeading = spot.Pos, spot.Heading
	}
	dest := navigation.Endpoint{Pos: destPos, Heading: destHeading}

	cur, err := navigation.NewCursor(g, cfg, remaining, navigation.Endpoint{}, dest, rng)
	if err != nil {
		return err
	}

	v := vehicle.New(vehicle.VehicleID(tr.VehicleID), tr.VehicleAsset, tr.Length, tr.Aggressiveness)
	v.Cursor = cur
	v.MotionIdx = 1
	first, err := cur.Step(1)
	if err != nil {
		return err
	}
	v.Motion = first
	v.Step(0, cfg)
	if first.CurLane != nil {
		lt.Insert(*first.CurLane, v)
	}

	trips.ResumeTrip(personMap[tr.Person], v, path, buildingMap[tr.StartBuilding], buildingMap[tr.DestBuilding], spotMap[tr.DestSpot])
	return nil
}
