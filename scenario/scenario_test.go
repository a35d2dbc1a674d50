package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/persist"
	"github.com/cityworks/trafficsim/randengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, sc *Scenario) string {
	data, err := json.Marshal(sc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadAndBuildConstructsWorld(t *testing.T) {
	sc := &Scenario{
		Nodes: []persist.NodeRecord{
			{ID: 1, X: 0, Y: 0},
			{ID: 2, X: 200, Y: 0},
		},
		Segments: []persist.SegmentRecord{
			{ID: 1, NodeA: 1, NodeB: 2, AssetID: 1, LaneCount: 1},
		},
		Buildings: []persist.BuildingRecord{
			{ID: 1, AssetID: 1, X: 10, Y: 0, HeadX: 1, HeadY: 0, Segment: 1},
		},
	}
	path := writeScenario(t, sc)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 2)

	world, err := Build(config.DefaultConstants(), randengine.New(1), loaded)
	require.NoError(t, err)
	assert.Len(t, world.Graph.AllNodes(), 2)
	assert.Len(t, world.Graph.AllSegments(), 1)
	assert.Len(t, world.Trips.AllBuildings(), 1)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
