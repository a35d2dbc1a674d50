// Package config loads the YAML configuration describing a simulation run:
// map input source, time control, and tunable simulation constants.
package config

import (
	"os"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v2"
)

// ControlStep mirrors the teacher's time-control block: a start step, a run
// length, and the wall-clock seconds each step advances.
type ControlStep struct {
	Start    int32   `yaml:"start"`
	Total    int32   `yaml:"total"`
	Interval float64 `yaml:"interval"`
}

// Constants holds the numeric defaults from spec.md §6.4. Every field has a
// sane zero-value fallback applied by Normalize so a config file only needs
// to override what it wants to change.
type Constants struct {
	SafetyDist           float64 `yaml:"safety_dist"`
	LaneCollisionRadius  float64 `yaml:"lane_collision_radius"`
	CollisionSteps       int     `yaml:"collision_steps"`
	CornerSharpness      float64 `yaml:"corner_sharpness"`
	LaneSwitchProbability float64 `yaml:"lane_switch_probability"`
	GreenSeconds         float64 `yaml:"green_seconds"`
	YellowSeconds        float64 `yaml:"yellow_seconds"`
	AllRedSeconds        float64 `yaml:"all_red_seconds"`
	DragFactor           float64 `yaml:"drag_factor"`
	RearDragRatio        float64 `yaml:"rear_drag_ratio"`
	NodeLookaheadDist    float64 `yaml:"node_lookahead_dist"`
	BrakeRampDist        float64 `yaml:"brake_ramp_dist"`
	MaxCurveAccel        float64 `yaml:"max_curve_accel"`
}

func (c *Constants) Normalize() {
	def := DefaultConstants()
	if c.SafetyDist == 0 {
		c.SafetyDist = def.SafetyDist
	}
	if c.LaneCollisionRadius == 0 {
		c.LaneCollisionRadius = def.LaneCollisionRadius
	}
	if c.CollisionSteps == 0 {
		c.CollisionSteps = def.CollisionSteps
	}
	if c.CornerSharpness == 0 {
		c.CornerSharpness = def.CornerSharpness
	}
	if c.LaneSwitchProbability == 0 {
		c.LaneSwitchProbability = def.LaneSwitchProbability
	}
	if c.GreenSeconds == 0 {
		c.GreenSeconds = def.GreenSeconds
	}
	if c.YellowSeconds == 0 {
		c.YellowSeconds = def.YellowSeconds
	}
	if c.AllRedSeconds == 0 {
		c.AllRedSeconds = def.AllRedSeconds
	}
	if c.DragFactor == 0 {
		c.DragFactor = def.DragFactor
	}
	if c.RearDragRatio == 0 {
		c.RearDragRatio = def.RearDragRatio
	}
	if c.NodeLookaheadDist == 0 {
		c.NodeLookaheadDist = def.NodeLookaheadDist
	}
	if c.BrakeRampDist == 0 {
		c.BrakeRampDist = def.BrakeRampDist
	}
	if c.MaxCurveAccel == 0 {
		c.MaxCurveAccel = def.MaxCurveAccel
	}
}

func DefaultConstants() Constants {
	return Constants{
		SafetyDist:            1.0,
		LaneCollisionRadius:   1.3,
		CollisionSteps:        4,
		CornerSharpness:       0.6667,
		LaneSwitchProbability: 0.15,
		GreenSeconds:          8,
		YellowSeconds:         2,
		AllRedSeconds:         1,
		DragFactor:            0.0014,
		RearDragRatio:         0.4,
		NodeLookaheadDist:     10,
		BrakeRampDist:         8,
		MaxCurveAccel:         6,
	}
}

// InputPath names the source of a dataset, matching the teacher's
// file-takes-priority-over-database convention.
type InputPath struct {
	URI   string `yaml:"uri,omitempty"`
	DB    string `yaml:"db,omitempty"`
	Col   string `yaml:"col,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// Control is the top-level control block of the config file.
type Control struct {
	Step             ControlStep `yaml:"step"`
	PreferFixedLight bool        `yaml:"prefer_fixed_light,omitempty"`
	PreferMaxPressureLight bool  `yaml:"prefer_max_pressure_light,omitempty"`
	Workers          int         `yaml:"workers,omitempty"`
}

// Config is the YAML configuration root.
type Config struct {
	Input     Input     `yaml:"input"`
	Control   Control   `yaml:"control"`
	Constants Constants `yaml:"constants"`
}

type Input struct {
	Map    InputPath  `yaml:"map"`
	Person *InputPath `yaml:"person,omitempty"`
}

// Load reads and parses a YAML config file and fills in constant defaults.
// Keys are matched against the snake_case yaml tags as written; camelCase
// aliases are not recognised (NormalizeKey is not applied to file keys).
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return LoadBytes(raw)
}

// LoadBytes parses raw YAML bytes the same way Load does, for callers that
// already have the config in hand (e.g. a base64-encoded command-line flag,
// matching the teacher's -config-data escape hatch for container deploys
// that can't mount a config file).
func LoadBytes(raw []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	c.Constants.Normalize()
	if c.Control.Workers <= 0 {
		c.Control.Workers = 4
	}
	return c, nil
}

// NormalizeKey converts an externally supplied flag/env key to the
// snake_case form the YAML schema uses.
func NormalizeKey(key string) string {
	return strcase.ToSnake(key)
}
