package vehicle

import (
	"testing"

	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightMotion(speedLimit float64, endT float32) navigation.Motion {
	return navigation.Motion{
		Kind:        navigation.MotionSegment,
		Bezier:      geometry.Bezier3{P0: geometry.Point{}, P1: geometry.Point{X: 33}, P2: geometry.Point{X: 66}, P3: geometry.Point{X: 100}},
		CurSpeedLim: speedLimit,
		EndT:        endT,
	}
}

func TestVehicleAcceleratesTowardTargetSpeed(t *testing.T) {
	v := New(1, 1, 4, 1.0)
	v.Motion = straightMotion(13.9, 1)
	v.Brake = 1
	cfg := config.DefaultConstants()
	for i := 0; i < 600; i++ {
		v.Step(1.0/60, cfg)
	}
	assert.InDelta(t, 13.9, v.Speed, 0.5)
}

func TestVehicleBrakeForcesStop(t *testing.T) {
	v := New(1, 1, 4, 1.0)
	v.Motion = straightMotion(13.9, 1)
	v.Speed = 10
	v.Brake = 0
	cfg := config.DefaultConstants()
	for i := 0; i < 300; i++ {
		v.Step(1.0/60, cfg)
	}
	assert.InDelta(t, 0, v.Speed, 0.1)
}

func TestVehicleReportsTripDoneAtEndT(t *testing.T) {
	v := New(1, 1, 4, 1.0)
	v.Motion = straightMotion(13.9, 0.5)
	v.BezT = 0.499
	v.Speed = 13.9
	v.BezSpeed = 100
	v.Cursor = nil // END is reached via TripDone, not Cursor.Step, when Kind stays SEGMENT hand-off would need a cursor; exercise the END branch instead
	v.Motion.Kind = navigation.MotionEnd
	cfg := config.DefaultConstants()
	res := v.Step(1.0/60, cfg)
	require.True(t, res.TripDone)
}
