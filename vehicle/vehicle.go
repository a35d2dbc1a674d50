// Package vehicle implements per-tick vehicle dynamics: target-speed
// selection, acceleration/drag, Bézier-t stepping along the current motion,
// and hand-off between motions in a navigation cursor.
package vehicle

import (
	"math"

	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/geometry"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/navigation"
)

type VehicleID int32

// SimVehicle is a vehicle under active simulation (as opposed to a pocket
// car, which has no SimVehicle at all — see trip.go).
type SimVehicle struct {
	ID             VehicleID
	AssetID        int32
	Length         float64
	Aggressiveness float64 // spec §4.8: in [0.7, 1.5]

	Cursor    *navigation.Cursor
	MotionIdx int
	Motion    navigation.Motion

	BezT      float32
	Speed     float64
	Brake     float64 // in [0,1]; reset to 1 ("no braking") at the start of each tick by the caller
	BezSpeed  float64

	Front, Rear geometry.Point

	// accelRate/decelRate are per-vehicle tuning, not currently varied
	// beyond a flat default; a future pluggable driver model would key off
	// these instead of constants.
	AccelRate, DecelRate float64
}

func New(id VehicleID, assetID int32, length float64, aggressiveness float64) *SimVehicle {
	return &SimVehicle{
		ID:             id,
		AssetID:        assetID,
		Length:         length,
		Aggressiveness: aggressiveness,
		AccelRate:      2.5,
		DecelRate:      4.5,
		Brake:          1,
		BezSpeed:       1,
	}
}

// StepResult reports lane-membership changes the caller must apply to
// lanetrack (vehicle.go never touches lane lists itself to avoid an import
// cycle; sim.Driver's phase-3 loop wires the two together).
type StepResult struct {
	HandedOff   bool
	OldLane     *graph.LaneID
	NewLane     *graph.LaneID
	TripDone    bool
}

// Step advances v by dt, given the current tick's admission-control brake
// value already applied to v.Brake by the SEGMENT/NODE passes.
func (v *SimVehicle) Step(dt float64, cfg config.Constants) StepResult {
	v.applyDynamics(dt, cfg)
	return v.advanceBezT(dt, cfg)
}

func (v *SimVehicle) applyDynamics(dt float64, cfg config.Constants) {
	m := v.Motion
	target := m.CurSpeedLim
	remaining := (float64(m.EndT) - float64(v.BezT)) * v.BezSpeed
	if remaining <= 5 && m.NextSpeedLim > 0 {
		frac := clamp01(1 - remaining/5)
		target = target + (m.NextSpeedLim-target)*frac
	}
	target *= v.Aggressiveness
	target *= v.Brake
	if target < 0.33 {
		target = 0
	}

	drag := cfg.DragFactor * v.Speed * v.Speed
	if target > v.Speed {
		v.Speed += (v.AccelRate - drag) * dt
		if v.Speed > target {
			v.Speed = target
		}
	} else {
		v.Speed -= (v.DecelRate + drag) * dt
		if v.Speed < target {
			v.Speed = target
		}
	}
	if v.Speed < 0 {
		v.Speed = 0
	}
}

func (v *SimVehicle) advanceBezT(dt float64, cfg config.Constants) StepResult {
	if v.BezSpeed < geometry.Epsilon {
		v.BezSpeed = 1
	}
	v.BezT += float32(v.Speed * dt / v.BezSpeed)

	var result StepResult
	if v.BezT >= v.Motion.EndT {
		result.OldLane = v.Motion.CurLane
		if v.Motion.Kind == navigation.MotionEnd {
			result.TripDone = true
			v.updatePosition()
			return result
		}
		residualArc := (float64(v.BezT) - float64(v.Motion.EndT)) * v.BezSpeed
		v.MotionIdx++
		next, err := v.Cursor.Step(v.MotionIdx)
		if err != nil {
			result.TripDone = true
			return result
		}
		v.Motion = next
		newT := float64(next.NextStartT) + residualArc/maxf(v.BezSpeed, geometry.Epsilon)
		if newT > float64(next.EndT) {
			newT = float64(next.EndT)
		}
		v.BezT = float32(newT)
		result.HandedOff = true
		result.NewLane = next.CurLane
	}
	v.updatePosition()
	return result
}

// updatePosition evaluates the current motion's curve at BezT, sets
// BezSpeed, and positions front/rear via a trailer model: the rear trails
// the front along the direction from the old rear toward the front, damped
// by a fixed ratio to tame swing on tight curves (spec §4.8).
func (v *SimVehicle) updatePosition() {
	pos, vel := v.Motion.Bezier.Eval(v.BezT)
	speed := vel.Len2D()
	if speed < 1 {
		speed = 1
	}
	v.BezSpeed = float64(speed)

	oldRear := v.Rear
	if oldRear == (geometry.Point{}) {
		oldRear = pos
	}
	forward := vel.Normalize2D()
	reference := oldRear.Add(forward.Scale(float32(0.4 * v.Length)))
	toRef := pos.Sub(reference).Normalize2D()
	if toRef == (geometry.Point{}) {
		toRef = forward.Scale(-1)
	}
	v.Front = pos
	v.Rear = pos.Sub(toRef.Scale(float32(v.Length)))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func maxf(a, b float64) float64 { return math.Max(a, b) }
