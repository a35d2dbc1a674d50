// Package sim drives the per-tick simulation: the mandated four-phase order
// (segment pass, node pass, vehicle dynamics, metrics), with a bounded
// worker-pool fan-out across phases 1 and 2 (spec §5).
package sim

import (
	"sync"

	"github.com/cityworks/trafficsim/clock"
	"github.com/cityworks/trafficsim/config"
	"github.com/cityworks/trafficsim/graph"
	"github.com/cityworks/trafficsim/junction"
	"github.com/cityworks/trafficsim/lanetrack"
	"github.com/cityworks/trafficsim/trip"
	"github.com/cityworks/trafficsim/vehicle"
	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
)

// Metrics is the per-tick reduction over the active population (spec §5
// phase 4).
type Metrics struct {
	Step        int64
	ActiveTrips int
	MeanSpeed   float64
	P90Speed    float64
	MeanWait    float64
	MaxWait     float64
}

// Driver owns every manager and runs one tick at a time.
type Driver struct {
	G     *graph.Manager
	LT    *lanetrack.Manager
	Junc  *junction.Manager
	Trips *trip.Manager
	Clock *clock.Clock
	Cfg   config.Constants

	Workers int
	Log     *logrus.Entry

	Last Metrics
}

// New wires a driver from already-constructed managers (grounded on
// task/task.go's wiring style: config + clock + managers built once at
// startup and handed to the driver).
func New(g *graph.Manager, lt *lanetrack.Manager, junc *junction.Manager, trips *trip.Manager, clk *clock.Clock, cfg config.Constants, workers int, log *logrus.Logger) *Driver {
	if workers <= 0 {
		workers = 4
	}
	return &Driver{
		G: g, LT: lt, Junc: junc, Trips: trips, Clock: clk, Cfg: cfg,
		Workers: workers,
		Log:     log.WithField("component", "sim.Driver"),
	}
}

// Step pulls dt from the driver's clock (respecting pause/speed) and runs
// one tick, the way a running simulation's main loop calls it.
func (d *Driver) Step() Metrics {
	return d.Advance(d.Clock.Tick())
}

// Advance runs exactly one tick: resets per-tick vehicle brakes, then the
// four mandated phases (spec §5). dt == 0 still runs the full pass (pause
// semantics), it simply makes no arc-length progress.
func (d *Driver) Advance(dt float64) Metrics {
	d.Trips.Tick(dt)
	d.resetBrakes()

	d.segmentPass()
	d.nodePass(dt)
	dirtyLanes := d.vehiclePass(dt)
	for lane := range dirtyLanes {
		d.LT.Resort(lane)
	}

	d.Last = d.reduceMetrics()
	d.Log.WithFields(logrus.Fields{
		"step":         d.Last.Step,
		"active_trips": d.Last.ActiveTrips,
		"mean_speed":   d.Last.MeanSpeed,
		"mean_wait":    d.Last.MeanWait,
	}).Debug("tick complete")
	return d.Last
}

func (d *Driver) activeVehicles() []*vehicle.SimVehicle {
	trips := d.Trips.Trips()
	vs := make([]*vehicle.SimVehicle, 0, len(trips))
	for _, t := range trips {
		vs = append(vs, t.Vehicle)
	}
	return vs
}

func (d *Driver) resetBrakes() {
	for _, v := range d.activeVehicles() {
		v.Brake = 1
	}
}

// segmentPass is phase 1, fanned out across a bounded worker pool (grounded
// on task/simulet.go's manager-goroutine fan-out).
func (d *Driver) segmentPass() {
	segs := d.G.AllSegments()
	d.parallelFor(len(segs), func(i int) {
		d.LT.UpdateSegmentPass(segs[i], d.Cfg, nil)
	})
}

// nodePass is phase 2. Per spec §5, a sharded implementation may only
// parallelize here if no node's update touches another node's tracked list
// or a lane another concurrently-processed node writes to; our shards are
// whole nodes and nodes only mutate their own tracked list and the
// AvailableSpace of lanes they read (never write), so this holds.
func (d *Driver) nodePass(dt float64) {
	nodes := d.G.AllNodes()
	d.parallelFor(len(nodes), func(i int) {
		d.Junc.Tick(nodes[i], dt)
	})
}

// vehiclePass is phase 3, the exclusive mutator of lane-list membership
// (spec §5). It runs single-threaded: vehicle hand-off mutates shared
// lanetrack/trip state that phase 3 alone owns this tick.
func (d *Driver) vehiclePass(dt float64) map[graph.LaneID]bool {
	dirty := map[graph.LaneID]bool{}
	for tripID, t := range d.Trips.Trips() {
		v := t.Vehicle
		res := v.Step(dt, d.Cfg)

		switch {
		case res.TripDone:
			if res.OldLane != nil {
				d.LT.Remove(v)
			}
			d.Trips.FinishTrip(tripID)
		case res.HandedOff:
			if res.OldLane != nil {
				d.LT.Remove(v)
			}
			if res.NewLane != nil {
				d.LT.Insert(*res.NewLane, v)
				dirty[*res.NewLane] = true
			}
		default:
			if v.Motion.CurLane != nil {
				dirty[*v.Motion.CurLane] = true
			}
		}
	}
	return dirty
}

// reduceMetrics is phase 4.
func (d *Driver) reduceMetrics() Metrics {
	vs := d.activeVehicles()
	m := Metrics{Step: d.Clock.Step, ActiveTrips: len(vs)}
	if len(vs) == 0 {
		return m
	}

	speeds := make([]float64, len(vs))
	for i, v := range vs {
		speeds[i] = v.Speed
	}
	if mean, err := stats.Mean(speeds); err == nil {
		m.MeanSpeed = mean
	}
	if p90, err := stats.Percentile(speeds, 90); err == nil {
		m.P90Speed = p90
	}

	var waits []float64
	for _, node := range d.G.AllNodes() {
		for _, a := range d.Junc.Tracked(node.ID) {
			waits = append(waits, a.WaitTime)
		}
	}
	if len(waits) > 0 {
		if mean, err := stats.Mean(waits); err == nil {
			m.MeanWait = mean
		}
		if max, err := stats.Max(waits); err == nil {
			m.MaxWait = max
		}
	}
	return m
}

// parallelFor runs fn(0..n) across a bounded worker pool sized at d.Workers,
// blocking until every index has run.
func (d *Driver) parallelFor(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := d.Workers
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	idx := make(chan int, n)
	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
