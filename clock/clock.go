// Package clock tracks simulation time: the fixed per-tick dt, the current
// step and elapsed time, and pause handling.
package clock

import "fmt"

// Clock advances in fixed dt increments scaled by a speed multiplier. When
// paused, Tick still increments Step but dt collapses to zero for that
// tick (the tick still runs, updating animation-free state, per spec §5).
type Clock struct {
	BaseDT float64 // seconds per tick at sim_speed == 1
	Speed  float64 // sim_speed multiplier
	Paused bool

	Step int64
	T    float64 // seconds elapsed
}

func New(baseDT float64) *Clock {
	return &Clock{BaseDT: baseDT, Speed: 1}
}

// Tick advances the clock by one step and returns the dt to feed the
// simulation driver this tick.
func (c *Clock) Tick() float64 {
	c.Step++
	if c.Paused {
		return 0
	}
	dt := c.BaseDT * c.Speed
	c.T += dt
	return dt
}

func (c *Clock) HourMinuteSecond() (hour, minute int, second float64) {
	t := c.T
	hour = int(t) / 3600
	minute = int(t) % 3600 / 60
	second = t - float64(hour*3600+minute*60)
	return
}

func (c *Clock) String() string {
	h, m, s := c.HourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
}
