// Tank drain integration loop
package sim

import (
	"context"
	"errors"
	"iter"
	"math"
	"time"

	"watertank-sim/internal/logging"
	"watertank-sim/internal/tank"
)

// Broadcaster delivers a frame to every observer and reports how many
// received it. Zero observers is not an error.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg tank.Message) int
}

// Params are the integration constants of a run.
type Params struct {
	TimeStep float64 // seconds
	Gravity  float64 // m/s²
}

// DefaultParams returns a 0.1 s step under standard gravity.
func DefaultParams() Params {
	return Params{TimeStep: 0.1, Gravity: 9.81}
}

// Validate rejects parameters that would stall or invert the integration.
func (p Params) Validate() error {
	if !(p.TimeStep > 0) || math.IsInf(p.TimeStep, 0) {
		return errors.New("time step must be a positive number of seconds")
	}
	if !(p.Gravity > 0) || math.IsInf(p.Gravity, 0) {
		return errors.New("gravity must be positive")
	}
	return nil
}

// Duration converts the step into a wall-clock pause.
func (p Params) Duration() time.Duration {
	return time.Duration(p.TimeStep * float64(time.Second))
}

// SleepFunc pauses for d and reports false if ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Engine integrates the drain of a tank through a side orifice.
type Engine struct {
	// Sleep paces ticks. Nil disables pacing.
	Sleep SleepFunc
}

// NewEngine returns an engine paced in real time.
func NewEngine() *Engine {
	return &Engine{Sleep: SleepContext}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// geometry holds the per-run constants in SI units. The tank cross-section
// is a square of side tankWidth; there is no separate depth.
type geometry struct {
	holeHeight   float64
	holeArea     float64
	tankArea     float64
	timeToGround float64
	gravity      float64
	timeStep     float64
}

func newGeometry(spec tank.TankSpec, p Params) geometry {
	holeHeight := spec.HoleHeight / 100
	radius := spec.HoleDiameter / 100 / 2
	width := spec.TankWidth / 100
	return geometry{
		holeHeight:   holeHeight,
		holeArea:     math.Pi * radius * radius,
		tankArea:     width * width,
		timeToGround: math.Sqrt(2 * holeHeight / p.Gravity),
		gravity:      p.Gravity,
		timeStep:     p.TimeStep,
	}
}

// tickState is the unrounded outcome of one step.
type tickState struct {
	level    float64 // m, after the drop
	velocity float64 // m/s
	flowRate float64 // m³/s
	distance float64 // m
}

// advance applies one step from level h. It reports false once the water no
// longer stands above the hole.
func (g geometry) advance(h float64) (tickState, bool) {
	head := h - g.holeHeight
	if head <= 0 {
		return tickState{}, false
	}
	velocity := math.Sqrt(2 * g.gravity * head)
	flowRate := velocity * g.holeArea
	drop := flowRate * g.timeStep / g.tankArea
	return tickState{
		level:    h - drop,
		velocity: velocity,
		flowRate: flowRate,
		distance: velocity * g.timeToGround,
	}, true
}

func (st tickState) snapshot(elapsed float64) tank.Snapshot {
	return tank.Snapshot{
		ElapsedTime:    elapsed,
		WaterLevelCm:   tank.Round(st.level*100, 2),
		FlowDistanceCm: tank.Round(st.distance*100, 2),
		FlowRateLps:    tank.Round(st.flowRate*1000, 4),
	}
}

// Snapshots returns the lazy sequence of ticks for spec. It ends when the
// level reaches the hole or ctx is cancelled; cancellation is observed right
// after each yielded snapshot and during the pause between ticks.
func (e *Engine) Snapshots(ctx context.Context, spec tank.TankSpec, p Params) iter.Seq[tank.Snapshot] {
	return e.snapshots(ctx, spec, p, new(bool))
}

// snapshots sets *drained once the terminal tick is reached, before it is
// yielded, so a later cancellation cannot undo it.
func (e *Engine) snapshots(ctx context.Context, spec tank.TankSpec, p Params, drained *bool) iter.Seq[tank.Snapshot] {
	return func(yield func(tank.Snapshot) bool) {
		g := newGeometry(spec, p)
		pause := p.Duration()
		h := spec.WaterLevel / 100
		for tick := 0; ; tick++ {
			st, ok := g.advance(h)
			if !ok {
				*drained = true
				return
			}
			h = st.level
			last := h <= g.holeHeight
			if last {
				*drained = true
			}
			if !yield(st.snapshot(float64(tick) * p.TimeStep)) {
				return
			}
			if last || ctx.Err() != nil {
				return
			}
			if e.Sleep != nil && !e.Sleep(ctx, pause) {
				return
			}
		}
	}
}

// RunResult summarizes a finished run.
type RunResult struct {
	Ticks     int
	Completed bool // false when cancelled before draining
}

// Run broadcasts every snapshot of spec as a data frame. The caller is
// responsible for the init frame.
func (e *Engine) Run(ctx context.Context, spec tank.TankSpec, p Params, out Broadcaster) RunResult {
	log := logging.FromContext(ctx)
	var (
		res     RunResult
		drained bool
	)
	for snap := range e.snapshots(ctx, spec, p, &drained) {
		n := out.Broadcast(ctx, tank.NewDataMessage(snap))
		res.Ticks++
		log.Debug("tick", "time", snap.ElapsedTime, "water_level", snap.WaterLevelCm, "delivered", n)
	}
	res.Completed = drained
	return res
}
