package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"watertank-sim/internal/tank"
)

var (
	goldenSpec = tank.TankSpec{WaterLevel: 100, HoleHeight: 10, HoleDiameter: 1, TankWidth: 50}
	// drains in roughly ninety ticks
	quickSpec = tank.TankSpec{WaterLevel: 50, HoleHeight: 10, HoleDiameter: 2, TankWidth: 10}
)

func unpaced() *Engine { return &Engine{} }

func collect(e *Engine, ctx context.Context, spec tank.TankSpec) []tank.Snapshot {
	var out []tank.Snapshot
	for s := range e.Snapshots(ctx, spec, DefaultParams()) {
		out = append(out, s)
	}
	return out
}

func near(got, want, tol float64) bool { return math.Abs(got-want) <= tol }

func TestAdvanceGoldenStep(t *testing.T) {
	g := newGeometry(goldenSpec, DefaultParams())
	st, ok := g.advance(goldenSpec.WaterLevel / 100)
	if !ok {
		t.Fatalf("expected a step above the hole")
	}
	if !near(st.velocity, 4.2021, 1e-4) {
		t.Errorf("velocity = %v, want ~4.2021", st.velocity)
	}
	if !near(g.holeArea, 7.854e-5, 1e-8) {
		t.Errorf("hole area = %v, want ~7.854e-5", g.holeArea)
	}
	if !near(st.flowRate, 3.3004e-4, 1e-8) {
		t.Errorf("flow rate = %v, want ~3.3004e-4", st.flowRate)
	}
	if drop := 1 - st.level; !near(drop, 1.3201e-4, 1e-8) {
		t.Errorf("level drop = %v, want ~1.3201e-4", drop)
	}
	if !near(st.level*100, 99.9868, 1e-4) {
		t.Errorf("level = %v cm, want ~99.9868", st.level*100)
	}
	if !near(st.distance, 0.6, 1e-9) {
		t.Errorf("distance = %v, want 0.6", st.distance)
	}
}

func TestFirstSnapshotGolden(t *testing.T) {
	var first tank.Snapshot
	for s := range unpaced().Snapshots(context.Background(), goldenSpec, DefaultParams()) {
		first = s
		break
	}
	want := tank.Snapshot{ElapsedTime: 0, WaterLevelCm: 99.99, FlowDistanceCm: 60, FlowRateLps: 0.33}
	if first != want {
		t.Fatalf("first snapshot = %+v, want %+v", first, want)
	}
}

func TestAdvanceStopsAtHole(t *testing.T) {
	g := newGeometry(quickSpec, DefaultParams())
	if _, ok := g.advance(quickSpec.HoleHeight / 100); ok {
		t.Fatalf("expected no step when level equals hole height")
	}
}

func TestLevelsDecreaseUntilHole(t *testing.T) {
	g := newGeometry(quickSpec, DefaultParams())
	hole := quickSpec.HoleHeight / 100
	h := quickSpec.WaterLevel / 100
	steps := 0
	for {
		st, ok := g.advance(h)
		if !ok {
			break
		}
		if st.level >= h {
			t.Fatalf("step %d: level %v did not drop below %v", steps, st.level, h)
		}
		if st.flowRate < 0 || st.distance < 0 {
			t.Fatalf("step %d: negative flow %v or distance %v", steps, st.flowRate, st.distance)
		}
		if h <= hole {
			t.Fatalf("step %d taken from level %v at or below the hole", steps, h)
		}
		h = st.level
		steps++
	}
	if h > hole {
		t.Fatalf("final level %v still above hole %v", h, hole)
	}

	snaps := collect(unpaced(), context.Background(), quickSpec)
	if len(snaps) != steps {
		t.Fatalf("expected %d snapshots, got %d", steps, len(snaps))
	}
	for i, s := range snaps {
		if want := tank.Round(float64(i)*0.1, 2); tank.Round(s.ElapsedTime, 2) != want {
			t.Fatalf("snapshot %d time = %v, want %v", i, s.ElapsedTime, want)
		}
		if i > 0 && s.WaterLevelCm > snaps[i-1].WaterLevelCm {
			t.Fatalf("snapshot %d level rose: %v > %v", i, s.WaterLevelCm, snaps[i-1].WaterLevelCm)
		}
		if s.FlowRateLps < 0 || s.FlowDistanceCm < 0 {
			t.Fatalf("snapshot %d has negative values: %+v", i, s)
		}
	}
	if last := snaps[len(snaps)-1]; last.WaterLevelCm > quickSpec.HoleHeight {
		t.Fatalf("terminal level %v above hole height %v", last.WaterLevelCm, quickSpec.HoleHeight)
	}
}

func TestSnapshotsStopOnCancelDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeps := 0
	e := &Engine{Sleep: func(ctx context.Context, d time.Duration) bool {
		sleeps++
		if sleeps == 3 {
			cancel()
		}
		return ctx.Err() == nil
	}}
	if got := len(collect(e, ctx, goldenSpec)); got != 3 {
		t.Fatalf("expected 3 snapshots before cancellation, got %d", got)
	}
}

func TestSnapshotsStopWithoutSleepingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeps := 0
	e := &Engine{Sleep: func(context.Context, time.Duration) bool {
		sleeps++
		return true
	}}
	n := 0
	for range e.Snapshots(ctx, goldenSpec, DefaultParams()) {
		n++
		if n == 2 {
			cancel()
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 snapshots, got %d", n)
	}
	if sleeps != 1 {
		t.Fatalf("expected 1 pause, got %d", sleeps)
	}
}

func TestRunBroadcastsDataFrames(t *testing.T) {
	rec := &recorder{}
	res := unpaced().Run(context.Background(), quickSpec, DefaultParams(), rec)
	if !res.Completed {
		t.Fatalf("expected completed run")
	}
	msgs := rec.messages()
	if len(msgs) != res.Ticks || res.Ticks == 0 {
		t.Fatalf("expected %d frames, got %d", res.Ticks, len(msgs))
	}
	for _, m := range msgs {
		if m.Method() != tank.MethodData {
			t.Fatalf("unexpected %s frame from Run", m.Method())
		}
	}
}

func TestRunCompletedWhenCancelledAfterFinalFrame(t *testing.T) {
	n := len(collect(unpaced(), context.Background(), quickSpec))
	for _, tc := range []struct {
		name      string
		cancelAt  int
		completed bool
	}{
		{"after final frame", n, true},
		{"before final frame", n - 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			seen := 0
			out := broadcasterFunc(func(context.Context, tank.Message) int {
				seen++
				if seen == tc.cancelAt {
					cancel()
				}
				return 0
			})
			res := unpaced().Run(ctx, quickSpec, DefaultParams(), out)
			if res.Completed != tc.completed || res.Ticks != tc.cancelAt {
				t.Fatalf("result = %+v, want completed=%v after %d ticks", res, tc.completed, tc.cancelAt)
			}
		})
	}
}

func TestSnapshotsNoPauseAfterFinalFrame(t *testing.T) {
	sleeps := 0
	e := &Engine{Sleep: func(context.Context, time.Duration) bool {
		sleeps++
		return true
	}}
	n := len(collect(e, context.Background(), quickSpec))
	if sleeps != n-1 {
		t.Fatalf("expected %d pauses for %d snapshots, got %d", n-1, n, sleeps)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	for _, p := range []Params{{0, 9.81}, {0.1, 0}, {math.NaN(), 9.81}, {0.1, math.Inf(1)}} {
		if err := p.Validate(); err == nil {
			t.Errorf("expected %+v to be rejected", p)
		}
	}
	if d := DefaultParams().Duration(); d != 100*time.Millisecond {
		t.Errorf("duration = %v", d)
	}
}
