package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"watertank-sim/internal/logging"
	"watertank-sim/internal/tank"
)

// ErrSupervisorStopped is returned by Start after Stop.
var ErrSupervisorStopped = errors.New("supervisor stopped")

// RunState is the lifecycle position of a simulation run.
type RunState string

const (
	StateCreated   RunState = "created"
	StateRunning   RunState = "running"
	StateCancelled RunState = "cancelled"
	StateCompleted RunState = "completed"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// RunStatus is a point-in-time view of a run.
type RunStatus struct {
	ID        string            `json:"id"`
	State     RunState          `json:"state"`
	Spec      tank.TankSpec     `json:"spec"`
	StartedAt time.Time         `json:"started_at"`
	Ticks     int               `json:"ticks"`
	Last      *tank.DataMessage `json:"last,omitempty"`
}

type run struct {
	id        string
	spec      tank.TankSpec
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state RunState
	ticks int
	last  *tank.DataMessage
}

// transition moves the run to next unless it already finished.
func (r *run) transition(next RunState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.state = next
	return true
}

func (r *run) status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RunStatus{ID: r.id, State: r.state, Spec: r.spec, StartedAt: r.startedAt, Ticks: r.ticks}
	if r.last != nil {
		last := *r.last
		st.Last = &last
	}
	return st
}

// tracking wraps out so data frames update the run's progress.
func (r *run) tracking(out Broadcaster) Broadcaster {
	return broadcasterFunc(func(ctx context.Context, msg tank.Message) int {
		if d, ok := msg.(tank.DataMessage); ok {
			r.mu.Lock()
			r.ticks++
			r.last = &d
			r.mu.Unlock()
		}
		return out.Broadcast(ctx, msg)
	})
}

type broadcasterFunc func(ctx context.Context, msg tank.Message) int

func (f broadcasterFunc) Broadcast(ctx context.Context, msg tank.Message) int { return f(ctx, msg) }

// Supervisor owns the single active run. Start replaces the active run by
// cancelling it, waiting for its worker to exit and only then launching the
// new one, so frames of two runs never interleave.
type Supervisor struct {
	engine *Engine
	out    Broadcaster
	limits tank.Limits
	params Params
	now    func() time.Time

	mu      sync.Mutex // serializes Start and Stop
	stopped bool
	current atomic.Pointer[run] // read without mu by Status and Wait
}

// NewSupervisor returns a supervisor publishing to out.
func NewSupervisor(engine *Engine, out Broadcaster, limits tank.Limits, params Params) *Supervisor {
	if engine == nil {
		engine = NewEngine()
	}
	return &Supervisor{
		engine: engine,
		out:    out,
		limits: limits,
		params: params,
		now:    time.Now,
	}
}

// Limits returns the limits used to validate specs.
func (s *Supervisor) Limits() tank.Limits { return s.limits }

// Params returns the integration constants applied to new runs.
func (s *Supervisor) Params() Params { return s.params }

// Start validates spec, supersedes any active run and launches a new one.
// It returns once the new worker is running; the simulation itself proceeds
// asynchronously and outlives ctx.
func (s *Supervisor) Start(ctx context.Context, spec tank.TankSpec) (string, error) {
	if err := spec.Validate(s.limits); err != nil {
		return "", err
	}
	if err := s.params.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrSupervisorStopped
	}

	log := logging.FromContext(ctx)
	if prev := s.current.Load(); prev != nil {
		prev.cancel()
		<-prev.done
		log.Info("superseded simulation", "run_id", prev.id)
	}

	r := &run{
		id:        uuid.NewString(),
		spec:      spec,
		startedAt: s.now().UTC(),
		done:      make(chan struct{}),
		state:     StateCreated,
	}
	log = log.With("run_id", r.id)
	runCtx, cancel := context.WithCancel(logging.NewContext(context.WithoutCancel(ctx), log))
	r.cancel = cancel

	// init goes out only after the previous worker has exited so no stale frame follows it.
	delivered := s.out.Broadcast(runCtx, tank.NewInitMessage(spec, s.limits))
	log.Info("starting simulation",
		"water_level", spec.WaterLevel,
		"hole_height", spec.HoleHeight,
		"hole_diameter", spec.HoleDiameter,
		"tank_width", spec.TankWidth,
		"time_step", s.params.TimeStep,
		"observers", delivered,
	)

	r.transition(StateRunning)
	s.current.Store(r)
	go func() {
		defer close(r.done)
		defer cancel()
		res := s.engine.Run(runCtx, spec, s.params, r.tracking(s.out))
		if res.Completed {
			r.transition(StateCompleted)
			log.Info("simulation completed", "ticks", res.Ticks)
			return
		}
		r.transition(StateCancelled)
		log.Info("simulation cancelled", "ticks", res.Ticks)
	}()
	return r.id, nil
}

// Stop cancels the active run, waits for it and refuses further starts.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	r := s.current.Load()
	if r == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the active run finishes or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) error {
	r := s.current.Load()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the latest run, if any.
func (s *Supervisor) Status() (RunStatus, bool) {
	r := s.current.Load()
	if r == nil {
		return RunStatus{}, false
	}
	return r.status(), true
}
