// Package scenario plays a sequence of tank configurations back to back.
package scenario

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"watertank-sim/internal/tank"
)

// maxSteps bounds playback when triggers form a cycle.
const maxSteps = 100

// Event types reported after a stage ends.
const (
	EventDrained   = "drained"   // Value is the simulated drain time in whole seconds
	EventCancelled = "cancelled" // Value is the number of ticks delivered
)

// Scenario is an ordered list of stages with an overall description.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Stages      []Stage `yaml:"stages"`
}

// Stage is one simulation run. A stage without triggers is followed by the
// next stage in order; a stage with triggers ends playback when none match.
type Stage struct {
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description,omitempty"`
	WaterLevel   float64   `yaml:"water_level"`
	HoleHeight   float64   `yaml:"hole_height"`
	HoleDiameter float64   `yaml:"hole_diameter"`
	TankWidth    float64   `yaml:"tank_width"`
	Triggers     []Trigger `yaml:"triggers,omitempty"`
}

// Spec returns the tank configuration of the stage.
func (s Stage) Spec() tank.TankSpec {
	return tank.TankSpec{
		WaterLevel:   s.WaterLevel,
		HoleHeight:   s.HoleHeight,
		HoleDiameter: s.HoleDiameter,
		TankWidth:    s.TankWidth,
	}
}

// Trigger moves playback to another stage based on an event.
type Trigger struct {
	Event string `yaml:"event"`
	Value int    `yaml:"value"`
	Next  string `yaml:"next"`
}

// Event represents how a stage ended.
type Event struct {
	Type  string
	Value int
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}

// Validate checks every stage against limits and every trigger target.
func (s *Scenario) Validate(limits tank.Limits) error {
	if len(s.Stages) == 0 {
		return fmt.Errorf("scenario %q has no stages", s.Name)
	}
	names := make(map[string]bool, len(s.Stages))
	for _, st := range s.Stages {
		if st.Name == "" {
			return fmt.Errorf("scenario %q: stage without name", s.Name)
		}
		if names[st.Name] {
			return fmt.Errorf("scenario %q: duplicate stage %q", s.Name, st.Name)
		}
		names[st.Name] = true
		if err := st.Spec().Validate(limits); err != nil {
			return fmt.Errorf("stage %q: %w", st.Name, err)
		}
	}
	for _, st := range s.Stages {
		for _, tr := range st.Triggers {
			if !names[tr.Next] {
				return fmt.Errorf("stage %q: trigger targets unknown stage %q", st.Name, tr.Next)
			}
		}
	}
	return nil
}

// NextStage returns the name of the stage following current given the event.
// ok is false when playback ends.
func (s *Scenario) NextStage(current string, ev Event) (next string, ok bool) {
	for i, st := range s.Stages {
		if st.Name != current {
			continue
		}
		for _, tr := range st.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
		if len(st.Triggers) > 0 || ev.Type == EventCancelled || i+1 >= len(s.Stages) {
			return "", false
		}
		return s.Stages[i+1].Name, true
	}
	return "", false
}

func (s *Scenario) stage(name string) (Stage, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}

// Runner executes one stage to completion or cancellation.
type Runner interface {
	RunStage(ctx context.Context, spec tank.TankSpec) (Event, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, spec tank.TankSpec) (Event, error)

func (f RunnerFunc) RunStage(ctx context.Context, spec tank.TankSpec) (Event, error) {
	return f(ctx, spec)
}

// StageResult records how one played stage ended.
type StageResult struct {
	Stage string
	Event Event
}

// Play runs the stages starting with the first one and follows NextStage
// until playback ends, ctx is cancelled or maxSteps stages were played.
func (s *Scenario) Play(ctx context.Context, r Runner) ([]StageResult, error) {
	if len(s.Stages) == 0 {
		return nil, fmt.Errorf("scenario %q has no stages", s.Name)
	}
	var results []StageResult
	name := s.Stages[0].Name
	for step := 0; step < maxSteps; step++ {
		st, ok := s.stage(name)
		if !ok {
			return results, fmt.Errorf("unknown stage %q", name)
		}
		ev, err := r.RunStage(ctx, st.Spec())
		if err != nil {
			return results, fmt.Errorf("stage %q: %w", name, err)
		}
		results = append(results, StageResult{Stage: name, Event: ev})
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if name, ok = s.NextStage(name, ev); !ok {
			return results, nil
		}
	}
	return results, nil
}
