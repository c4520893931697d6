package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"watertank-sim/internal/scenario"
	"watertank-sim/internal/sim"
	"watertank-sim/internal/tank"
)

var (
	runSpec         tank.TankSpec
	runNoPacing     bool
	runOutput       string
	runScenarioPath string
	runPreset       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation locally without a server",
	Long:  "run simulates one tank from flags, or a scenario of tanks, and renders the frames as JSON lines or in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sc, err := runScenario()
		if err != nil {
			return err
		}
		if err := sc.Validate(cfg.Limits); err != nil {
			return err
		}

		local, err := newSink(runOutput, isTerminal(os.Stdout), os.Stdout, "watertank-sim run")
		if err != nil {
			return err
		}
		defer local.close()
		log, closeLog, err := newLogger(cfg, local.tui != nil)
		if err != nil {
			return err
		}
		defer closeLog()
		ctx, stop := signalContext(cmd.Context(), log)
		defer stop()

		engine := sim.NewEngine()
		if runNoPacing {
			engine = &sim.Engine{}
		}
		p := params(cfg)
		sup := sim.NewSupervisor(engine, sim.NewMultiWriter(local.out), cfg.Limits, p)

		results, err := sc.Play(ctx, supervisorRunner(sup, p))
		for _, r := range results {
			log.Info("stage finished", "scenario", sc.Name, "stage", r.Stage, "event", r.Event.Type, "value", r.Event.Value)
		}
		if err != nil && ctx.Err() == nil {
			return err
		}
		if local.tui != nil && ctx.Err() == nil {
			local.tui.Status("simulation finished, press q to quit")
			select {
			case <-local.tui.Done():
			case <-ctx.Done():
			}
		}
		return nil
	},
}

func init() {
	addSpecFlags(runCmd, &runSpec)
	runCmd.Flags().BoolVar(&runNoPacing, "no-pacing", false, "Do not sleep between ticks")
	runCmd.Flags().StringVar(&runOutput, "output", outputAuto, "Frame output: auto, json, tui or none")
	runCmd.Flags().StringVar(&runScenarioPath, "scenario", "", "Path to a scenario YAML to play instead of the flag geometry")
	runCmd.Flags().StringVar(&runPreset, "preset", "", "Name of a built-in scenario (demo, hole-sweep, refill)")
	runCmd.MarkFlagsMutuallyExclusive("scenario", "preset")
}

// runScenario picks the scenario file, the preset or a single stage built
// from the geometry flags.
func runScenario() (*scenario.Scenario, error) {
	switch {
	case runScenarioPath != "":
		return scenario.Load(runScenarioPath)
	case runPreset != "":
		sc, ok := scenario.BuiltIn()[runPreset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", runPreset)
		}
		return &sc, nil
	}
	return &scenario.Scenario{
		Name: "single",
		Stages: []scenario.Stage{{
			Name:         "flags",
			WaterLevel:   runSpec.WaterLevel,
			HoleHeight:   runSpec.HoleHeight,
			HoleDiameter: runSpec.HoleDiameter,
			TankWidth:    runSpec.TankWidth,
		}},
	}, nil
}

// supervisorRunner plays each stage as a supervised run and reports how it
// ended.
func supervisorRunner(sup *sim.Supervisor, p sim.Params) scenario.Runner {
	return scenario.RunnerFunc(func(ctx context.Context, spec tank.TankSpec) (scenario.Event, error) {
		if _, err := sup.Start(ctx, spec); err != nil {
			return scenario.Event{}, err
		}
		if err := sup.Wait(ctx); err != nil {
			if err := sup.Stop(context.WithoutCancel(ctx)); err != nil {
				return scenario.Event{}, err
			}
		}
		st, _ := sup.Status()
		if st.State != sim.StateCompleted {
			return scenario.Event{Type: scenario.EventCancelled, Value: st.Ticks}, nil
		}
		drained := float64(st.Ticks) * p.TimeStep
		if st.Last != nil {
			drained = st.Last.Time
		}
		return scenario.Event{Type: scenario.EventDrained, Value: int(drained)}, nil
	})
}
