package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"watertank-sim/internal/config"
	"watertank-sim/internal/logging"
	"watertank-sim/internal/sim"
	"watertank-sim/internal/tank"
)

var (
	configPath string
	schemaPath string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:          "watertank-sim",
	Short:        "Draining water tank simulation",
	Long:         "watertank-sim simulates a tank draining through a side hole and streams its state to connected viewers.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration YAML (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(startCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// free for frames; quiet discards them while the TUI owns the terminal.
func newLogger(cfg *config.Config, quiet bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}
	log := logging.NewWithOptions(w, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)
	return log, closeFn, nil
}

// signalContext carries log and ends on SIGINT or SIGTERM.
func signalContext(parent context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(logging.NewContext(parent, log), os.Interrupt, syscall.SIGTERM)
}

func params(cfg *config.Config) sim.Params {
	return sim.Params{TimeStep: cfg.Simulation.TimeStep, Gravity: cfg.Simulation.Gravity}
}

// addSpecFlags registers the tank geometry flags shared by run and start.
func addSpecFlags(cmd *cobra.Command, spec *tank.TankSpec) {
	cmd.Flags().Float64Var(&spec.WaterLevel, "water-level", 100, "Initial water level (cm)")
	cmd.Flags().Float64Var(&spec.HoleHeight, "hole-height", 10, "Hole height above the floor (cm)")
	cmd.Flags().Float64Var(&spec.HoleDiameter, "hole-diameter", 1, "Hole diameter (cm)")
	cmd.Flags().Float64Var(&spec.TankWidth, "tank-width", 50, "Tank width (cm)")
}

// dialHost turns a listen address into one a local client can dial.
func dialHost(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
