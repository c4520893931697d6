package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"watertank-sim/internal/admin"
	"watertank-sim/internal/hub"
	"watertank-sim/internal/sim"
)

var serveOutput string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the WebSocket stream",
	Long:  "serve accepts simulation requests over HTTP and streams every run to WebSocket observers until SIGINT or SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		local, err := newSink(serveOutput, isTerminal(os.Stdout), os.Stdout, "watertank-sim serve")
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

		h := hub.New(hub.WithWriteTimeout(cfg.Server.WriteTimeout))
		sup := sim.NewSupervisor(sim.NewEngine(), sim.NewMultiWriter(h, local.out), cfg.Limits, params(cfg))
		srv := admin.NewServer(sup, h, admin.Options{
			WSAddr:          cfg.Server.WSAddr,
			WSPath:          cfg.Server.WSPath,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		})

		// Listeners outlive the signal so in-flight frames drain before
		// HTTP shuts down.
		srvCtx, cancelSrv := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelSrv()
		errCh := make(chan error, 2)
		listeners := 1
		go func() { errCh <- srv.Start(srvCtx, cfg.Server.HTTPAddr) }()
		if cfg.Server.WSAddr != "" {
			listeners++
			go func() { errCh <- srv.StartWebSocket(srvCtx) }()
		}

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errCh:
			listeners--
			log.Error("listener failed", "err", runErr)
		}

		log.Info("shutting down")
		h.StopAccepting()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			log.Warn("active simulation did not stop in time", "err", err)
		}
		if err := h.Close(); err != nil {
			log.Warn("closing observers failed", "err", err)
		}
		cancelSrv()
		for ; listeners > 0; listeners-- {
			if err := <-errCh; err != nil && runErr == nil {
				runErr = err
			}
		}
		log.Info("watertank simulation stopped")
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOutput, "output", outputNone, "Also render frames locally: none, json, tui or auto")
}
