package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"watertank-sim/internal/config"
	"watertank-sim/internal/logging"
	"watertank-sim/internal/sim"
	"watertank-sim/internal/tank"
)

var (
	watchURL  string
	watchJSON bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Observe a running server over WebSocket",
	Long:  "watch connects to the simulation stream and renders frames in the terminal, or prints them as JSON lines when stdout is not a terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mode := outputAuto
		if watchJSON {
			mode = outputJSON
		}
		local, err := newSink(mode, isTerminal(os.Stdout), os.Stdout, "watertank-sim watch")
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

		url := watchURL
		if url == "" {
			url = streamURL(cfg.Server)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return fmt.Errorf("connect %s: %w", url, err)
		}
		log.Info("connected", "url", url)
		if local.tui != nil {
			local.tui.Status("connected to " + url)
		}
		go func() {
			<-ctx.Done()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}()

		if err := watch(ctx, conn, sim.NewMultiWriter(local.out)); err != nil {
			return err
		}
		if local.tui != nil && ctx.Err() == nil {
			local.tui.Status("server closed the stream, press q to quit")
			select {
			case <-local.tui.Done():
			case <-ctx.Done():
			}
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "WebSocket URL (derived from the server config when empty)")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print frames as JSON lines even on a terminal")
}

// frameReader is the part of websocket.Conn used by watch.
type frameReader interface {
	ReadMessage() (int, []byte, error)
}

// watch forwards every frame read from conn to out until the stream ends.
// A normal close or a cancelled ctx is not an error.
func watch(ctx context.Context, conn frameReader, out sim.Broadcaster) error {
	log := logging.FromContext(ctx)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("stream closed")
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("stream closed: %w", err)
			}
			return fmt.Errorf("read frame: %w", err)
		}
		msg, err := tank.Decode(data)
		if err != nil {
			log.Warn("skipping undecodable frame", "err", err)
			continue
		}
		out.Broadcast(ctx, msg)
	}
}

// streamURL is the WebSocket address a local client uses for s.
func streamURL(s config.Server) string {
	if s.WSAddr == "" {
		return "ws://" + dialHost(s.HTTPAddr) + "/ws"
	}
	path := s.WSPath
	if path == "" {
		path = "/"
	}
	return "ws://" + dialHost(s.WSAddr) + path
}
