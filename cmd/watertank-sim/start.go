package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"watertank-sim/internal/tank"
)

var (
	startSpec tank.TankSpec
	startURL  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Ask a running server to start a simulation",
	Long:  "start posts a tank configuration to the server, replacing any simulation that is still running.",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := startURL
		if base == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			base = "http://" + dialHost(cfg.Server.HTTPAddr)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		id, err := postSimulation(ctx, http.DefaultClient, base, startSpec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "new simulation started: %s\n", id)
		return nil
	},
}

func init() {
	addSpecFlags(startCmd, &startSpec)
	startCmd.Flags().StringVar(&startURL, "url", "", "Server base URL (derived from the server config when empty)")
}

// postSimulation submits spec and returns the new run id.
func postSimulation(ctx context.Context, client *http.Client, baseURL string, spec tank.TankSpec) (string, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(baseURL, "/") + "/tank/simulate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Error  string `json:"error"`
		Field  string `json:"field"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Field != "" {
			return "", &tank.ValidationError{Field: out.Field, Constraint: strings.TrimPrefix(out.Error, out.Field+": ")}
		}
		return "", fmt.Errorf("server rejected simulation: %s: %s", resp.Status, out.Error)
	}
	return out.RunID, nil
}
