// Command coredctl is a small operator CLI for inspecting a cored
// configuration file and probing a running daemon's health endpoint.
//
// Grounded on dantte-lp-gobfd's gobfdctl (a cobra-based companion CLI to the
// daemon) for the pattern of a cobra.Command tree wrapping the daemon's own
// config package rather than reimplementing parsing.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yangm97/cjdns/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coredctl",
		Short: "Inspect cored configuration and daemon health",
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newHealthCmd())

	return root
}

func newConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Configuration file inspection",
	}
	cfg.AddCommand(newConfigValidateCmd())
	return cfg
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Load and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: metrics=%s max_buffered_messages=%d\n",
				cfg.Metrics.Addr, cfg.Session.MaxBufferedMessages)
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health <metrics-addr>",
		Short: "Probe a running cored daemon's health endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			resp, err := client.Get("http://" + args[0] + "/healthz")
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}
