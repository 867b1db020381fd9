package cmd

import (
	"fmt"

	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay health and counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		cfg.Transport = config.TransportHTTP

		c, err := Connect(ctx, cfg)
		if err != nil {
			return err
		}

		health, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		ui.PrintSuccessf("Relay at %s is %s (version %s)", cfg.ServerURL, health.Status, health.Version)

		st, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Println(ui.StatsView(st))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addClientFlags(statsCmd)
}
