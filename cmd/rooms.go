package cmd

import (
	"fmt"
	"time"

	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the relay's rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		cfg.Transport = config.TransportHTTP

		c, err := Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		rooms, err := c.Rooms(cmd.Context())
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		fmt.Println(ui.RoomsView(rooms, time.Now()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	addClientFlags(roomsCmd)
}
