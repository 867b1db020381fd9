package cmd

import (
	"cmp"
	"fmt"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Chat in a named room",
	Long: `Join a named room, creating it if nobody is there yet. The first two
people to join a room chat with each other.

Examples:
  warpchat join lobby
  warpchat join lobby --name Bob --codec json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		roomID := args[0]

		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		c, err := Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.JoinRoom(ctx, roomID, flagName)
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}

		switch res.Status {
		case protocol.StatusRoomCreated:
			fmt.Println(ui.RoomBanner(res.RoomID, cfg.ServerURL))
		default:
			ui.PrintSuccessf("%s Joined room %s", ui.IconRoom, ui.BoldStyle.Render(res.RoomID))
		}

		return RunChatSession(ctx, c, cfg, res.RoomID, res.ClientID, cmp.Or(flagName, "You"), res.Partner)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)

	addClientFlags(joinCmd)
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (random if empty)")
}
