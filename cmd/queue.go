package cmd

import (
	"cmp"
	"fmt"
	"time"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var flagPoll time.Duration

var queueCmd = &cobra.Command{
	Use:     "queue",
	Aliases: []string{"q"},
	Short:   "Chat with a random partner",
	Long: `Wait in the matchmaking queue until another user is paired with you,
then chat with them.

Examples:
  warpchat queue
  warpchat queue --name Alice --ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		c, err := Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		spinner := ui.NewWaitingSpinner("Looking for a partner...").Start()
		res, err := c.FindPartner(ctx, flagName, flagPoll, func(q *protocol.QueueResponse) {
			spinner.SetMessage(fmt.Sprintf("Looking for a partner... (position %d of %d)", q.Position, q.QueueLength))
		})
		if err != nil {
			if ctx.Err() != nil {
				spinner.Stop()
				ui.PrintWarning("Stopped looking for a partner.")
				return nil
			}
			spinner.Error("Matchmaking failed")
			return fmt.Errorf("find partner: %w", err)
		}

		partner := "a stranger"
		if res.Partner != nil {
			partner = res.Partner.DisplayName
		}
		spinner.Success(fmt.Sprintf("Matched with %s in %s", partner, res.RoomID))

		return RunChatSession(ctx, c, cfg, res.RoomID, res.ClientID, cmp.Or(flagName, "You"), res.Partner)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)

	addClientFlags(queueCmd)
	queueCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (random if empty)")
	queueCmd.Flags().DurationVar(&flagPoll, "poll", 30*time.Second, "How long each matchmaking wait lasts")
}
