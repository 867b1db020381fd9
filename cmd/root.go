package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/BioHazard786/warpchat/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpchat",
	Short: "Anonymous one-to-one chat through a long-poll relay",
	Long: `WarpChat pairs strangers for one-to-one text chat. Run the relay with
"warpchat serve", then chat with a random partner ("warpchat queue") or meet
someone in a named room ("warpchat join <room>").`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
