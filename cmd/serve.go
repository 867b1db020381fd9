package cmd

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/logging"
	"github.com/BioHazard786/warpchat/internal/server"
	"github.com/BioHazard786/warpchat/internal/version"
	"github.com/spf13/cobra"
)

var serveOpts config.Options

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat relay",
	Long: `Run the chat relay server.

Every flag can also be set through the environment (WARPCHAT_ADDR,
WARPCHAT_DEFAULT_TIMEOUT, WARPCHAT_MAX_TIMEOUT, WARPCHAT_MAX_MESSAGE,
WARPCHAT_CLIENT_IDLE, WARPCHAT_ROOM_TTL, WARPCHAT_SWEEP_INTERVAL).

Examples:
  warpchat serve
  warpchat serve --addr :9000 --max-timeout 2m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveOpts)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// The relay is a daemon: it logs at info unless told otherwise.
		logger := logging.New(os.Stderr, cmp.Or(os.Getenv("LOG_LEVEL"), "info"), os.Getenv("LOG_FORMAT"))
		slog.SetDefault(logger)

		hub := chat.NewHub(chat.Options{
			DefaultTimeout:   cfg.DefaultTimeout,
			MaxTimeout:       cfg.MaxTimeout,
			MaxMessageLength: cfg.MaxMessage,
			Logger:           logger,
		})

		logger.Info("Starting chat relay",
			slog.String("addr", cfg.Addr),
			slog.String("version", version.Version),
			slog.Duration("default_timeout", cfg.DefaultTimeout),
			slog.Duration("max_timeout", cfg.MaxTimeout),
		)
		return server.New(hub, cfg, logger).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.Addr, "addr", "a", "", "Listen address (default "+config.DefaultAddr+")")
	f.DurationVar(&serveOpts.DefaultTimeout, "default-timeout", 0, "Timeout for blocking calls that do not set one")
	f.DurationVar(&serveOpts.MaxTimeout, "max-timeout", 0, "Upper bound for any blocking call")
	f.IntVar(&serveOpts.MaxMessage, "max-message", 0, "Largest accepted message in bytes")
	f.DurationVar(&serveOpts.ClientIdle, "client-idle", 0, "Disconnect clients idle for this long")
	f.DurationVar(&serveOpts.RoomTTL, "room-ttl", 0, "Keep closed rooms this long before sweeping them")
	f.DurationVar(&serveOpts.SweepInterval, "sweep-interval", 0, "How often idle clients and closed rooms are swept")
}
