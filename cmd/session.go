package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BioHazard786/warpchat/internal/client"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/BioHazard786/warpchat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagCodec     string
	flagWebSocket bool
	flagName      string
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagServer, "server", "s", "", "Relay URL (default "+config.DefaultServerURL+")")
	cmd.Flags().StringVarP(&flagCodec, "codec", "c", "", "Wire codec: json or msgpack")
	cmd.Flags().BoolVar(&flagWebSocket, "ws", false, "Make tool calls over a websocket instead of HTTP")
}

func LoadConfig() (*config.Config, error) {
	opts := config.Options{ServerURL: flagServer, Codec: flagCodec}
	if flagWebSocket {
		opts.Transport = config.TransportWebSocket
	}
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Connect builds a relay client for cfg. Websocket clients are dialled
// right away.
func Connect(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	codec, err := protocol.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts := client.Options{ServerURL: cfg.ServerURL, Codec: codec}
	if cfg.Transport != config.TransportWebSocket {
		return client.New(opts), nil
	}

	spinner := ui.NewConnectionSpinner("Connecting to relay...").Start()
	defer spinner.Stop()
	c, err := client.Dial(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}
	return c, nil
}

// RunChatSession runs the chat screen for a seat and leaves the room
// afterwards, however the screen ended.
func RunChatSession(ctx context.Context, c *client.Client, cfg *config.Config, roomID, clientID, self string, partner *protocol.Partner) error {
	seat := c.Chat(roomID, clientID)

	opts := ui.ChatOptions{RoomID: roomID, SelfName: self, MaxMessage: cfg.MaxMessage}
	if partner != nil {
		opts.Partner = partner.DisplayName
	}
	end, chatErr := ui.RunChat(ctx, seat, opts)

	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	leaveErr := seat.Leave(leaveCtx)

	switch end {
	case ui.ChatPartnerLeft:
		fmt.Println(ui.MutedStyle.Render(ui.IconBye + " Your partner left the chat."))
		return nil
	case ui.ChatFailed:
		return errors.Join(fmt.Errorf("chat: %w", chatErr), leaveErr)
	default:
		if leaveErr != nil {
			return fmt.Errorf("leave chat: %w", leaveErr)
		}
		fmt.Println(ui.MutedStyle.Render(ui.IconBye + " You left the chat."))
		return nil
	}
}
