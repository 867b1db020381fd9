// Package server exposes the chat hub as tool calls over HTTP and
// websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
)

const shutdownTimeout = 5 * time.Second

// Server is the relay's network front end.
type Server struct {
	hub      *chat.Hub
	cfg      *config.Config
	logger   *slog.Logger
	echo     *echo.Echo
	tools    map[string]toolFunc
	upgrader websocket.Upgrader
	janitor  *Janitor
}

func New(hub *chat.Hub, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		echo:   echo.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		janitor: NewJanitor(hub, cfg, logger),
	}
	s.tools = s.toolset()
	s.routes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on the configured address and runs the janitor until ctx is
// done, then shuts both down. Blocking calls in flight are cancelled.
func (s *Server) Run(ctx context.Context) error {
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	s.echo.Server.BaseContext = func(net.Listener) context.Context { return base }

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Relay listening", slog.String("addr", s.cfg.Addr))
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		s.janitor.Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down relay")
		cancelBase()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
