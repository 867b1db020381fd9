package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/BioHazard786/warpchat/internal/protocol"
	"github.com/BioHazard786/warpchat/internal/version"
)

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("Request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/health", s.health)
	e.GET("/rooms", s.listRooms)
	e.GET("/stats", s.stats)
	e.GET("/ws", s.serveWs)
	e.POST("/tools/:tool", s.callTool)
}

func (s *Server) health(c echo.Context) error {
	return respond(c, http.StatusOK, &protocol.HealthResponse{Status: "ok", Version: version.Version})
}

func (s *Server) listRooms(c echo.Context) error {
	return respond(c, http.StatusOK, roomsResponse(s.hub.Rooms()))
}

func (s *Server) stats(c echo.Context) error {
	return respond(c, http.StatusOK, statsResponse(s.hub.Stats()))
}

// callTool decodes the body with the codec named by Content-Type and
// answers with the codec named by Accept.
func (s *Server) callTool(c echo.Context) error {
	req := c.Request()
	in := protocol.Negotiate(req.Header.Get(echo.HeaderContentType))

	body, err := io.ReadAll(io.LimitReader(req.Body, maxFrameSize+1))
	if err != nil {
		return badRequest(err)
	}
	if len(body) > maxFrameSize {
		return badRequest(fmt.Errorf("request body exceeds %d bytes", maxFrameSize))
	}

	result, err := s.dispatch(req.Context(), c.Param("tool"), func(v any) error {
		return in.Unmarshal(body, v)
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result)
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorBody(err)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body.Kind = strings.ToLower(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
		body.Message = fmt.Sprint(he.Message)
	}

	attrs := []any{
		slog.String("path", c.Request().URL.Path),
		slog.Int("status", status),
		slog.String("kind", body.Kind),
		slog.String("err", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", attrs...)
	} else {
		s.logger.Debug("Request failed", attrs...)
	}

	if err := respond(c, status, &protocol.ErrorResponse{Error: body}); err != nil {
		s.logger.Error("Failed to write error response", slog.String("err", err.Error()))
	}
}

func respond(c echo.Context, status int, v any) error {
	codec := protocol.Negotiate(c.Request().Header.Get(echo.HeaderAccept))
	data, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, codec.ContentType(), data)
}
