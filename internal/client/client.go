// Package client calls the relay's tools over HTTP or a websocket.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

// APIError is a failure reported by the relay. It unwraps to the matching
// chat sentinel, so errors.Is(err, chat.ErrRoomFull) works on the client.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return chat.ErrorFor(chat.Kind(e.Kind))
}

type Options struct {
	ServerURL string

	// Codec defaults to msgpack.
	Codec protocol.Codec

	// HTTPClient overrides the default client, whose dialer falls back to
	// public DNS servers.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client calls relay tools. Tool calls go over a websocket when the client
// was created with Dial and over plain HTTP otherwise; listings always use
// HTTP.
type Client struct {
	baseURL string
	codec   protocol.Codec
	http    *http.Client
	ws      *wsTransport
	logger  *slog.Logger
}

// New returns a Client that makes every call over HTTP.
func New(opts Options) *Client {
	if opts.Codec == nil {
		opts.Codec = protocol.Msgpack
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(opts.ServerURL, "/"),
		codec:   opts.Codec,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// Dial returns a Client whose tool calls share one websocket. Closing it
// makes the relay disconnect every client id issued over the connection.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	c := New(opts)
	ws, err := dialWs(ctx, c.baseURL, c.codec, c.logger)
	if err != nil {
		return nil, err
	}
	c.ws = ws
	return c, nil
}

// Close releases the websocket, if any.
func (c *Client) Close() error {
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialContext(&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	})
	// No client timeout: blocking calls are bounded by the relay's max
	// timeout and by ctx.
	return &http.Client{Transport: transport}
}

func (c *Client) EnterQueue(ctx context.Context, displayName string, timeout time.Duration) (*protocol.QueueResponse, error) {
	var res protocol.QueueResponse
	err := c.call(ctx, protocol.ToolEnterQueue, protocol.EnterQueueRequest{
		DisplayName: displayName,
		Timeout:     protocol.Seconds(timeout),
	}, &res)
	return &res, err
}

func (c *Client) WaitForMatch(ctx context.Context, clientID string, timeout time.Duration) (*protocol.QueueResponse, error) {
	var res protocol.QueueResponse
	err := c.call(ctx, protocol.ToolWaitForMatch, protocol.WaitForMatchRequest{
		ClientID: clientID,
		Timeout:  protocol.Seconds(timeout),
	}, &res)
	return &res, err
}

func (c *Client) LeaveQueue(ctx context.Context, clientID string) error {
	return c.call(ctx, protocol.ToolLeaveQueue, protocol.LeaveQueueRequest{ClientID: clientID}, &protocol.Ack{})
}

func (c *Client) JoinRoom(ctx context.Context, roomID, displayName string) (*protocol.JoinResponse, error) {
	var res protocol.JoinResponse
	err := c.call(ctx, protocol.ToolJoinRoom, protocol.JoinRoomRequest{
		RoomID:      roomID,
		DisplayName: displayName,
	}, &res)
	return &res, err
}

func (c *Client) SendMessage(ctx context.Context, roomID, clientID, message string) (*protocol.SendResponse, error) {
	var res protocol.SendResponse
	err := c.call(ctx, protocol.ToolSendMessage, protocol.SendMessageRequest{
		RoomID:   roomID,
		ClientID: clientID,
		Message:  message,
	}, &res)
	return &res, err
}

func (c *Client) WaitForMessage(ctx context.Context, roomID, clientID string, timeout time.Duration) (*protocol.WaitResponse, error) {
	var res protocol.WaitResponse
	err := c.call(ctx, protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{
		RoomID:   roomID,
		ClientID: clientID,
		Timeout:  protocol.Seconds(timeout),
	}, &res)
	return &res, err
}

func (c *Client) LeaveChat(ctx context.Context, roomID, clientID string) error {
	return c.call(ctx, protocol.ToolLeaveChat, protocol.LeaveChatRequest{RoomID: roomID, ClientID: clientID}, &protocol.Ack{})
}

func (c *Client) Rooms(ctx context.Context) ([]protocol.Room, error) {
	var res protocol.RoomsResponse
	if err := c.get(ctx, "/rooms", &res); err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *Client) Stats(ctx context.Context) (*protocol.StatsResponse, error) {
	var res protocol.StatsResponse
	if err := c.get(ctx, "/stats", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Health(ctx context.Context) (*protocol.HealthResponse, error) {
	var res protocol.HealthResponse
	if err := c.get(ctx, "/health", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) call(ctx context.Context, tool string, args, out any) error {
	if c.ws != nil {
		return c.ws.call(ctx, tool, args, out)
	}

	body, err := c.codec.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s: %w", tool, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/"+tool, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", c.codec.ContentType())
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", c.codec.ContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Relay call",
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	codec := protocol.Negotiate(resp.Header.Get("Content-Type"))
	if resp.StatusCode != http.StatusOK {
		var e protocol.ErrorResponse
		if err := codec.Unmarshal(data, &e); err != nil || e.Error.Kind == "" {
			return &APIError{Status: resp.StatusCode, Kind: string(chat.KindInternal), Message: resp.Status}
		}
		return &APIError{Status: resp.StatusCode, Kind: e.Error.Kind, Message: e.Error.Message}
	}
	if err := codec.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
