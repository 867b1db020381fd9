package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("connection to relay closed")

// wsTransport multiplexes tool calls over one websocket. Replies are
// matched to calls by id.
type wsTransport struct {
	conn        *websocket.Conn
	codec       protocol.Codec
	messageType int
	logger      *slog.Logger

	outgoing chan []byte
	done     chan struct{}
	closed   chan struct{}
	once     sync.Once

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[string]chan *protocol.Reply
}

func dialWs(ctx context.Context, baseURL string, codec protocol.Codec, logger *slog.Logger) (*wsTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws"

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dialContext(&net.Dialer{Timeout: 10 * time.Second})

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	t := &wsTransport{
		conn:        conn,
		codec:       codec,
		messageType: websocket.TextMessage,
		logger:      logger,
		outgoing:    make(chan []byte),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
		pending:     make(map[string]chan *protocol.Reply),
	}
	if codec == protocol.Msgpack {
		t.messageType = websocket.BinaryMessage
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readPump()
	go t.writePump()
	return t, nil
}

// call sends one tool call and waits for its reply. Cancelling ctx
// abandons the reply; the relay still finishes the call.
func (t *wsTransport) call(ctx context.Context, tool string, args, out any) error {
	id := strconv.FormatUint(t.nextID.Inc(), 10)
	data, err := t.codec.Marshal(protocol.CallFrame{ID: id, Tool: tool, Args: args})
	if err != nil {
		return fmt.Errorf("encode %s: %w", tool, err)
	}

	replies := make(chan *protocol.Reply, 1)
	t.mu.Lock()
	t.pending[id] = replies
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	select {
	case t.outgoing <- data:
	case <-t.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case reply := <-replies:
		if reply.Error != nil {
			return &APIError{Kind: reply.Error.Kind, Message: reply.Error.Message}
		}
		if err := t.codec.Unmarshal(reply.Result, out); err != nil {
			return fmt.Errorf("decode %s reply: %w", tool, err)
		}
		return nil
	case <-t.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *wsTransport) readPump() {
	defer func() {
		t.conn.Close()
		close(t.closed)
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("Relay connection lost", slog.String("err", err.Error()))
			}
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(pongWait))

		reply, err := t.codec.DecodeReply(data)
		if err != nil {
			t.logger.Warn("Malformed reply from relay", slog.String("err", err.Error()))
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[reply.ID]
		t.mu.Unlock()
		if ok {
			ch <- reply
		}
	}
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case data := <-t.outgoing:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(t.messageType, data); err != nil {
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-t.closed:
			return
		}
	}
}

// Close ends the connection and waits for the read side to finish.
func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	select {
	case <-t.closed:
	case <-time.After(writeWait):
		t.conn.Close()
		<-t.closed
	}
	return nil
}
