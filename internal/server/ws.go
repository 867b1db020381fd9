package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest call frame or HTTP body accepted.
	maxFrameSize = 64 * 1024
)

type outFrame struct {
	messageType int
	data        []byte
}

// wsConn serves tool calls over one websocket connection. Each call runs
// in its own goroutine so a blocking wait does not hold up the others;
// replies carry the call id and may arrive out of order.
type wsConn struct {
	server  *Server
	conn    *websocket.Conn
	session *session
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	send       chan outFrame
	writerDone chan struct{}
	calls      sync.WaitGroup
}

func (s *Server) serveWs(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", slog.String("err", err.Error()))
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	ws := &wsConn{
		server:     s,
		conn:       conn,
		session:    newSession(),
		logger:     s.logger.With(slog.String("remote", conn.RemoteAddr().String())),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan outFrame, 16),
		writerDone: make(chan struct{}),
	}
	ws.logger.Debug("Websocket connected")

	go ws.writePump()
	ws.readPump()
	return nil
}

// readPump reads call frames until the connection fails. On exit it
// cancels calls still in flight and disconnects every client the
// connection issued.
func (c *wsConn) readPump() {
	defer func() {
		c.cancel()
		c.calls.Wait()
		for _, id := range c.session.drain() {
			c.server.hub.Disconnect(id)
		}
		close(c.send)
		c.conn.Close()
		c.logger.Debug("Websocket closed")
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := withSession(c.ctx, c.session)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Websocket read failed", slog.String("err", err.Error()))
			}
			return
		}

		codec := protocol.JSON
		if messageType == websocket.BinaryMessage {
			codec = protocol.Msgpack
		}

		call, err := codec.DecodeCall(data)
		if err != nil {
			c.reply(messageType, codec, protocol.ReplyFrame{}, badRequest(err))
			continue
		}

		c.calls.Add(1)
		go func() {
			defer c.calls.Done()
			result, err := c.server.dispatch(ctx, call.Tool, func(v any) error {
				return codec.Unmarshal(call.Args, v)
			})
			c.reply(messageType, codec, protocol.ReplyFrame{ID: call.ID, Result: result}, err)
		}()
	}
}

func (c *wsConn) reply(messageType int, codec protocol.Codec, frame protocol.ReplyFrame, err error) {
	if err != nil {
		_, body := errorBody(err)
		frame.Result = nil
		frame.Error = &body
	}

	data, err := codec.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to encode reply", slog.String("id", frame.ID), slog.String("err", err.Error()))
		return
	}

	select {
	case c.send <- outFrame{messageType: messageType, data: data}:
	case <-c.writerDone:
	}
}

// writePump is the only writer on the connection. It also keeps the
// connection alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frame.messageType, frame.data); err != nil {
				c.logger.Debug("Websocket write failed", slog.String("err", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
