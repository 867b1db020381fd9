// Package chat implements the matchmaking, room and message-delivery core
// of the relay: client identities, the FIFO wait queue, two-party rooms and
// long-poll message delivery.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/atomic"
)

const (
	DefaultWaitTimeout      = 60 * time.Second
	MaxWaitTimeout          = 300 * time.Second
	DefaultMaxMessageLength = 4096
)

// Options configure a Hub.
type Options struct {
	// DefaultTimeout applies to blocking calls that pass a non-positive
	// timeout.
	DefaultTimeout time.Duration

	// MaxTimeout caps every blocking call.
	MaxTimeout time.Duration

	// MaxMessageLength is the largest message accepted, in bytes.
	MaxMessageLength int

	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		DefaultTimeout:   DefaultWaitTimeout,
		MaxTimeout:       MaxWaitTimeout,
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

// Hub is the central brain of the relay. It owns every registry and exposes
// the tool-call operations consumed by the transports.
type Hub struct {
	clients *ClientRegistry
	queue   *WaitQueue
	rooms   *RoomRegistry
	relay   *Relay
	matcher *Matcher

	opts    Options
	logger  *slog.Logger
	matches atomic.Int64
}

// NewHub creates a Hub. Zero option fields fall back to DefaultOptions.
func NewHub(opts Options) *Hub {
	def := DefaultOptions()
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = def.DefaultTimeout
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = def.MaxTimeout
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = def.MaxMessageLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rooms := NewRoomRegistry(opts.Logger)
	queue := NewWaitQueue()
	h := &Hub{
		clients: NewClientRegistry(),
		queue:   queue,
		rooms:   rooms,
		relay:   NewRelay(rooms, opts.Logger),
		matcher: NewMatcher(queue, rooms, opts.Logger),
		opts:    opts,
		logger:  opts.Logger,
	}
	h.matcher.OnMatch(func(*Room) { h.matches.Inc() })
	return h
}

// QueueStatus reports whether a matchmaking client has been paired.
type QueueStatus string

const (
	QueueWaiting QueueStatus = "waiting"
	QueueMatched QueueStatus = "matched"
)

// QueueResult is returned by EnterQueue and WaitForMatch.
type QueueResult struct {
	ClientID string
	Status   QueueStatus

	// Set when matched.
	RoomID  string
	Partner *Client

	// Set while waiting.
	Position    int
	QueueLength int
}

// JoinOutcome is returned by JoinRoom.
type JoinOutcome struct {
	ClientID string
	Status   JoinStatus
	RoomID   string
	Partner  *Client
}

// EnterQueue creates a new identity, queues it for random pairing and blocks
// until it is matched or timeout elapses. A client that times out stays
// queued and may resume with WaitForMatch. Cancelling ctx withdraws the
// client entirely.
func (h *Hub) EnterQueue(ctx context.Context, displayName string, timeout time.Duration) (*QueueResult, error) {
	c := h.clients.Register(displayName)
	_, release, err := h.clients.Acquire(c.ID)
	if err != nil {
		return nil, newError("enter queue", err)
	}
	defer release()

	if _, err := h.matcher.Enqueue(c); err != nil {
		h.clients.Forget(c.ID)
		return nil, err
	}
	h.logger.Info("Client entered queue", slog.String("client", c.ID), slog.String("name", c.Name()))

	return h.awaitMatch(ctx, c, timeout)
}

// WaitForMatch resumes a blocking matchmaking wait for a queued client.
func (h *Hub) WaitForMatch(ctx context.Context, clientID string, timeout time.Duration) (*QueueResult, error) {
	c, release, err := h.clients.Acquire(clientID)
	if err != nil {
		return nil, wrapError("wait for match", err, clientID)
	}
	defer release()

	return h.awaitMatch(ctx, c, timeout)
}

func (h *Hub) awaitMatch(ctx context.Context, c *Client, timeout time.Duration) (*QueueResult, error) {
	room, err := h.matcher.Await(ctx, c.ID, h.clampTimeout(timeout))
	if err != nil {
		if isCanceled(err) {
			h.logger.Info("Matchmaking abandoned", slog.String("client", c.ID))
			h.Disconnect(c.ID)
		}
		return nil, err
	}

	if room == nil {
		position, length, ok := h.matcher.Position(c.ID)
		if ok {
			return &QueueResult{
				ClientID:    c.ID,
				Status:      QueueWaiting,
				Position:    position,
				QueueLength: length,
			}, nil
		}
		// Paired between the timeout firing and the position lookup.
		if room, ok = h.rooms.RoomOf(c.ID); !ok {
			return nil, newError("wait for match", ErrNotQueued)
		}
	}

	partner, _ := h.rooms.OtherMember(room.ID, c.ID)
	return &QueueResult{
		ClientID: c.ID,
		Status:   QueueMatched,
		RoomID:   room.ID,
		Partner:  partner,
	}, nil
}

// LeaveQueue removes a client from matchmaking and forgets its identity.
// It is a no-op for a client that is not queued.
func (h *Hub) LeaveQueue(clientID string) error {
	if _, err := h.clients.Lookup(clientID); err != nil {
		return wrapError("leave queue", err, clientID)
	}

	room, queued := h.matcher.Withdraw(clientID)
	switch {
	case queued:
		h.logger.Info("Client left queue", slog.String("client", clientID))
		h.clients.Forget(clientID)
	case room == nil:
		h.clients.Forget(clientID)
	}
	return nil
}

// JoinRoom creates a new identity and adds it to the named room, creating
// the room when it does not exist.
func (h *Hub) JoinRoom(roomID, displayName string) (*JoinOutcome, error) {
	if roomID == "" {
		return nil, wrapError("join room", ErrRoomNotFound, "room id is empty")
	}

	c := h.clients.Register(displayName)
	res, err := h.rooms.Join(roomID, c)
	if err != nil {
		h.clients.Forget(c.ID)
		return nil, err
	}

	if res.Partner != nil {
		h.relay.Notify(roomID, res.Partner.ID, fmt.Sprintf("%s has joined the chat.", c.Name()))
	}

	return &JoinOutcome{
		ClientID: c.ID,
		Status:   res.Status,
		RoomID:   roomID,
		Partner:  res.Partner,
	}, nil
}

// SendMessage relays content to the other member of roomID if it is waiting.
func (h *Hub) SendMessage(roomID, clientID, content string) (*SendResult, error) {
	const op = "send message"

	c, release, err := h.clients.Acquire(clientID)
	if err != nil {
		return nil, wrapError(op, err, clientID)
	}
	defer release()

	switch {
	case content == "":
		return nil, wrapError(op, ErrInvalidMessage, "message is empty")
	case len(content) > h.opts.MaxMessageLength:
		return nil, wrapError(op, ErrInvalidMessage, fmt.Sprintf("message exceeds %d bytes", h.opts.MaxMessageLength))
	case !utf8.ValidString(content):
		return nil, wrapError(op, ErrInvalidMessage, "message is not valid UTF-8")
	}

	return h.relay.Send(roomID, c, content)
}

// WaitForMessage blocks until a message for clientID arrives in roomID.
func (h *Hub) WaitForMessage(ctx context.Context, roomID, clientID string, timeout time.Duration) (*WaitResult, error) {
	c, release, err := h.clients.Acquire(clientID)
	if err != nil {
		return nil, wrapError("wait for message", err, clientID)
	}
	defer release()

	timeout = h.clampTimeout(timeout)
	h.logger.Debug("Client waiting for messages",
		slog.String("room", roomID),
		slog.String("client", c.Name()),
		slog.Duration("timeout", timeout),
	)

	res, err := h.relay.Wait(ctx, roomID, c, timeout)
	if err != nil {
		if isCanceled(err) {
			h.logger.Info("Wait cancelled", slog.String("room", roomID), slog.String("client", c.Name()))
		}
		return nil, err
	}
	return res, nil
}

// LeaveChat removes clientID from roomID, closes the room, and forgets the
// identity. A second call for the same client fails with ErrNotInRoom.
func (h *Hub) LeaveChat(roomID, clientID string) error {
	const op = "leave chat"

	c, err := h.clients.Lookup(clientID)
	if err != nil {
		return wrapError(op, ErrNotInRoom, roomID)
	}

	if _, err := h.rooms.Leave(roomID, clientID); err != nil {
		return err
	}
	h.clients.Forget(clientID)
	h.logger.Info("Client left room", slog.String("room", roomID), slog.String("name", c.Name()))
	return nil
}

// Disconnect handles a client that went away without leaving: it is
// withdrawn from the queue, its room is closed, and its identity forgotten.
func (h *Hub) Disconnect(clientID string) {
	room, _ := h.matcher.Withdraw(clientID)
	if room != nil {
		if _, err := h.rooms.Leave(room.ID, clientID); err != nil {
			h.logger.Debug("Disconnect leave", slog.String("room", room.ID), slog.String("err", err.Error()))
		}
	}
	h.clients.Forget(clientID)
	h.logger.Info("Client disconnected", slog.String("client", clientID))
}

// ReapIdle disconnects clients with no call in flight that have been idle
// for at least d. It returns the number of clients disconnected.
func (h *Hub) ReapIdle(d time.Duration) int {
	ids := h.clients.Idle(d)
	for _, id := range ids {
		h.Disconnect(id)
	}
	return len(ids)
}

// SweepRooms drops rooms that have been closed for at least ttl.
func (h *Hub) SweepRooms(ttl time.Duration) int {
	dropped := h.rooms.Sweep(ttl)
	for _, id := range dropped {
		h.logger.Debug("Swept closed room", slog.String("room", id))
	}
	return len(dropped)
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients  int
	Queued   int
	Waiters  int
	Rooms    map[string]int
	Matches  int64
	Messages RelayStats
}

func (h *Hub) Stats() Stats {
	rooms := make(map[string]int)
	for state, n := range h.rooms.Counts() {
		rooms[state.String()] = n
	}
	return Stats{
		Clients:  h.clients.Len(),
		Queued:   h.queue.Len(),
		Waiters:  h.relay.Waiters(),
		Rooms:    rooms,
		Matches:  h.matches.Load(),
		Messages: h.relay.Stats(),
	}
}

// Rooms lists every room, oldest first.
func (h *Hub) Rooms() []RoomInfo {
	rooms := h.rooms.List()
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (h *Hub) clampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return h.opts.DefaultTimeout
	case d > h.opts.MaxTimeout:
		return h.opts.MaxTimeout
	default:
		return d
	}
}
