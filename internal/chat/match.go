package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Matcher pairs queued clients into rooms. Its lock makes the
// membership check, the enqueue, and every pop-two-and-create-room step
// indivisible with respect to each other.
type Matcher struct {
	mu      sync.Mutex
	queue   *WaitQueue
	rooms   *RoomRegistry
	logger  *slog.Logger
	onMatch func(*Room)
}

func NewMatcher(queue *WaitQueue, rooms *RoomRegistry, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		queue:  queue,
		rooms:  rooms,
		logger: logger,
	}
}

// OnMatch registers fn to be called, under the matcher lock, for every room
// created by a successful match.
func (m *Matcher) OnMatch(fn func(*Room)) {
	m.mu.Lock()
	m.onMatch = fn
	m.mu.Unlock()
}

// Enqueue adds c to the queue and pairs the two oldest entries for as long
// as at least two clients are waiting.
func (m *Matcher) Enqueue(c *Client) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms.RoomOf(c.ID); ok {
		return nil, wrapError("enter queue", ErrAlreadyInRoom, room.ID)
	}

	e, err := m.queue.Enqueue(c)
	if err != nil {
		return nil, err
	}
	m.matchLocked()
	return e, nil
}

func (m *Matcher) matchLocked() {
	for {
		a, b, ok := m.queue.PopPair()
		if !ok {
			return
		}

		room, err := m.rooms.CreateMatched(a.Client, b.Client)
		if err != nil {
			// Enqueue refuses clients that are in a room and the hub never
			// lets a queued client join one.
			panic(fmt.Sprintf("chat: matched clients %s and %s: %v", a.Client.ID, b.Client.ID, err))
		}

		m.logger.Info("Matched clients",
			slog.String("room", room.ID),
			slog.String("first", a.Client.Name()),
			slog.String("second", b.Client.Name()),
		)

		a.resolve(room)
		b.resolve(room)
		if m.onMatch != nil {
			m.onMatch(room)
		}
	}
}

// Await blocks until clientID is matched, timeout elapses, or ctx is done.
// A nil room with a nil error means the client is still queued.
func (m *Matcher) Await(ctx context.Context, clientID string, timeout time.Duration) (*Room, error) {
	m.mu.Lock()
	if room, ok := m.rooms.RoomOf(clientID); ok {
		m.mu.Unlock()
		return room, nil
	}
	e, ok := m.queue.Entry(clientID)
	m.mu.Unlock()

	if !ok {
		return nil, newError("wait for match", ErrNotQueued)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.matched:
		return e.room, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Withdraw takes clientID out of matchmaking. If the client was still queued
// it is dequeued and queued is true; if it had already been matched the
// room is returned instead.
func (m *Matcher) Withdraw(clientID string) (room *Room, queued bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Dequeue(clientID) {
		return nil, true
	}
	room, _ = m.rooms.RoomOf(clientID)
	return room, false
}

// Position returns the 1-based queue position of clientID and the queue
// length.
func (m *Matcher) Position(clientID string) (position, length int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, ok = m.queue.Position(clientID)
	return position, m.queue.Len(), ok
}
