package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// WaitStatus is the outcome of a Wait that did not fail.
type WaitStatus string

const (
	WaitMessage     WaitStatus = "message"
	WaitTimeout     WaitStatus = "timeout"
	WaitPartnerLeft WaitStatus = "partner_left"
)

// WaitResult is returned by Relay.Wait. Message is set only for WaitMessage.
type WaitResult struct {
	Status  WaitStatus
	Message *Message
}

func (w *WaitResult) TimedOut() bool {
	return w.Status == WaitTimeout
}

// SendResult is returned by Relay.Send.
type SendResult struct {
	Message *Message

	// Delivered is true when a live waiter received the message.
	Delivered bool
}

type slotKey struct {
	room   string
	client string
}

// waiterSlot is the single-value delivery cell of a blocked Wait. Once
// filled or closed it accepts nothing more, so ch never holds more than one
// message and never blocks a sender.
type waiterSlot struct {
	ch     chan *Message
	filled bool
	closed bool
}

// RelayStats are monotonically increasing counters.
type RelayStats struct {
	Sent      int64
	Delivered int64
	Dropped   int64
}

// Relay delivers messages to members blocked in Wait. Messages sent while
// the recipient is not waiting are dropped.
type Relay struct {
	rooms  *RoomRegistry
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	slots map[slotKey]*waiterSlot

	sent      atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewRelay(rooms *RoomRegistry, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		rooms:  rooms,
		logger: logger,
		now:    time.Now,
		slots:  make(map[slotKey]*waiterSlot),
	}
}

// Send hands content to the other member of roomID if it is currently
// waiting, and drops it otherwise.
func (r *Relay) Send(roomID string, sender *Client, content string) (*SendResult, error) {
	const op = "send message"

	room, err := r.rooms.Get(roomID)
	if err != nil {
		return nil, wrapError(op, err, roomID)
	}

	member, state, partner, _ := r.rooms.Membership(room, sender.ID)
	switch {
	case !member:
		return nil, wrapError(op, ErrNotInRoom, roomID)
	case state == RoomClosed:
		return nil, wrapError(op, ErrRoomClosed, roomID)
	}

	msg := newMessage(roomID, sender, content, r.now())
	r.sent.Inc()

	delivered := partner != nil && r.offer(slotKey{roomID, partner.ID}, msg)
	if delivered {
		r.delivered.Inc()
		r.logger.Debug("Delivered message",
			slog.String("room", roomID),
			slog.String("from", sender.Name()),
			slog.String("to", partner.Name()),
			slog.String("preview", preview(content)),
		)
	} else {
		r.dropped.Inc()
		r.logger.Debug("Dropped message, no waiter", slog.String("room", roomID), slog.String("from", sender.Name()))
	}

	return &SendResult{Message: msg, Delivered: delivered}, nil
}

// Notify offers a system notice to recipientID's live waiter in roomID.
func (r *Relay) Notify(roomID, recipientID, content string) bool {
	return r.offer(slotKey{roomID, recipientID}, newSystemMessage(roomID, content, r.now()))
}

func (r *Relay) offer(key slotKey, msg *Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[key]
	if !ok || slot.filled || slot.closed {
		return false
	}
	slot.filled = true
	slot.ch <- msg
	return true
}

// Wait blocks until a message for c arrives in roomID, timeout elapses, the
// room closes, or ctx is done. When ctx ends the call returns ctx.Err().
// The WaiterSlot is released on every return path.
func (r *Relay) Wait(ctx context.Context, roomID string, c *Client, timeout time.Duration) (res *WaitResult, err error) {
	const op = "wait for message"

	room, err := r.rooms.Get(roomID)
	if err != nil {
		return nil, wrapError(op, err, roomID)
	}

	member, state, _, _ := r.rooms.Membership(room, c.ID)
	if !member {
		return nil, wrapError(op, ErrNotInRoom, roomID)
	}
	if state == RoomClosed {
		return &WaitResult{Status: WaitPartnerLeft}, nil
	}

	key := slotKey{roomID, c.ID}
	slot, err := r.register(key)
	if err != nil {
		return nil, wrapError(op, err, roomID)
	}
	defer func() {
		late := r.release(key, slot)
		if late != nil && err == nil && res.Status != WaitMessage {
			res = &WaitResult{Status: WaitMessage, Message: late}
		}
		if late != nil && err != nil {
			r.logger.Debug("Discarded message for abandoned wait", slog.String("room", roomID), slog.String("client", c.ID))
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-slot.ch:
		return &WaitResult{Status: WaitMessage, Message: msg}, nil

	case <-timer.C:
		return &WaitResult{Status: WaitTimeout}, nil

	case <-room.Done():
		if _, _, _, leftBy := r.rooms.Membership(room, c.ID); leftBy == c.ID {
			return nil, wrapError(op, ErrNotInRoom, roomID)
		}
		return &WaitResult{Status: WaitPartnerLeft}, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Relay) register(key slotKey) (*waiterSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[key]; ok {
		return nil, ErrAlreadyWaiting
	}
	slot := &waiterSlot{ch: make(chan *Message, 1)}
	r.slots[key] = slot
	return slot, nil
}

// release closes and deregisters slot, returning a message that was handed
// to it but not yet read.
func (r *Relay) release(key slotKey, slot *waiterSlot) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot.closed = true
	if r.slots[key] == slot {
		delete(r.slots, key)
	}

	select {
	case msg := <-slot.ch:
		return msg
	default:
		return nil
	}
}

// Waiting reports whether clientID holds a live WaiterSlot in roomID.
func (r *Relay) Waiting(roomID, clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.slots[slotKey{roomID, clientID}]
	return ok
}

// Waiters returns the number of live WaiterSlots.
func (r *Relay) Waiters() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Sent:      r.sent.Load(),
		Delivered: r.delivered.Load(),
		Dropped:   r.dropped.Load(),
	}
}
