package chat

import (
	"sync"
	"time"
)

// QueueEntry is a client waiting to be paired.
type QueueEntry struct {
	Client     *Client
	EnqueuedAt time.Time

	// matched is closed once room is set.
	matched chan struct{}
	room    *Room
}

func (e *QueueEntry) resolve(room *Room) {
	e.room = room
	close(e.matched)
}

// WaitQueue is a FIFO of clients awaiting random pairing.
type WaitQueue struct {
	mu      sync.Mutex
	entries []*QueueEntry
	index   map[string]*QueueEntry
	now     func() time.Time
}

func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		index: make(map[string]*QueueEntry),
		now:   time.Now,
	}
}

// Enqueue appends c to the tail of the queue.
func (q *WaitQueue) Enqueue(c *Client) (*QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[c.ID]; ok {
		return nil, newError("enter queue", ErrAlreadyQueued)
	}

	e := &QueueEntry{
		Client:     c,
		EnqueuedAt: q.now(),
		matched:    make(chan struct{}),
	}
	q.entries = append(q.entries, e)
	q.index[c.ID] = e
	return e, nil
}

// PopPair removes and returns the two oldest entries. ok is false, and the
// queue untouched, when fewer than two clients are waiting.
func (q *WaitQueue) PopPair() (a, b *QueueEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < 2 {
		return nil, nil, false
	}
	a, b = q.entries[0], q.entries[1]
	q.entries[0], q.entries[1] = nil, nil
	q.entries = q.entries[2:]
	delete(q.index, a.Client.ID)
	delete(q.index, b.Client.ID)
	return a, b, true
}

// Entry returns the queued entry for clientID.
func (q *WaitQueue) Entry(clientID string) (*QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[clientID]
	return e, ok
}

// Position returns the 1-based position of clientID.
func (q *WaitQueue) Position(clientID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[clientID]; !ok {
		return 0, false
	}
	for i, e := range q.entries {
		if e.Client.ID == clientID {
			return i + 1, true
		}
	}
	return 0, false
}

// Dequeue removes clientID if present and reports whether it was queued.
func (q *WaitQueue) Dequeue(clientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[clientID]; !ok {
		return false
	}
	delete(q.index, clientID)
	for i, e := range q.entries {
		if e.Client.ID == clientID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
