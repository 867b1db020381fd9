package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is the identity handed out to a participant on enter_queue or
// join_room. It is passed explicitly on every later call.
type Client struct {
	// ID is a random 128-bit identifier.
	ID string

	// DisplayName is optional; see Name.
	DisplayName string

	CreatedAt time.Time
}

// Name returns the display name, or an anonymous name derived from the id.
func (c *Client) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	short := c.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Anonymous-" + short
}

// presence tracks liveness for the janitor. inFlight counts calls currently
// using the identity; lastSeen is updated when a call starts or ends.
type presence struct {
	client   *Client
	lastSeen time.Time
	inFlight int
}

// ClientRegistry assigns and tracks client identities.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*presence
	now     func() time.Time
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*presence),
		now:     time.Now,
	}
}

// Register creates a new identity. It always succeeds.
func (r *ClientRegistry) Register(displayName string) *Client {
	now := r.now()
	c := &Client{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   now,
	}

	r.mu.Lock()
	r.clients[c.ID] = &presence{client: c, lastSeen: now}
	r.mu.Unlock()

	return c
}

func (r *ClientRegistry) Lookup(id string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return p.client, nil
}

// Acquire marks the client as busy for the duration of a call. The returned
// release func must be called exactly once when the call ends.
func (r *ClientRegistry) Acquire(id string) (*Client, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.clients[id]
	if !ok {
		return nil, nil, ErrClientNotFound
	}
	p.inFlight++
	p.lastSeen = r.now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			p.inFlight--
			p.lastSeen = r.now()
		})
	}
	return p.client, release, nil
}

// Forget destroys the identity. Unknown ids are ignored.
func (r *ClientRegistry) Forget(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// Idle returns the ids of clients with no call in flight that have not been
// seen for at least d.
func (r *ClientRegistry) Idle(d time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-d)
	var ids []string
	for id, p := range r.clients {
		if p.inFlight == 0 && !p.lastSeen.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
