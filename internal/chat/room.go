package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RoomState is the lifecycle state of a Room.
type RoomState int

const (
	// RoomOpen holds zero or one member.
	RoomOpen RoomState = iota
	// RoomActive holds exactly two members.
	RoomActive
	// RoomClosed accepts no further sends or waits.
	RoomClosed
)

func (s RoomState) String() string {
	switch s {
	case RoomOpen:
		return "open"
	case RoomActive:
		return "active"
	case RoomClosed:
		return "closed"
	default:
		return fmt.Sprintf("RoomState(%d)", int(s))
	}
}

const maxMembers = 2

// Room is a two-party conversation. All mutable fields are guarded by the
// owning RoomRegistry's lock; done is closed exactly once when the room
// transitions to RoomClosed.
type Room struct {
	ID        string
	CreatedAt time.Time

	members  []*Client
	state    RoomState
	closedAt time.Time
	leftBy   string
	done     chan struct{}
}

func newRoom(id string, createdAt time.Time, members ...*Client) *Room {
	if len(members) > maxMembers {
		panic(fmt.Sprintf("chat: room %s created with %d members", id, len(members)))
	}
	r := &Room{
		ID:        id,
		CreatedAt: createdAt,
		members:   members,
		done:      make(chan struct{}),
	}
	if len(members) == maxMembers {
		r.state = RoomActive
	}
	return r
}

// Done is closed when the room transitions to RoomClosed.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) has(clientID string) bool {
	for _, m := range r.members {
		if m.ID == clientID {
			return true
		}
	}
	return false
}

func (r *Room) other(clientID string) *Client {
	for _, m := range r.members {
		if m.ID != clientID {
			return m
		}
	}
	return nil
}

func (r *Room) add(c *Client) {
	if len(r.members) >= maxMembers {
		panic(fmt.Sprintf("chat: room %s would exceed %d members", r.ID, maxMembers))
	}
	r.members = append(r.members, c)
	if len(r.members) == maxMembers {
		r.state = RoomActive
	}
}

func (r *Room) remove(clientID string) {
	for i, m := range r.members {
		if m.ID == clientID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

func (r *Room) close(by string, at time.Time) {
	if r.state == RoomClosed {
		return
	}
	r.state = RoomClosed
	r.leftBy = by
	r.closedAt = at
	close(r.done)
}

// MemberInfo is a point-in-time view of a room member.
type MemberInfo struct {
	ClientID    string
	DisplayName string
}

// RoomInfo is a point-in-time view of a Room.
type RoomInfo struct {
	ID        string
	State     string
	Members   []MemberInfo
	CreatedAt time.Time
}

// JoinStatus tells a joiner whether it created the room.
type JoinStatus string

const (
	JoinCreated JoinStatus = "room_created"
	JoinJoined  JoinStatus = "joined"
)

// JoinResult is returned by RoomRegistry.Join.
type JoinResult struct {
	Status  JoinStatus
	Room    *Room
	Partner *Client
}

// RoomRegistry creates and looks up rooms and tracks their membership.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	memberOf map[string]*Room
	logger   *slog.Logger
	now      func() time.Time
}

func NewRoomRegistry(logger *slog.Logger) *RoomRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomRegistry{
		rooms:    make(map[string]*Room),
		memberOf: make(map[string]*Room),
		logger:   logger,
		now:      time.Now,
	}
}

// Join adds c to the room named roomID, creating it if it does not exist.
func (g *RoomRegistry) Join(roomID string, c *Client) (*JoinResult, error) {
	const op = "join room"

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.memberOf[c.ID]; ok {
		return nil, wrapError(op, ErrAlreadyInRoom, existing.ID)
	}

	room, ok := g.rooms[roomID]
	if !ok {
		room = newRoom(roomID, g.now(), c)
		g.rooms[roomID] = room
		g.memberOf[c.ID] = room
		g.logger.Info("Room created", slog.String("room", roomID), slog.String("client", c.ID))
		return &JoinResult{Status: JoinCreated, Room: room}, nil
	}

	switch {
	case room.state == RoomClosed:
		return nil, wrapError(op, ErrRoomClosed, roomID)
	case len(room.members) >= maxMembers:
		return nil, wrapError(op, ErrRoomFull, roomID)
	}

	partner := room.other(c.ID)
	room.add(c)
	g.memberOf[c.ID] = room
	g.logger.Info("Client joined room", slog.String("room", roomID), slog.String("client", c.ID))

	return &JoinResult{Status: JoinJoined, Room: room, Partner: partner}, nil
}

// CreateMatched creates an Active room for a matched pair under a freshly
// generated id.
func (g *RoomRegistry) CreateMatched(a, b *Client) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range []*Client{a, b} {
		if existing, ok := g.memberOf[c.ID]; ok {
			return nil, wrapError("create room", ErrAlreadyInRoom, existing.ID)
		}
	}

	id := generateRoomID(func(id string) bool {
		_, taken := g.rooms[id]
		return taken
	})
	room := newRoom(id, g.now(), a, b)
	g.rooms[id] = room
	g.memberOf[a.ID] = room
	g.memberOf[b.ID] = room
	return room, nil
}

// Leave removes clientID from the room and closes it. The room is dropped
// from the registry once its last member has left.
func (g *RoomRegistry) Leave(roomID, clientID string) (*Room, error) {
	const op = "leave chat"

	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[roomID]
	if !ok || !room.has(clientID) {
		return nil, wrapError(op, ErrNotInRoom, roomID)
	}

	room.remove(clientID)
	delete(g.memberOf, clientID)
	room.close(clientID, g.now())

	if len(room.members) == 0 {
		delete(g.rooms, roomID)
		g.logger.Info("Room deleted", slog.String("room", roomID))
	} else {
		g.logger.Info("Peer left room", slog.String("room", roomID), slog.String("client", clientID))
	}
	return room, nil
}

func (g *RoomRegistry) Get(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RoomOf returns the room clientID currently belongs to.
func (g *RoomRegistry) RoomOf(clientID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.memberOf[clientID]
	return room, ok
}

// OtherMember returns the member of roomID that is not clientID, or nil if
// clientID is alone.
func (g *RoomRegistry) OtherMember(roomID, clientID string) (*Client, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !room.has(clientID) {
		return nil, ErrNotInRoom
	}
	return room.other(clientID), nil
}

// Membership reports whether clientID belongs to room, the room's state, the
// other member if any, and who caused the room to close.
func (g *RoomRegistry) Membership(room *Room, clientID string) (member bool, state RoomState, other *Client, leftBy string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return room.has(clientID), room.state, room.other(clientID), room.leftBy
}

func (g *RoomRegistry) State(room *Room) RoomState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return room.state
}

func (g *RoomRegistry) Info(room *Room) RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return room.info()
}

func (r *Room) info() RoomInfo {
	members := make([]MemberInfo, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, MemberInfo{ClientID: m.ID, DisplayName: m.Name()})
	}
	return RoomInfo{
		ID:        r.ID,
		State:     r.state.String(),
		Members:   members,
		CreatedAt: r.CreatedAt,
	}
}

// List returns a snapshot of every room in the registry.
func (g *RoomRegistry) List() []RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]RoomInfo, 0, len(g.rooms))
	for _, room := range g.rooms {
		result = append(result, room.info())
	}
	return result
}

// Counts returns the number of rooms in each state.
func (g *RoomRegistry) Counts() map[RoomState]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := map[RoomState]int{RoomOpen: 0, RoomActive: 0, RoomClosed: 0}
	for _, room := range g.rooms {
		counts[room.state]++
	}
	return counts
}

// Sweep drops closed rooms that have been closed for at least ttl, releasing
// any members still attached to them. It returns the ids of dropped rooms.
func (g *RoomRegistry) Sweep(ttl time.Duration) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-ttl)
	var dropped []string
	for id, room := range g.rooms {
		if room.state != RoomClosed || room.closedAt.After(cutoff) {
			continue
		}
		for _, m := range room.members {
			delete(g.memberOf, m.ID)
		}
		delete(g.rooms, id)
		dropped = append(dropped, id)
	}
	return dropped
}
