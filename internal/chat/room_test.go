package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(reg *ClientRegistry, name string) *Client {
	return reg.Register(name)
}

func TestRoomRegistryJoinCreatesThenJoins(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)
	alice := newTestClient(clients, "Alice")
	bob := newTestClient(clients, "Bob")

	res, err := rooms.Join("r1", alice)
	require.NoError(t, err)
	assert.Equal(t, JoinCreated, res.Status)
	assert.Nil(t, res.Partner)
	assert.Equal(t, RoomOpen, rooms.State(res.Room))

	res, err = rooms.Join("r1", bob)
	require.NoError(t, err)
	assert.Equal(t, JoinJoined, res.Status)
	require.NotNil(t, res.Partner)
	assert.Equal(t, alice.ID, res.Partner.ID)
	assert.Equal(t, RoomActive, rooms.State(res.Room))

	other, err := rooms.OtherMember("r1", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, other.ID)
}

func TestRoomRegistryRejectsThirdMember(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)

	for _, name := range []string{"a", "b"} {
		_, err := rooms.Join("r1", newTestClient(clients, name))
		require.NoError(t, err)
	}

	_, err := rooms.Join("r1", newTestClient(clients, "c"))
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, KindRoomFull, KindOf(err))

	room, err := rooms.Get("r1")
	require.NoError(t, err)
	assert.Len(t, rooms.Info(room).Members, 2)
}

func TestRoomRegistryRejectsRejoin(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)
	alice := newTestClient(clients, "Alice")

	_, err := rooms.Join("r1", alice)
	require.NoError(t, err)

	_, err = rooms.Join("r1", alice)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestRoomRegistryLeaveClosesRoom(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)
	alice := newTestClient(clients, "Alice")
	bob := newTestClient(clients, "Bob")

	_, err := rooms.Join("r1", alice)
	require.NoError(t, err)
	res, err := rooms.Join("r1", bob)
	require.NoError(t, err)

	_, err = rooms.Leave("r1", alice.ID)
	require.NoError(t, err)

	select {
	case <-res.Room.Done():
	default:
		t.Fatal("room not closed after a member left")
	}

	member, state, _, leftBy := rooms.Membership(res.Room, bob.ID)
	assert.True(t, member)
	assert.Equal(t, RoomClosed, state)
	assert.Equal(t, alice.ID, leftBy)

	_, err = rooms.Leave("r1", alice.ID)
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = rooms.Join("r1", newTestClient(clients, "Carol"))
	assert.ErrorIs(t, err, ErrRoomClosed)

	_, err = rooms.Leave("r1", bob.ID)
	require.NoError(t, err)

	_, err = rooms.Get("r1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRegistryCreateMatched(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)
	a := newTestClient(clients, "a")
	b := newTestClient(clients, "b")

	room, err := rooms.CreateMatched(a, b)
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, RoomActive, rooms.State(room))

	got, ok := rooms.RoomOf(b.ID)
	require.True(t, ok)
	assert.Same(t, room, got)

	_, err = rooms.CreateMatched(a, newTestClient(clients, "c"))
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestRoomRegistrySweep(t *testing.T) {
	t.Parallel()

	clients := NewClientRegistry()
	rooms := NewRoomRegistry(nil)
	now := time.Now()
	rooms.now = func() time.Time { return now }

	alice := newTestClient(clients, "Alice")
	bob := newTestClient(clients, "Bob")
	_, err := rooms.Join("r1", alice)
	require.NoError(t, err)
	_, err = rooms.Join("r1", bob)
	require.NoError(t, err)
	_, err = rooms.Join("r2", newTestClient(clients, "Carol"))
	require.NoError(t, err)

	_, err = rooms.Leave("r1", alice.ID)
	require.NoError(t, err)

	assert.Empty(t, rooms.Sweep(time.Minute))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, []string{"r1"}, rooms.Sweep(time.Minute))

	_, ok := rooms.RoomOf(bob.ID)
	assert.False(t, ok)
	_, err = rooms.Get("r2")
	assert.NoError(t, err)
}

func TestGenerateRoomIDAvoidsTaken(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := generateRoomID(func(id string) bool { return seen[id] })
		require.False(t, seen[id])
		seen[id] = true
	}
}
