package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

func TestRoomsView(t *testing.T) {
	now := time.Now()

	assert.Contains(t, RoomsView(nil, now), "No rooms")

	out := RoomsView([]protocol.Room{
		{
			ID:        "brave-otter",
			State:     "active",
			Members:   []protocol.Member{{DisplayName: "Alice"}, {DisplayName: "Bob"}},
			CreatedAt: now.Add(-90 * time.Second),
		},
		{ID: "lonely", State: "closed", CreatedAt: now.Add(-2 * time.Hour)},
	}, now)

	for _, want := range []string{"Room", "State", "brave-otter", "active", "Alice, Bob", "1m", "lonely", "closed", "2h0m"} {
		assert.Contains(t, out, want)
	}
}

func TestStatsView(t *testing.T) {
	out := StatsView(&protocol.StatsResponse{
		Clients: 3,
		Queued:  1,
		Rooms:   map[string]int{"active": 1, "closed": 2},
		Matches: 4,
		Messages: protocol.MessageStats{
			Sent:      10,
			Delivered: 7,
			Dropped:   3,
		},
	})

	for _, want := range []string{"Clients", "Rooms active", "Rooms closed", "Messages dropped", "10"} {
		assert.Contains(t, out, want)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "42s", formatAge(42*time.Second))
	assert.Equal(t, "5m", formatAge(5*time.Minute+10*time.Second))
	assert.Equal(t, "1h30m", formatAge(90*time.Minute))
}

func TestRoomBanner(t *testing.T) {
	out := RoomBanner("brave-otter", "http://relay.example:8080")
	assert.Contains(t, out, "brave-otter")
	assert.Contains(t, out, "--server http://relay.example:8080")
}
