package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:           "127.0.0.1:0",
		DefaultTimeout: time.Second,
		MaxTimeout:     5 * time.Second,
		MaxMessage:     64,
		ClientIdle:     time.Minute,
		RoomTTL:        time.Minute,
		SweepInterval:  time.Minute,
		ServerURL:      config.DefaultServerURL,
		Codec:          config.CodecJSON,
		Transport:      config.TransportHTTP,
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := testConfig()
	hub := chat.NewHub(chat.Options{
		DefaultTimeout:   cfg.DefaultTimeout,
		MaxTimeout:       cfg.MaxTimeout,
		MaxMessageLength: cfg.MaxMessage,
	})
	s := New(hub, cfg, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// post calls tool with codec and decodes the reply into out, or into an
// ErrorResponse when the call fails. It returns the status and error body.
func post(t *testing.T, ts *httptest.Server, codec protocol.Codec, tool string, in, out any) (int, protocol.ErrorBody) {
	t.Helper()

	body, err := codec.Marshal(in)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/tools/"+tool, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", codec.ContentType())
	req.Header.Set("Accept", codec.ContentType())

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, codec.ContentType(), resp.Header.Get("Content-Type"))

	if resp.StatusCode != http.StatusOK {
		var e protocol.ErrorResponse
		require.NoError(t, codec.Unmarshal(data, &e))
		return resp.StatusCode, e.Error
	}
	if out != nil {
		require.NoError(t, codec.Unmarshal(data, out))
	}
	return resp.StatusCode, protocol.ErrorBody{}
}

func get(t *testing.T, ts *httptest.Server, path string, out any) {
	t.Helper()

	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, protocol.JSON.Unmarshal(data, out))
}

func join(t *testing.T, ts *httptest.Server, codec protocol.Codec, room, name string) *protocol.JoinResponse {
	t.Helper()
	var res protocol.JoinResponse
	status, e := post(t, ts, codec, protocol.ToolJoinRoom, protocol.JoinRoomRequest{RoomID: room, DisplayName: name}, &res)
	require.Equal(t, http.StatusOK, status, e.Message)
	return &res
}

func TestConversationOverHTTP(t *testing.T) {
	t.Parallel()

	for _, codec := range []protocol.Codec{protocol.JSON, protocol.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			t.Parallel()
			s, ts := newTestServer(t)

			alice := join(t, ts, codec, "r1", "Alice")
			assert.Equal(t, protocol.StatusRoomCreated, alice.Status)
			bob := join(t, ts, codec, "r1", "Bob")
			assert.Equal(t, protocol.StatusJoined, bob.Status)
			require.NotNil(t, bob.Partner)
			assert.Equal(t, "Alice", bob.Partner.DisplayName)

			var sent protocol.SendResponse
			post(t, ts, codec, protocol.ToolSendMessage, protocol.SendMessageRequest{RoomID: "r1", ClientID: alice.ClientID, Message: "hi"}, &sent)
			assert.Equal(t, protocol.StatusSent, sent.Status)
			assert.False(t, sent.Delivered)
			assert.NotEmpty(t, sent.MessageID)

			var timedOut protocol.WaitResponse
			post(t, ts, codec, protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "r1", ClientID: bob.ClientID, Timeout: 0.02}, &timedOut)
			assert.True(t, timedOut.TimedOut())

			waited := make(chan protocol.WaitResponse, 1)
			go func() {
				var res protocol.WaitResponse
				post(t, ts, codec, protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "r1", ClientID: alice.ClientID, Timeout: 5}, &res)
				waited <- res
			}()
			require.Eventually(t, func() bool { return s.hub.Stats().Waiters == 1 }, 2*time.Second, time.Millisecond)

			post(t, ts, codec, protocol.ToolSendMessage, protocol.SendMessageRequest{RoomID: "r1", ClientID: bob.ClientID, Message: "yo"}, &sent)
			assert.True(t, sent.Delivered)

			res := <-waited
			assert.Equal(t, protocol.StatusMessage, res.Status)
			assert.Equal(t, "yo", res.Message)
			assert.Equal(t, "Bob", res.Sender)
			assert.Equal(t, bob.ClientID, res.SenderID)
			assert.Equal(t, sent.MessageID, res.MessageID)
			require.NotNil(t, res.Timestamp)

			var ack protocol.Ack
			post(t, ts, codec, protocol.ToolLeaveChat, protocol.LeaveChatRequest{RoomID: "r1", ClientID: bob.ClientID}, &ack)
			assert.True(t, ack.Success)

			post(t, ts, codec, protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "r1", ClientID: alice.ClientID}, &res)
			assert.True(t, res.PartnerLeft())
		})
	}
}

func TestQueueOverHTTP(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)
	codec := protocol.Msgpack

	var first protocol.QueueResponse
	post(t, ts, codec, protocol.ToolEnterQueue, protocol.EnterQueueRequest{DisplayName: "Alice", Timeout: 0.01}, &first)
	assert.Equal(t, protocol.StatusWaiting, first.Status)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 1, first.QueueLength)

	var second protocol.QueueResponse
	post(t, ts, codec, protocol.ToolEnterQueue, protocol.EnterQueueRequest{DisplayName: "Bob", Timeout: 1}, &second)
	require.True(t, second.Matched())
	assert.Equal(t, first.ClientID, second.Partner.ClientID)

	var resumed protocol.QueueResponse
	post(t, ts, codec, protocol.ToolWaitForMatch, protocol.WaitForMatchRequest{ClientID: first.ClientID, Timeout: 1}, &resumed)
	require.True(t, resumed.Matched())
	assert.Equal(t, second.RoomID, resumed.RoomID)
	assert.Equal(t, "Bob", resumed.Partner.DisplayName)

	var waiting protocol.QueueResponse
	post(t, ts, codec, protocol.ToolEnterQueue, protocol.EnterQueueRequest{Timeout: 0.01}, &waiting)
	assert.Equal(t, protocol.StatusWaiting, waiting.Status)

	var ack protocol.Ack
	status, _ := post(t, ts, codec, protocol.ToolLeaveQueue, protocol.LeaveQueueRequest{ClientID: waiting.ClientID}, &ack)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, ack.Success)
}

func TestToolErrors(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)
	codec := protocol.JSON

	alice := join(t, ts, codec, "full", "Alice")
	join(t, ts, codec, "full", "Bob")

	tests := []struct {
		name   string
		tool   string
		req    any
		status int
		kind   string
	}{
		{"unknown tool", "shout", struct{}{}, http.StatusNotFound, "unknown_tool"},
		{"room full", protocol.ToolJoinRoom, protocol.JoinRoomRequest{RoomID: "full", DisplayName: "Eve"}, http.StatusConflict, "room_full"},
		{"empty room id", protocol.ToolJoinRoom, protocol.JoinRoomRequest{}, http.StatusNotFound, "room_not_found"},
		{"unknown client", protocol.ToolSendMessage, protocol.SendMessageRequest{RoomID: "full", ClientID: "nobody", Message: "hi"}, http.StatusNotFound, "client_not_found"},
		{"empty message", protocol.ToolSendMessage, protocol.SendMessageRequest{RoomID: "full", ClientID: alice.ClientID}, http.StatusBadRequest, "invalid_message"},
		{"long message", protocol.ToolSendMessage, protocol.SendMessageRequest{RoomID: "full", ClientID: alice.ClientID, Message: strings.Repeat("x", 65)}, http.StatusBadRequest, "invalid_message"},
		{"wrong room", protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "other", ClientID: alice.ClientID, Timeout: 0.01}, http.StatusNotFound, "room_not_found"},
		{"not queued", protocol.ToolWaitForMatch, protocol.WaitForMatchRequest{ClientID: alice.ClientID, Timeout: 0.01}, http.StatusNotFound, "not_queued"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, e := post(t, ts, codec, tc.tool, tc.req, nil)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, e.Kind)
			assert.NotEmpty(t, e.Message)
		})
	}

	t.Run("leave twice", func(t *testing.T) {
		req := protocol.LeaveChatRequest{RoomID: "full", ClientID: alice.ClientID}
		status, _ := post(t, ts, codec, protocol.ToolLeaveChat, req, nil)
		assert.Equal(t, http.StatusOK, status)
		status, e := post(t, ts, codec, protocol.ToolLeaveChat, req, nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "not_in_room", e.Kind)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := ts.Client().Post(ts.URL+"/tools/join_room", protocol.MIMEJSON, strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var e protocol.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		require.NoError(t, protocol.JSON.Unmarshal(data, &e))
		assert.Equal(t, "bad_request", e.Error.Kind)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/tools/join_room")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestListings(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	join(t, ts, protocol.JSON, "lobby", "Alice")
	join(t, ts, protocol.JSON, "lobby", "Bob")
	join(t, ts, protocol.JSON, "solo", "Carol")

	var rooms protocol.RoomsResponse
	get(t, ts, "/rooms", &rooms)
	require.Len(t, rooms.Rooms, 2)
	assert.Equal(t, "lobby", rooms.Rooms[0].ID)
	assert.Equal(t, "active", rooms.Rooms[0].State)
	assert.Len(t, rooms.Rooms[0].Members, 2)
	assert.Equal(t, "open", rooms.Rooms[1].State)

	var stats protocol.StatsResponse
	get(t, ts, "/stats", &stats)
	assert.Equal(t, 3, stats.Clients)
	assert.Equal(t, 1, stats.Rooms["active"])
	assert.Equal(t, 1, stats.Rooms["open"])

	var health protocol.HealthResponse
	get(t, ts, "/health", &health)
	assert.Equal(t, "ok", health.Status)
}

func TestCancelledEnterQueueWithdraws(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		body, _ := protocol.JSON.Marshal(protocol.EnterQueueRequest{Timeout: 5})
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/tools/enter_queue", bytes.NewReader(body))
		resp, err := ts.Client().Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	require.Eventually(t, func() bool { return s.hub.Stats().Queued == 1 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Eventually(t, func() bool {
		st := s.hub.Stats()
		return st.Queued == 0 && st.Clients == 0
	}, 2*time.Second, time.Millisecond)
}

func TestJanitorSweep(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ClientIdle = time.Nanosecond
	hub := chat.NewHub(chat.Options{})
	_, err := hub.JoinRoom("r1", "Alice")
	require.NoError(t, err)

	j := NewJanitor(hub, cfg, slogDiscard())
	time.Sleep(time.Millisecond)
	reaped, _ := j.Sweep()
	assert.Equal(t, 1, reaped)
	assert.Zero(t, hub.Stats().Clients)
	assert.Empty(t, hub.Rooms())
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusGone, statusFor(chat.KindRoomClosed))
	assert.Equal(t, http.StatusConflict, statusFor(chat.KindAlreadyWaiting))
	assert.Equal(t, statusClientClosedRequest, statusFor(chat.KindCanceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(chat.KindInternal))
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
