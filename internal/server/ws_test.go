package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

func dialWs(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func wsCall(t *testing.T, conn *websocket.Conn, codec protocol.Codec, id, tool string, args any) {
	t.Helper()

	data, err := codec.Marshal(protocol.CallFrame{ID: id, Tool: tool, Args: args})
	require.NoError(t, err)

	messageType := websocket.TextMessage
	if codec == protocol.Msgpack {
		messageType = websocket.BinaryMessage
	}
	require.NoError(t, conn.WriteMessage(messageType, data))
}

func wsReply(t *testing.T, conn *websocket.Conn, codec protocol.Codec) *protocol.Reply {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	reply, err := codec.DecodeReply(data)
	require.NoError(t, err)
	return reply
}

func TestWebsocketToolCalls(t *testing.T) {
	t.Parallel()

	for _, codec := range []protocol.Codec{protocol.JSON, protocol.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			t.Parallel()
			s, ts := newTestServer(t)
			conn := dialWs(t, ts.URL)

			wsCall(t, conn, codec, "1", protocol.ToolJoinRoom, protocol.JoinRoomRequest{RoomID: "r1", DisplayName: "Alice"})
			reply := wsReply(t, conn, codec)
			assert.Equal(t, "1", reply.ID)
			require.Nil(t, reply.Error)

			var alice protocol.JoinResponse
			require.NoError(t, codec.Unmarshal(reply.Result, &alice))
			assert.Equal(t, protocol.StatusRoomCreated, alice.Status)

			// A blocking wait does not hold up later calls on the same
			// connection.
			wsCall(t, conn, codec, "2", protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "r1", ClientID: alice.ClientID, Timeout: 5})
			require.Eventually(t, func() bool { return s.hub.Stats().Waiters == 1 }, 2*time.Second, time.Millisecond)
			wsCall(t, conn, codec, "3", protocol.ToolJoinRoom, protocol.JoinRoomRequest{RoomID: "r1", DisplayName: "Bob"})

			replies := map[string]*protocol.Reply{}
			for len(replies) < 2 {
				r := wsReply(t, conn, codec)
				replies[r.ID] = r
			}

			require.Nil(t, replies["3"].Error)
			var wait protocol.WaitResponse
			require.NoError(t, codec.Unmarshal(replies["2"].Result, &wait))
			assert.Equal(t, protocol.StatusMessage, wait.Status)
			assert.True(t, wait.System)
			assert.Equal(t, "Bob has joined the chat.", wait.Message)

			wsCall(t, conn, codec, "4", "shout", nil)
			reply = wsReply(t, conn, codec)
			require.NotNil(t, reply.Error)
			assert.Equal(t, "unknown_tool", reply.Error.Kind)
		})
	}
}

func TestWebsocketMalformedFrame(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)
	conn := dialWs(t, ts.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	reply := wsReply(t, conn, protocol.JSON)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "bad_request", reply.Error.Kind)
}

func TestWebsocketCloseDisconnectsClients(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t)

	alice := join(t, ts, protocol.JSON, "r1", "Alice")

	conn := dialWs(t, ts.URL)
	wsCall(t, conn, protocol.JSON, "1", protocol.ToolJoinRoom, protocol.JoinRoomRequest{RoomID: "r1", DisplayName: "Bob"})
	require.Nil(t, wsReply(t, conn, protocol.JSON).Error)

	waited := make(chan protocol.WaitResponse, 1)
	go func() {
		var res protocol.WaitResponse
		post(t, ts, protocol.JSON, protocol.ToolWaitForMessage, protocol.WaitForMessageRequest{RoomID: "r1", ClientID: alice.ClientID, Timeout: 5}, &res)
		waited <- res
	}()
	require.Eventually(t, func() bool { return s.hub.Stats().Waiters == 1 }, 2*time.Second, time.Millisecond)

	require.NoError(t, conn.Close())

	select {
	case res := <-waited:
		assert.True(t, res.PartnerLeft())
	case <-time.After(5 * time.Second):
		t.Fatal("closing the websocket did not end the chat")
	}
	assert.Equal(t, 1, s.hub.Stats().Clients)
}
