// Package protocol defines the tool-call wire format shared by the relay
// server and its clients.
package protocol

import (
	"math"
	"time"
)

// Tool names, used as HTTP paths under /tools/ and as the tool field of
// websocket call frames.
const (
	ToolEnterQueue     = "enter_queue"
	ToolWaitForMatch   = "wait_for_match"
	ToolLeaveQueue     = "leave_queue"
	ToolJoinRoom       = "join_room"
	ToolSendMessage    = "send_message"
	ToolWaitForMessage = "wait_for_message"
	ToolLeaveChat      = "leave_chat"
)

// Result status values.
const (
	StatusWaiting     = "waiting"
	StatusMatched     = "matched"
	StatusRoomCreated = "room_created"
	StatusJoined      = "joined"
	StatusSent        = "sent"
	StatusMessage     = "message"
	StatusTimeout     = "timeout"
	StatusPartnerLeft = "partner_left"
)

// Call is a decoded websocket call frame. Args stay in the frame's codec.
type Call struct {
	ID   string
	Tool string
	Args []byte
}

// CallFrame is the encoding side of Call.
type CallFrame struct {
	ID   string `json:"id" msgpack:"id"`
	Tool string `json:"tool" msgpack:"tool"`
	Args any    `json:"args,omitempty" msgpack:"args,omitempty"`
}

// Reply is a decoded websocket reply frame. Result stays in the frame's codec.
type Reply struct {
	ID     string
	Result []byte
	Error  *ErrorBody
}

// ReplyFrame is the encoding side of Reply.
type ReplyFrame struct {
	ID     string     `json:"id" msgpack:"id"`
	Result any        `json:"result,omitempty" msgpack:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ErrorBody describes a failed call.
type ErrorBody struct {
	Kind    string `json:"kind" msgpack:"kind"`
	Message string `json:"message" msgpack:"message"`
}

// ErrorResponse is the HTTP body of a failed call.
type ErrorResponse struct {
	Error ErrorBody `json:"error" msgpack:"error"`
}

type EnterQueueRequest struct {
	DisplayName string  `json:"display_name,omitempty" msgpack:"display_name,omitempty"`
	Timeout     float64 `json:"timeout,omitempty" msgpack:"timeout,omitempty"`
}

type WaitForMatchRequest struct {
	ClientID string  `json:"client_id" msgpack:"client_id"`
	Timeout  float64 `json:"timeout,omitempty" msgpack:"timeout,omitempty"`
}

type LeaveQueueRequest struct {
	ClientID string `json:"client_id" msgpack:"client_id"`
}

type JoinRoomRequest struct {
	RoomID      string `json:"room_id" msgpack:"room_id"`
	DisplayName string `json:"display_name,omitempty" msgpack:"display_name,omitempty"`
}

type SendMessageRequest struct {
	RoomID   string `json:"room_id" msgpack:"room_id"`
	ClientID string `json:"client_id" msgpack:"client_id"`
	Message  string `json:"message" msgpack:"message"`
}

type WaitForMessageRequest struct {
	RoomID   string  `json:"room_id" msgpack:"room_id"`
	ClientID string  `json:"client_id" msgpack:"client_id"`
	Timeout  float64 `json:"timeout,omitempty" msgpack:"timeout,omitempty"`
}

type LeaveChatRequest struct {
	RoomID   string `json:"room_id" msgpack:"room_id"`
	ClientID string `json:"client_id" msgpack:"client_id"`
}

// Partner identifies the other member of a room.
type Partner struct {
	ClientID    string `json:"client_id" msgpack:"client_id"`
	DisplayName string `json:"display_name" msgpack:"display_name"`
}

// QueueResponse answers enter_queue and wait_for_match.
type QueueResponse struct {
	ClientID    string   `json:"client_id" msgpack:"client_id"`
	Status      string   `json:"status" msgpack:"status"`
	RoomID      string   `json:"room_id,omitempty" msgpack:"room_id,omitempty"`
	Partner     *Partner `json:"partner,omitempty" msgpack:"partner,omitempty"`
	Position    int      `json:"position,omitempty" msgpack:"position,omitempty"`
	QueueLength int      `json:"queue_length,omitempty" msgpack:"queue_length,omitempty"`
}

func (r *QueueResponse) Matched() bool {
	return r.Status == StatusMatched
}

type JoinResponse struct {
	ClientID string   `json:"client_id" msgpack:"client_id"`
	Status   string   `json:"status" msgpack:"status"`
	RoomID   string   `json:"room_id" msgpack:"room_id"`
	Partner  *Partner `json:"partner,omitempty" msgpack:"partner,omitempty"`
}

type SendResponse struct {
	Status    string    `json:"status" msgpack:"status"`
	MessageID string    `json:"message_id" msgpack:"message_id"`
	SentAt    time.Time `json:"sent_at" msgpack:"sent_at"`
	Delivered bool      `json:"delivered" msgpack:"delivered"`
}

// WaitResponse answers wait_for_message. The message fields are set only
// when Status is StatusMessage.
type WaitResponse struct {
	Status    string     `json:"status" msgpack:"status"`
	Message   string     `json:"message,omitempty" msgpack:"message,omitempty"`
	Sender    string     `json:"sender,omitempty" msgpack:"sender,omitempty"`
	SenderID  string     `json:"sender_id,omitempty" msgpack:"sender_id,omitempty"`
	MessageID string     `json:"message_id,omitempty" msgpack:"message_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	System    bool       `json:"system,omitempty" msgpack:"system,omitempty"`
}

func (r *WaitResponse) TimedOut() bool {
	return r.Status == StatusTimeout
}

func (r *WaitResponse) PartnerLeft() bool {
	return r.Status == StatusPartnerLeft
}

// Ack answers calls with no other result.
type Ack struct {
	Success bool `json:"success" msgpack:"success"`
}

type Member struct {
	ClientID    string `json:"client_id" msgpack:"client_id"`
	DisplayName string `json:"display_name" msgpack:"display_name"`
}

type Room struct {
	ID        string    `json:"room_id" msgpack:"room_id"`
	State     string    `json:"state" msgpack:"state"`
	Members   []Member  `json:"members" msgpack:"members"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

type RoomsResponse struct {
	Rooms []Room `json:"rooms" msgpack:"rooms"`
}

type MessageStats struct {
	Sent      int64 `json:"sent" msgpack:"sent"`
	Delivered int64 `json:"delivered" msgpack:"delivered"`
	Dropped   int64 `json:"dropped" msgpack:"dropped"`
}

type StatsResponse struct {
	Clients  int            `json:"clients" msgpack:"clients"`
	Queued   int            `json:"queued" msgpack:"queued"`
	Waiters  int            `json:"waiters" msgpack:"waiters"`
	Rooms    map[string]int `json:"rooms" msgpack:"rooms"`
	Matches  int64          `json:"matches" msgpack:"matches"`
	Messages MessageStats   `json:"messages" msgpack:"messages"`
}

type HealthResponse struct {
	Status  string `json:"status" msgpack:"status"`
	Version string `json:"version" msgpack:"version"`
}

// Seconds converts a duration to wire seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Duration converts wire seconds to a duration. Non-positive values map to
// zero, which the relay treats as "use the default".
func Duration(seconds float64) time.Duration {
	switch {
	case seconds <= 0 || math.IsNaN(seconds):
		return 0
	case seconds >= float64(math.MaxInt64)/float64(time.Second):
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(seconds * float64(time.Second))
	}
}
