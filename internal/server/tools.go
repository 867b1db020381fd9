package server

import (
	"context"
	"fmt"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/protocol"
)

// decodeFunc decodes the arguments of a call into v.
type decodeFunc func(v any) error

type toolFunc func(ctx context.Context, decode decodeFunc) (any, error)

func (s *Server) toolset() map[string]toolFunc {
	return map[string]toolFunc{
		protocol.ToolEnterQueue:     s.enterQueue,
		protocol.ToolWaitForMatch:   s.waitForMatch,
		protocol.ToolLeaveQueue:     s.leaveQueue,
		protocol.ToolJoinRoom:       s.joinRoom,
		protocol.ToolSendMessage:    s.sendMessage,
		protocol.ToolWaitForMessage: s.waitForMessage,
		protocol.ToolLeaveChat:      s.leaveChat,
	}
}

// dispatch runs the named tool. It is shared by the HTTP and websocket
// transports.
func (s *Server) dispatch(ctx context.Context, tool string, decode decodeFunc) (any, error) {
	fn, ok := s.tools[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownTool, tool)
	}
	return fn(ctx, func(v any) error {
		if err := decode(v); err != nil {
			return badRequest(err)
		}
		return nil
	})
}

func (s *Server) enterQueue(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.EnterQueueRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	res, err := s.hub.EnterQueue(ctx, req.DisplayName, protocol.Duration(req.Timeout))
	if err != nil {
		return nil, err
	}
	sessionFrom(ctx).track(res.ClientID)
	return queueResponse(res), nil
}

func (s *Server) waitForMatch(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.WaitForMatchRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	res, err := s.hub.WaitForMatch(ctx, req.ClientID, protocol.Duration(req.Timeout))
	if err != nil {
		return nil, err
	}
	return queueResponse(res), nil
}

func (s *Server) leaveQueue(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.LeaveQueueRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	if err := s.hub.LeaveQueue(req.ClientID); err != nil {
		return nil, err
	}
	sessionFrom(ctx).release(req.ClientID)
	return &protocol.Ack{Success: true}, nil
}

func (s *Server) joinRoom(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.JoinRoomRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	res, err := s.hub.JoinRoom(req.RoomID, req.DisplayName)
	if err != nil {
		return nil, err
	}
	sessionFrom(ctx).track(res.ClientID)

	return &protocol.JoinResponse{
		ClientID: res.ClientID,
		Status:   string(res.Status),
		RoomID:   res.RoomID,
		Partner:  partner(res.Partner),
	}, nil
}

func (s *Server) sendMessage(_ context.Context, decode decodeFunc) (any, error) {
	var req protocol.SendMessageRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	res, err := s.hub.SendMessage(req.RoomID, req.ClientID, req.Message)
	if err != nil {
		return nil, err
	}
	return &protocol.SendResponse{
		Status:    protocol.StatusSent,
		MessageID: res.Message.ID,
		SentAt:    res.Message.SentAt,
		Delivered: res.Delivered,
	}, nil
}

func (s *Server) waitForMessage(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.WaitForMessageRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	res, err := s.hub.WaitForMessage(ctx, req.RoomID, req.ClientID, protocol.Duration(req.Timeout))
	if err != nil {
		return nil, err
	}

	out := &protocol.WaitResponse{Status: string(res.Status)}
	if m := res.Message; m != nil {
		sentAt := m.SentAt
		out.Message = m.Content
		out.Sender = m.SenderName
		out.SenderID = m.SenderID
		out.MessageID = m.ID
		out.Timestamp = &sentAt
		out.System = m.System
	}
	return out, nil
}

func (s *Server) leaveChat(ctx context.Context, decode decodeFunc) (any, error) {
	var req protocol.LeaveChatRequest
	if err := decode(&req); err != nil {
		return nil, err
	}

	if err := s.hub.LeaveChat(req.RoomID, req.ClientID); err != nil {
		return nil, err
	}
	sessionFrom(ctx).release(req.ClientID)
	return &protocol.Ack{Success: true}, nil
}

func queueResponse(res *chat.QueueResult) *protocol.QueueResponse {
	return &protocol.QueueResponse{
		ClientID:    res.ClientID,
		Status:      string(res.Status),
		RoomID:      res.RoomID,
		Partner:     partner(res.Partner),
		Position:    res.Position,
		QueueLength: res.QueueLength,
	}
}

func partner(c *chat.Client) *protocol.Partner {
	if c == nil {
		return nil
	}
	return &protocol.Partner{ClientID: c.ID, DisplayName: c.Name()}
}

func roomsResponse(rooms []chat.RoomInfo) *protocol.RoomsResponse {
	out := &protocol.RoomsResponse{Rooms: make([]protocol.Room, 0, len(rooms))}
	for _, r := range rooms {
		members := make([]protocol.Member, 0, len(r.Members))
		for _, m := range r.Members {
			members = append(members, protocol.Member{ClientID: m.ClientID, DisplayName: m.DisplayName})
		}
		out.Rooms = append(out.Rooms, protocol.Room{
			ID:        r.ID,
			State:     r.State,
			Members:   members,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func statsResponse(st chat.Stats) *protocol.StatsResponse {
	return &protocol.StatsResponse{
		Clients: st.Clients,
		Queued:  st.Queued,
		Waiters: st.Waiters,
		Rooms:   st.Rooms,
		Matches: st.Matches,
		Messages: protocol.MessageStats{
			Sent:      st.Messages.Sent,
			Delivered: st.Messages.Delivered,
			Dropped:   st.Messages.Dropped,
		},
	}
}
