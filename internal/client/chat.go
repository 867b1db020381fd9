package client

import (
	"context"
	"time"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

// Chat is one client's seat in a room.
type Chat struct {
	client   *Client
	RoomID   string
	ClientID string

	// WaitTimeout bounds each long poll. Zero uses the relay default.
	WaitTimeout time.Duration
}

func (c *Client) Chat(roomID, clientID string) *Chat {
	return &Chat{client: c, RoomID: roomID, ClientID: clientID}
}

func (ch *Chat) Send(ctx context.Context, text string) (*protocol.SendResponse, error) {
	return ch.client.SendMessage(ctx, ch.RoomID, ch.ClientID, text)
}

// Wait long-polls for the next message. A timed out result is not an
// error; callers loop.
func (ch *Chat) Wait(ctx context.Context) (*protocol.WaitResponse, error) {
	return ch.client.WaitForMessage(ctx, ch.RoomID, ch.ClientID, ch.WaitTimeout)
}

func (ch *Chat) Leave(ctx context.Context) error {
	return ch.client.LeaveChat(ctx, ch.RoomID, ch.ClientID)
}

// FindPartner queues displayName for random pairing and keeps waiting
// until matched. progress, if set, is called after every wait that ends
// unmatched. If ctx ends first the client is taken out of the queue.
func (c *Client) FindPartner(ctx context.Context, displayName string, poll time.Duration, progress func(*protocol.QueueResponse)) (*protocol.QueueResponse, error) {
	res, err := c.EnterQueue(ctx, displayName, poll)
	if err != nil {
		return nil, err
	}

	for !res.Matched() {
		if progress != nil {
			progress(res)
		}

		clientID := res.ClientID
		res, err = c.WaitForMatch(ctx, clientID, poll)
		if err != nil {
			if ctx.Err() != nil {
				leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = c.LeaveQueue(leaveCtx, clientID)
			}
			return nil, err
		}
	}
	return res, nil
}
