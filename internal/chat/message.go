package chat

import (
	"time"

	"github.com/google/uuid"
)

const systemSender = "System"

// Message is a sent chat message. It exists only between send and delivery;
// no history is kept.
type Message struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	SentAt     time.Time

	// System marks notices generated by the relay itself.
	System bool
}

func newMessage(roomID string, sender *Client, content string, at time.Time) *Message {
	return &Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Name(),
		Content:    content,
		SentAt:     at,
	}
}

func newSystemMessage(roomID, content string, at time.Time) *Message {
	return &Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   "system",
		SenderName: systemSender,
		Content:    content,
		SentAt:     at,
		System:     true,
	}
}

// preview shortens content for debug logs.
func preview(content string) string {
	const max = 50
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
