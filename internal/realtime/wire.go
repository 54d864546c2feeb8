package realtime

import (
	"encoding/json"
	"time"

	"homelet/api/internal/models"
)

// Frame kinds exchanged over the websocket.
const (
	FrameChatJoin    = "chat:join"
	FrameChatLeave   = "chat:leave"
	FrameMessageSend = "message:send"
	FrameMessageNew  = "message:new"
	FrameTyping      = "typing"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomPayload is the payload of chat:join and chat:leave.
type RoomPayload struct {
	ChatID int64 `json:"chatId"`
}

// SendPayload is the payload of message:send.
type SendPayload struct {
	ChatID  int64  `json:"chatId"`
	Content string `json:"content"`
}

// TypingPayload is the inbound typing payload.
type TypingPayload struct {
	ChatID   int64 `json:"chatId"`
	IsTyping bool  `json:"isTyping"`
}

// MessageNewPayload is broadcast for every persisted message.
type MessageNewPayload struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chatId"`
	SenderID int64     `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

// TypingBroadcastPayload is the outbound typing payload.
type TypingBroadcastPayload struct {
	ChatID   int64 `json:"chatId"`
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

func encodeFrame(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: kind, Payload: raw})
}

func messageNewFrame(msg *models.Message) ([]byte, error) {
	return encodeFrame(FrameMessageNew, MessageNewPayload{
		ID:       msg.ID,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
		SentAt:   msg.SentAt,
	})
}
