package relay

import (
	"encoding/json"
	"time"
)

// Event is the wire envelope for both directions of the websocket protocol.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client -> server event types.
const (
	EventJoinChat    = "join_chat"
	EventChatMessage = "chat_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventReadReceipt = "read_receipt"
)

// Server -> client event types.
const (
	EventAuthSuccess         = "auth_success"
	EventOnlineUsers         = "online_users"
	EventUserStatus          = "user_status"
	EventJoinedChat          = "joined_chat"
	EventReceiveMessage      = "receive_message"
	EventMessageStatusUpdate = "message_status_update"
	EventError               = "error"
)

// ---------------------------------------------
// Client -> server payloads
// ---------------------------------------------

type JoinChatPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type ChatMessagePayload struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content" validate:"required,max=4000"`
}

type TypingPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type ReadReceiptPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	SenderID  string `json:"senderId" validate:"required"`
	ChatID    string `json:"chatId" validate:"required"`
}

// ---------------------------------------------
// Server -> client payloads
// ---------------------------------------------

type AuthSuccessPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

type UserStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // online | offline
}

type JoinedChatPayload struct {
	ChatID string `json:"chatId"`
}

type ReceiveMessagePayload struct {
	ID        string        `json:"id"`
	Sender    string        `json:"sender"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
	ChatID    string        `json:"chatId"`
}

type MessageStatusUpdatePayload struct {
	MessageID string        `json:"messageId"`
	ChatID    string        `json:"chatId"`
	Status    MessageStatus `json:"status"`
	ReaderID  string        `json:"readerId,omitempty"`
}

type TypingBroadcastPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	ChatID   string `json:"chatId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// marshalEvent wraps a payload into the wire envelope. Payload types here
// cannot fail to marshal.
func marshalEvent(eventType string, payload any) []byte {
	raw, _ := json.Marshal(payload)
	out, _ := json.Marshal(Event{Type: eventType, Payload: raw})
	return out
}
