package relay

import "time"

// ---------------------------------------------
// Database & API Models
// ---------------------------------------------

type Conversation struct {
	ID             string    `json:"id"`
	IsGroup        bool      `json:"is_group"`
	GroupAdminID   string    `json:"group_admin_id,omitempty"`
	ParticipantIDs []string  `json:"participant_ids"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	ReadBy         []string      `json:"read_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
