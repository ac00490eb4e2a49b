package relay

import "context"

// ConversationStore is the abstract conversation persistence the engine
// consults. The engine never reaches into SQL directly, which also keeps
// the hub testable with in-memory fakes.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	TouchLastActivity(ctx context.Context, conversationID string) error
	CreateConversation(ctx context.Context, creatorID string, participantIDs []string, isGroup bool) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
}

// ReadResult reports the outcome of recording a read receipt.
type ReadResult struct {
	// Already is true when the receipt changed nothing: the reader had
	// already read the message, or the reader is the sender.
	Already bool
	// AllRead is true when this receipt completed the read set, i.e.
	// every participant other than the sender has now read the message.
	AllRead bool
	// SenderID is the message sender, for routing the status update.
	SenderID string
	// ConversationID is the message's conversation as recorded by the
	// store, not as claimed by the reader.
	ConversationID string
	// Status is the message's delivery state after this receipt.
	Status MessageStatus
}

// MessageStore is the abstract message persistence. Delivery state moves
// sent -> delivered -> read and implementations must never regress it.
type MessageStore interface {
	// Append stores the message with status sent and seeds its read set
	// with the sender.
	Append(ctx context.Context, msg *Message) error
	History(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	// MarkDelivered promotes sent -> delivered; a no-op at delivered or read.
	MarkDelivered(ctx context.Context, messageID string) error
	// MarkRead records the reader in the message's read set, promoting the
	// status to read when all non-sender participants have read it. A
	// reader who is not a participant of the message's conversation is
	// rejected with ErrUnauthorized.
	MarkRead(ctx context.Context, messageID, readerID string) (*ReadResult, error)
}
