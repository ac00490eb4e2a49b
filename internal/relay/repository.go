package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository implements ConversationStore and MessageStore on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ---------------------------------------------
// ConversationStore
// ---------------------------------------------

func (r *Repository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c := &Conversation{}
	var adminID sql.NullString
	query := `SELECT id, is_group, group_admin_id, last_activity_at, created_at
	          FROM conversations WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.IsGroup, &adminID, &c.LastActivityAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.GroupAdminID = adminID.String

	c.ParticipantIDs, err = r.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
	            SELECT 1 FROM participants WHERE conversation_id = $1 AND user_id = $2
	          )`
	err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) TouchLastActivity(ctx context.Context, conversationID string) error {
	query := `UPDATE conversations SET last_activity_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

func (r *Repository) CreateConversation(ctx context.Context, creatorID string, participantIDs []string, isGroup bool) (*Conversation, error) {
	members := dedupe(append([]string{creatorID}, participantIDs...))
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: a conversation needs at least two participants", ErrMalformedInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := &Conversation{
		ID:             uuid.NewString(),
		IsGroup:        isGroup,
		ParticipantIDs: members,
		LastActivityAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	adminID := sql.NullString{}
	if isGroup {
		adminID = sql.NullString{String: creatorID, Valid: true}
		c.GroupAdminID = creatorID
	}

	query := `INSERT INTO conversations (id, is_group, group_admin_id, last_activity_at)
	          VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, c.ID, c.IsGroup, adminID, c.LastActivityAt); err != nil {
		return nil, err
	}

	for _, userID := range members {
		q := `INSERT INTO participants (conversation_id, user_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, c.ID, userID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `SELECT c.id, c.is_group, c.group_admin_id, c.last_activity_at, c.created_at
	          FROM conversations c
	          JOIN participants p ON p.conversation_id = c.id
	          WHERE p.user_id = $1
	          ORDER BY c.last_activity_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		c := &Conversation{}
		var adminID sql.NullString
		if err := rows.Scan(&c.ID, &c.IsGroup, &adminID, &c.LastActivityAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.GroupAdminID = adminID.String
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range conversations {
		if c.ParticipantIDs, err = r.participants(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

func (r *Repository) participants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---------------------------------------------
// MessageStore
// ---------------------------------------------

func (r *Repository) Append(ctx context.Context, msg *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO messages (id, conversation_id, sender_id, content, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Status, msg.CreatedAt)
	if err != nil {
		return err
	}

	// The sender has trivially read their own message.
	q := `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, q, msg.ID, msg.SenderID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) History(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, conversation_id, sender_id, content, status, created_at
	          FROM (
	              SELECT * FROM messages WHERE conversation_id = $1
	              ORDER BY created_at DESC LIMIT $2
	          ) recent
	          ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Message)
	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Status, &msg.CreatedAt); err != nil {
			return nil, err
		}
		byID[msg.ID] = msg
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	readRows, err := r.db.QueryContext(ctx,
		`SELECT mr.message_id, mr.user_id
		 FROM message_reads mr
		 JOIN messages m ON m.id = mr.message_id
		 WHERE m.conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer readRows.Close()

	for readRows.Next() {
		var messageID, userID string
		if err := readRows.Scan(&messageID, &userID); err != nil {
			return nil, err
		}
		if msg, ok := byID[messageID]; ok {
			msg.ReadBy = append(msg.ReadBy, userID)
		}
	}
	return messages, readRows.Err()
}

func (r *Repository) MarkDelivered(ctx context.Context, messageID string) error {
	// Status only ever moves forward; delivered never overwrites read.
	query := `UPDATE messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'`
	_, err := r.db.ExecContext(ctx, query, messageID)
	return err
}

func (r *Repository) MarkRead(ctx context.Context, messageID, readerID string) (*ReadResult, error) {
	var senderID, conversationID string
	var status MessageStatus
	query := `SELECT sender_id, conversation_id, status FROM messages WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(&senderID, &conversationID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	res := &ReadResult{SenderID: senderID, ConversationID: conversationID, Status: status}
	if readerID == senderID {
		res.Already = true
		return res, nil
	}

	// Only participants of the conversation may mark its messages read.
	participant, err := r.IsParticipant(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	if !participant {
		return nil, ErrUnauthorized
	}

	insert := `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
	           ON CONFLICT DO NOTHING`
	tag, err := r.db.ExecContext(ctx, insert, messageID, readerID)
	if err != nil {
		return nil, err
	}
	if n, err := tag.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		res.Already = true
		return res, nil
	}

	var unread int
	count := `SELECT count(*) FROM participants p
	          WHERE p.conversation_id = $1 AND p.user_id <> $2
	            AND NOT EXISTS (
	                SELECT 1 FROM message_reads mr
	                WHERE mr.message_id = $3 AND mr.user_id = p.user_id
	            )`
	if err := r.db.QueryRowContext(ctx, count, conversationID, senderID, messageID).Scan(&unread); err != nil {
		return nil, err
	}

	if unread == 0 {
		promote := `UPDATE messages SET status = 'read' WHERE id = $1 AND status <> 'read'`
		if _, err := r.db.ExecContext(ctx, promote, messageID); err != nil {
			return nil, err
		}
		res.AllRead = true
		res.Status = StatusRead
	} else if res.Status == StatusSent {
		// A receipt implies the recipient got the message.
		res.Status = StatusDelivered
	}
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
