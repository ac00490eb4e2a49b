// Package relay implements the connection/session core of the messaging
// server: the subject->connection registry, per-conversation rooms, the
// session protocol engine, and best-effort event fan-out.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DuplicatePolicy decides what happens when a subject that already has a
// live connection opens another one. The policy is a single switch point
// in the register path; nothing else in the engine depends on it.
type DuplicatePolicy int

const (
	// NewestWins supersedes the prior connection and closes it.
	NewestWins DuplicatePolicy = iota
	// RejectNew refuses the new connection and keeps the prior one.
	RejectNew
)

type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub is the session protocol engine. Its run loop is the only goroutine
// that mutates registry, room, and read state, so concurrent connections
// cannot lose updates or regress delivery state. Store calls are expected
// to be fast; broadcasting is fire-and-forget and never awaits receivers.
type Hub struct {
	registry *Registry
	rooms    *Rooms

	conversations ConversationStore
	messages      MessageStore
	presence      *Presence

	// Register requests from accepted connections.
	Register chan *Client
	// Unregister requests from dying connections.
	Unregister chan *Client
	inbound    chan inboundFrame

	Policy DuplicatePolicy

	validate *validator.Validate
	log      *slog.Logger
}

func NewHub(conversations ConversationStore, messages MessageStore, presence *Presence, log *slog.Logger) *Hub {
	return &Hub{
		registry:      NewRegistry(),
		rooms:         NewRooms(),
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		inbound:       make(chan inboundFrame),
		Policy:        NewestWins,
		validate:      validator.New(),
		log:           log,
	}
}

// ActiveSubjects exposes the presence snapshot for the HTTP surface.
func (h *Hub) ActiveSubjects() []string {
	return h.registry.ActiveSubjects()
}

// Run owns all session state. Runs until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.Register:
			h.handleRegister(c)

		case c := <-h.Unregister:
			h.handleUnregister(c)

		case frame := <-h.inbound:
			h.handleFrame(frame.client, frame.data)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	ctx := context.Background()

	if prev, ok := h.registry.Lookup(c.userID); ok {
		switch h.Policy {
		case RejectNew:
			h.sendTo(c, marshalEvent(EventError, ErrorPayload{Message: "already connected"}))
			h.closeSend(c)
			return
		default: // NewestWins
			h.registry.Register(c.userID, c)
			h.closeSend(prev)
			h.log.Info("connection superseded", "user_id", c.userID)
			// The subject never went offline; skip the presence broadcasts.
			h.sendTo(c, marshalEvent(EventAuthSuccess, AuthSuccessPayload{UserID: c.userID, Username: c.username}))
			h.sendTo(c, marshalEvent(EventOnlineUsers, OnlineUsersPayload{UserIDs: h.registry.ActiveSubjects()}))
			return
		}
	}

	h.registry.Register(c.userID, c)
	h.presence.SetOnline(ctx, c.userID)
	h.log.Info("user connected", "user_id", c.userID, "username", c.username)

	h.sendTo(c, marshalEvent(EventAuthSuccess, AuthSuccessPayload{UserID: c.userID, Username: c.username}))
	h.sendTo(c, marshalEvent(EventOnlineUsers, OnlineUsersPayload{UserIDs: h.registry.ActiveSubjects()}))
	h.broadcastExcept(c, marshalEvent(EventUserStatus, UserStatusPayload{UserID: c.userID, Status: "online"}))
}

// handleUnregister tears a connection down. Reached from transport close,
// read errors, and heartbeat timeout alike; every step is idempotent so a
// close racing a supersede cannot corrupt state.
func (h *Hub) handleUnregister(c *Client) {
	h.dropClient(c)
}

// dropClient is the single teardown path for a connection: guarded
// registry removal, room focus cleanup, and the offline presence fan-out.
// Unregistration is the sole trigger for presence-changed broadcasts, so
// every way a connection dies (transport close, heartbeat timeout,
// slow-consumer eviction) must come through here.
func (h *Hub) dropClient(c *Client) {
	if h.registry.Unregister(c.userID, c) {
		// Still the live connection for this subject: drop room focus and
		// announce the subject offline.
		h.rooms.LeaveCurrent(c.userID)
		h.presence.SetOffline(context.Background(), c.userID)
		h.broadcastExcept(c, marshalEvent(EventUserStatus, UserStatusPayload{UserID: c.userID, Status: "offline"}))
		h.log.Info("user disconnected", "user_id", c.userID)
	}
	h.closeSend(c)
}

// handleFrame dispatches one inbound event. A panic or error in a handler
// is confined to this event: the offending client gets an error event and
// every other connection is untouched.
func (h *Hub) handleFrame(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("event handler panic", "user_id", c.userID, "panic", r)
		}
	}()

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.sendError(c, ErrMalformedInput)
		return
	}

	var err error
	switch ev.Type {
	case EventJoinChat:
		err = h.handleJoin(c, ev.Payload)
	case EventChatMessage:
		err = h.handleChatMessage(c, ev.Payload)
	case EventTyping:
		err = h.handleTyping(c, ev.Payload, EventTyping)
	case EventStopTyping:
		err = h.handleTyping(c, ev.Payload, EventStopTyping)
	case EventReadReceipt:
		err = h.handleReadReceipt(c, ev.Payload)
	default:
		err = ErrMalformedInput
	}
	if err != nil {
		h.sendError(c, err)
	}
}

func (h *Hub) handleJoin(c *Client, raw json.RawMessage) error {
	var p JoinChatPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	ctx := context.Background()

	ok, err := h.conversations.IsParticipant(ctx, p.ChatID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}

	h.rooms.Join(p.ChatID, c.userID)
	h.sendTo(c, marshalEvent(EventJoinedChat, JoinedChatPayload{ChatID: p.ChatID}))
	return nil
}

func (h *Hub) handleChatMessage(c *Client, raw json.RawMessage) error {
	var p ChatMessagePayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	ctx := context.Background()

	if focused, _ := h.rooms.FocusedRoom(c.userID); focused != p.ChatID {
		return ErrNotInRoom
	}
	ok, err := h.conversations.IsParticipant(ctx, p.ChatID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}

	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: p.ChatID,
		SenderID:       c.userID,
		Content:        p.Content,
		Status:         StatusSent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.messages.Append(ctx, msg); err != nil {
		return err
	}
	if err := h.conversations.TouchLastActivity(ctx, p.ChatID); err != nil {
		h.log.Warn("last-activity update failed", "conversation_id", p.ChatID, "error", err)
	}

	// Everyone in the room, sender included, gets the message; the sender
	// uses the echo to reconcile the server-assigned id.
	h.broadcastToRoom(p.ChatID, marshalEvent(EventReceiveMessage, ReceiveMessagePayload{
		ID:        msg.ID,
		Sender:    c.userID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
		Status:    StatusSent,
		ChatID:    p.ChatID,
	}), "")

	// Room members have live connections, so the message is delivered the
	// moment it fans out.
	if err := h.messages.MarkDelivered(ctx, msg.ID); err != nil {
		h.log.Warn("delivered update failed", "message_id", msg.ID, "error", err)
	}
	h.broadcastToRoom(p.ChatID, marshalEvent(EventMessageStatusUpdate, MessageStatusUpdatePayload{
		MessageID: msg.ID,
		ChatID:    p.ChatID,
		Status:    StatusDelivered,
	}), c.userID)
	return nil
}

// handleTyping relays typing indicators to the rest of the room. Nothing
// is stored and out-of-room requests are dropped without an error event.
func (h *Hub) handleTyping(c *Client, raw json.RawMessage, eventType string) error {
	var p TypingPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}

	if focused, _ := h.rooms.FocusedRoom(c.userID); focused != p.ChatID {
		return nil
	}

	payload := TypingBroadcastPayload{UserID: c.userID, ChatID: p.ChatID}
	if eventType == EventTyping {
		payload.Username = c.username
	}
	h.broadcastToRoom(p.ChatID, marshalEvent(eventType, payload), c.userID)
	return nil
}

func (h *Hub) handleReadReceipt(c *Client, raw json.RawMessage) error {
	var p ReadReceiptPayload
	if err := h.decode(raw, &p); err != nil {
		return err
	}
	ctx := context.Background()

	res, err := h.messages.MarkRead(ctx, p.MessageID, c.userID)
	if err != nil {
		return err
	}
	if res.Already {
		// Sender reading their own message, or a repeated receipt.
		return nil
	}

	// Only the sender cares who has read the message; dropped silently if
	// the sender is offline. No queue, no replay. The conversation id
	// comes from the store, not from the reader's payload.
	h.unicast(res.SenderID, marshalEvent(EventMessageStatusUpdate, MessageStatusUpdatePayload{
		MessageID: p.MessageID,
		ChatID:    res.ConversationID,
		Status:    res.Status,
		ReaderID:  c.userID,
	}))
	return nil
}

func (h *Hub) decode(raw json.RawMessage, payload any) error {
	if err := json.Unmarshal(raw, payload); err != nil {
		return ErrMalformedInput
	}
	if err := h.validate.Struct(payload); err != nil {
		return ErrMalformedInput
	}
	return nil
}

func (h *Hub) sendError(c *Client, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrMalformedInput),
		errors.Is(err, ErrNotFound):
		// expected protocol errors
	default:
		h.log.Error("event handling failed", "user_id", c.userID, "error", err)
		err = errors.New("internal error")
	}
	h.sendTo(c, marshalEvent(EventError, ErrorPayload{Message: err.Error()}))
}

// closeSend closes a client's outbound channel exactly once. Only the run
// loop calls this, so the closed flag needs no lock.
func (h *Hub) closeSend(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
