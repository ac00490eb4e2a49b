package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	myMiddleware "github.com/MehulSharma-259/chat-app/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Handler exposes the websocket endpoint and the bootstrap/history REST
// surface. The auth middleware runs first on every route here, so the
// subject identity is always present in the request context.
type Handler struct {
	hub           *Hub
	conversations ConversationStore
	messages      MessageStore
	presence      *Presence
	validate      *validator.Validate
	log           *slog.Logger
}

func NewHandler(hub *Hub, conversations ConversationStore, messages MessageStore, presence *Presence, log *slog.Logger) *Handler {
	return &Handler{
		hub:           hub,
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		validate:      validator.New(),
		log:           log,
	}
}

// ServeWs upgrades the connection and hands it to the hub. The credential
// was already verified by the middleware; a missing subject means the
// handshake failed and the socket is never upgraded.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(string)
	username, ok2 := r.Context().Value(myMiddleware.UsernameKey).(string)
	if !ok || !ok2 || userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		userID:   userID,
		username: username,
	}
	client.hub.Register <- client

	go client.writePump()
	go client.readPump()
}

type createConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,dive,required"`
	IsGroup        bool     `json:"is_group"`
}

// StartConversation creates a direct or group conversation including the
// caller.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(myMiddleware.UserKey).(string)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.CreateConversation(r.Context(), userID, req.ParticipantIDs, req.IsGroup)
	if err != nil {
		if errors.Is(err, ErrMalformedInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error("create conversation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(conv)
}

// GetConversations lists the caller's conversations, most recent first.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(myMiddleware.UserKey).(string)

	conversations, err := h.conversations.ListForUser(r.Context(), userID)
	if err != nil {
		h.log.Error("list conversations failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []*Conversation{}
	}
	json.NewEncoder(w).Encode(conversations)
}

// GetChatHistory returns recent messages for a conversation the caller
// participates in.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(myMiddleware.UserKey).(string)

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	ok, err := h.conversations.IsParticipant(r.Context(), conversationID, userID)
	if err != nil {
		h.log.Error("participant check failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}

	messages, err := h.messages.History(r.Context(), conversationID, 50)
	if err != nil {
		h.log.Error("history fetch failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	json.NewEncoder(w).Encode(messages)
}

// GetPresence serves the online-subject snapshot from the Redis mirror,
// falling back to the in-process registry when the mirror is unavailable.
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userIDs, err := h.presence.Snapshot(r.Context())
	if err != nil || userIDs == nil {
		userIDs = h.hub.ActiveSubjects()
	}
	json.NewEncoder(w).Encode(OnlineUsersPayload{UserIDs: userIDs})
}
