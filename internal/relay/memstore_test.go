package relay

// In-memory store fakes mirroring the Postgres repository's contract,
// including the monotonic delivery-state rules. The status log lets tests
// assert that a message's observed states are always a prefix of
// sent -> delivered -> read.

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memConversationStore struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{convs: make(map[string]*Conversation)}
}

func (s *memConversationStore) add(c *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[c.ID] = c
}

func (s *memConversationStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *memConversationStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return false, nil
	}
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memConversationStore) TouchLastActivity(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[conversationID]; ok {
		c.LastActivityAt = time.Now().UTC()
	}
	return nil
}

func (s *memConversationStore) CreateConversation(_ context.Context, creatorID string, participantIDs []string, isGroup bool) (*Conversation, error) {
	c := &Conversation{
		ID:             uuid.NewString(),
		IsGroup:        isGroup,
		ParticipantIDs: append([]string{creatorID}, participantIDs...),
		LastActivityAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if isGroup {
		c.GroupAdminID = creatorID
	}
	s.add(c)
	return c, nil
}

func (s *memConversationStore) ListForUser(_ context.Context, userID string) ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Conversation
	for _, c := range s.convs {
		for _, id := range c.ParticipantIDs {
			if id == userID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

type memMessageStore struct {
	mu        sync.Mutex
	convs     *memConversationStore
	msgs      map[string]*Message
	reads     map[string]map[string]struct{}
	statusLog map[string][]MessageStatus
}

func newMemMessageStore(convs *memConversationStore) *memMessageStore {
	return &memMessageStore{
		convs:     convs,
		msgs:      make(map[string]*Message),
		reads:     make(map[string]map[string]struct{}),
		statusLog: make(map[string][]MessageStatus),
	}
}

func (s *memMessageStore) Append(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *msg
	s.msgs[msg.ID] = &stored
	s.reads[msg.ID] = map[string]struct{}{msg.SenderID: {}}
	s.statusLog[msg.ID] = append(s.statusLog[msg.ID], StatusSent)
	return nil
}

func (s *memMessageStore) History(_ context.Context, conversationID string, _ int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		copied := *m
		for reader := range s.reads[m.ID] {
			copied.ReadBy = append(copied.ReadBy, reader)
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memMessageStore) MarkDelivered(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return ErrNotFound
	}
	if m.Status == StatusSent {
		m.Status = StatusDelivered
		s.statusLog[messageID] = append(s.statusLog[messageID], StatusDelivered)
	}
	return nil
}

func (s *memMessageStore) MarkRead(ctx context.Context, messageID, readerID string) (*ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[messageID]
	if !ok {
		return nil, ErrNotFound
	}

	res := &ReadResult{SenderID: m.SenderID, ConversationID: m.ConversationID, Status: m.Status}
	if readerID == m.SenderID {
		res.Already = true
		return res, nil
	}

	conv := s.convs.convs[m.ConversationID]
	participant := false
	for _, id := range conv.ParticipantIDs {
		if id == readerID {
			participant = true
			break
		}
	}
	if !participant {
		return nil, ErrUnauthorized
	}

	if _, ok := s.reads[messageID][readerID]; ok {
		res.Already = true
		return res, nil
	}
	s.reads[messageID][readerID] = struct{}{}
	allRead := true
	for _, id := range conv.ParticipantIDs {
		if id == m.SenderID {
			continue
		}
		if _, ok := s.reads[messageID][id]; !ok {
			allRead = false
			break
		}
	}

	if allRead {
		if m.Status != StatusRead {
			m.Status = StatusRead
			s.statusLog[messageID] = append(s.statusLog[messageID], StatusRead)
		}
		res.AllRead = true
		res.Status = StatusRead
	} else if res.Status == StatusSent {
		res.Status = StatusDelivered
	}
	return res, nil
}

func (s *memMessageStore) readersOf(messageID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := range s.reads[messageID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *memMessageStore) statusHistory(messageID string) []MessageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MessageStatus(nil), s.statusLog[messageID]...)
}

func (s *memMessageStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
