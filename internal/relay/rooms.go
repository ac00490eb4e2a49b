package relay

import (
	"sync"

	"github.com/samber/lo"
)

type set map[string]struct{}

// Rooms tracks which subjects have declared focus on which conversation.
// A subject is focused on at most one room at a time; joining a new room
// atomically removes the subject from the prior one. Room state is
// ephemeral and lost on restart.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]set    // conversation id -> subject ids
	focus   map[string]string // subject id -> conversation id
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]set),
		focus:   make(map[string]string),
	}
}

// Join adds the subject to the room, leaving any previously focused room
// first. Returns the id of the room the subject left, or "" if none.
// Authorization against the conversation's participant set is the caller's
// job; Join only maintains focus state.
func (r *Rooms) Join(conversationID, subjectID string) (prev string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev = r.focus[subjectID]
	if prev == conversationID {
		return ""
	}
	if prev != "" {
		r.removeLocked(prev, subjectID)
	}

	if _, ok := r.members[conversationID]; !ok {
		r.members[conversationID] = make(set)
	}
	r.members[conversationID][subjectID] = struct{}{}
	r.focus[subjectID] = conversationID
	return prev
}

// Leave removes the subject from the room. Empty rooms are deleted so the
// map never leaks entries for dead conversations.
func (r *Rooms) Leave(conversationID, subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.focus[subjectID] == conversationID {
		delete(r.focus, subjectID)
	}
	r.removeLocked(conversationID, subjectID)
}

// LeaveCurrent removes the subject from whatever room it is focused on,
// returning that room's id or "" if the subject was not in a room. Safe to
// call repeatedly during connection teardown.
func (r *Rooms) LeaveCurrent(subjectID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversationID, ok := r.focus[subjectID]
	if !ok {
		return ""
	}
	delete(r.focus, subjectID)
	r.removeLocked(conversationID, subjectID)
	return conversationID
}

func (r *Rooms) MembersOf(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.members[conversationID])
}

// FocusedRoom returns the conversation the subject is currently focused on.
func (r *Rooms) FocusedRoom(subjectID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.focus[subjectID]
	return id, ok
}

func (r *Rooms) removeLocked(conversationID, subjectID string) {
	members, ok := r.members[conversationID]
	if !ok {
		return
	}
	delete(members, subjectID)
	if len(members) == 0 {
		delete(r.members, conversationID)
	}
}
