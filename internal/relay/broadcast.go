package relay

// Delivery is best-effort and at-most-once: a subject with no live
// connection is skipped silently, and a client whose send buffer is full
// is evicted rather than awaited. Nothing here blocks the run loop.

// unicast delivers a frame to one subject if it has a live connection.
func (h *Hub) unicast(subjectID string, frame []byte) {
	if c, ok := h.registry.Lookup(subjectID); ok {
		h.sendTo(c, frame)
	}
}

// broadcastExcept delivers a frame to every authenticated connection other
// than the excluded one.
func (h *Hub) broadcastExcept(exclude *Client, frame []byte) {
	for _, c := range h.registry.Snapshot() {
		if c == exclude {
			continue
		}
		h.sendTo(c, frame)
	}
}

// broadcastToRoom delivers a frame to every member of the room, skipping
// excludeSubjectID when supplied.
func (h *Hub) broadcastToRoom(conversationID string, frame []byte, excludeSubjectID string) {
	for _, subjectID := range h.rooms.MembersOf(conversationID) {
		if subjectID == excludeSubjectID {
			continue
		}
		h.unicast(subjectID, frame)
	}
}

// sendTo queues a frame without blocking. A full buffer means the client
// is not draining; drop it the way the hub drops any dead connection.
func (h *Hub) sendTo(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		// Same teardown as any other death so the subject's offline
		// presence is broadcast exactly once.
		h.log.Warn("send buffer full, dropping client", "user_id", c.userID)
		h.dropClient(c)
	}
}
