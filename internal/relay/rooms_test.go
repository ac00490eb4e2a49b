package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRooms_JoinAndLeave(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	req.Empty(rooms.Join("c1", "alice"))
	req.Empty(rooms.Join("c1", "bob"))
	req.ElementsMatch([]string{"alice", "bob"}, rooms.MembersOf("c1"))

	focused, ok := rooms.FocusedRoom("alice")
	req.True(ok)
	req.Equal("c1", focused)

	rooms.Leave("c1", "alice")
	req.ElementsMatch([]string{"bob"}, rooms.MembersOf("c1"))
	_, ok = rooms.FocusedRoom("alice")
	req.False(ok)
}

func TestRooms_SingleFocusMigration(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	rooms.Join("c1", "alice")

	// Joining a second room removes the subject from the first; a subject
	// is never a member of two rooms at once.
	prev := rooms.Join("c2", "alice")
	req.Equal("c1", prev)
	req.Empty(rooms.MembersOf("c1"))
	req.ElementsMatch([]string{"alice"}, rooms.MembersOf("c2"))

	focused, _ := rooms.FocusedRoom("alice")
	req.Equal("c2", focused)
}

func TestRooms_RejoinSameRoomIsNoop(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	rooms.Join("c1", "alice")
	req.Empty(rooms.Join("c1", "alice"))
	req.ElementsMatch([]string{"alice"}, rooms.MembersOf("c1"))
}

func TestRooms_EmptyRoomIsDeleted(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	rooms.Join("c1", "alice")
	rooms.Leave("c1", "alice")

	req.Empty(rooms.MembersOf("c1"))
	req.Empty(rooms.members)
	req.Empty(rooms.focus)
}

func TestRooms_LeaveCurrent(t *testing.T) {
	req := require.New(t)
	rooms := NewRooms()

	req.Empty(rooms.LeaveCurrent("alice"))

	rooms.Join("c1", "alice")
	req.Equal("c1", rooms.LeaveCurrent("alice"))
	req.Empty(rooms.MembersOf("c1"))

	// Teardown can run twice without damage.
	req.Empty(rooms.LeaveCurrent("alice"))
}
