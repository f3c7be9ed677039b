package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"toytrade/internal/chat"
)

func (s *sessionStub) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestRoomsBroadcastWithExclusion(t *testing.T) {
	rooms := chat.NewRooms()
	alice := &sessionStub{id: "s1", userID: "alice"}
	bob := &sessionStub{id: "s2", userID: "bob"}

	rooms.Join("conv-1", alice)
	rooms.Join("conv-1", bob)
	rooms.Join("conv-1", bob) // idempotent
	assert.Equal(t, 2, rooms.Size("conv-1"))

	rooms.Broadcast("conv-1", "message:new", nil, "alice")
	assert.Empty(t, alice.delivered())
	assert.Equal(t, []string{"message:new"}, bob.delivered())

	rooms.Broadcast("conv-1", "message:new", nil, "")
	assert.Equal(t, []string{"message:new"}, alice.delivered())
}

func TestRoomsLeaveAll(t *testing.T) {
	rooms := chat.NewRooms()
	alice := &sessionStub{id: "s1", userID: "alice"}
	bob := &sessionStub{id: "s2", userID: "bob"}

	rooms.Join("conv-1", alice)
	rooms.Join("conv-2", alice)
	rooms.Join("conv-2", bob)

	rooms.LeaveAll(alice)
	assert.Equal(t, 0, rooms.Size("conv-1"))
	assert.Equal(t, 1, rooms.Size("conv-2"))

	rooms.Broadcast("conv-2", "typing:start", nil, "")
	assert.Empty(t, alice.delivered())
	assert.Equal(t, []string{"typing:start"}, bob.delivered())
}

func TestRoomsDropRoom(t *testing.T) {
	rooms := chat.NewRooms()
	alice := &sessionStub{id: "s1", userID: "alice"}
	rooms.Join("conv-1", alice)

	rooms.DropRoom("conv-1")
	assert.Equal(t, 0, rooms.Size("conv-1"))
	rooms.Broadcast("conv-1", "message:new", nil, "")
	assert.Empty(t, alice.delivered())
}
