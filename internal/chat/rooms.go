package chat

import "sync"

// Rooms tracks which live sessions are subscribed to which conversation on
// this process. A room is purely local; cross-process membership never
// exists, the backplane replays events into every process's own rooms.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]Session // conversation id -> session id -> session
}

func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[string]Session)}
}

// Join subscribes the session to a conversation's room. Idempotent.
func (r *Rooms) Join(conversationID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.members[conversationID]
	if !ok {
		room = make(map[string]Session)
		r.members[conversationID] = room
	}
	room[s.ID()] = s
}

// Leave removes the session from one room.
func (r *Rooms) Leave(conversationID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(conversationID, s.ID())
}

// LeaveAll removes the session from every room it joined.
func (r *Rooms) LeaveAll(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conversationID := range r.members {
		r.drop(conversationID, s.ID())
	}
}

// DropRoom forgets a room entirely, e.g. after conversation deletion.
func (r *Rooms) DropRoom(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, conversationID)
}

// Broadcast delivers an event to every session in the room. excludeUserID
// skips all of that user's sessions ("" excludes nobody).
func (r *Rooms) Broadcast(conversationID, event string, data any, excludeUserID string) {
	r.mu.RLock()
	room := r.members[conversationID]
	snapshot := make([]Session, 0, len(room))
	for _, s := range room {
		if excludeUserID != "" && s.UserID() == excludeUserID {
			continue
		}
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		s.Deliver(event, data)
	}
}

// Size reports how many sessions a room holds.
func (r *Rooms) Size(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[conversationID])
}

func (r *Rooms) drop(conversationID, sessionID string) {
	room, ok := r.members[conversationID]
	if !ok {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.members, conversationID)
	}
}
