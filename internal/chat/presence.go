package chat

import "sync"

// Session is the connection handle the presence registry and rooms track.
// Deliver must never block; slow consumers drop events rather than stalling
// the process.
type Session interface {
	ID() string
	UserID() string
	Deliver(event string, data any)
}

// Presence maps online user ids to connection handles for this process only.
// Cross-process online status is reconciled via backplane broadcasts, never
// via a shared registry. Written only by this process's connection manager.
type Presence struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewPresence() *Presence {
	return &Presence{sessions: make(map[string]Session)}
}

// Add registers the session as the user's live entry. A user holds at most
// one entry per process; a newer connection replaces an older one.
func (p *Presence) Add(s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.UserID()] = s
}

// Remove drops the user's entry if it still belongs to this session and
// reports whether an entry was removed. A replaced session removing itself
// must not knock out its successor.
func (p *Presence) Remove(s Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.sessions[s.UserID()]
	if !ok || current.ID() != s.ID() {
		return false
	}
	delete(p.sessions, s.UserID())
	return true
}

// Online reports whether the user has a live entry on this process.
func (p *Presence) Online(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sessions[userID]
	return ok
}

// Sessions returns a snapshot of all live sessions.
func (p *Presence) Sessions() []Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	return out
}

// OnlineUsers returns the ids of all users connected to this process.
func (p *Presence) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		out = append(out, id)
	}
	return out
}
