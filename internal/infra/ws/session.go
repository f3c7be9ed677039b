package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"toytrade/internal/chat"
)

// Conn is the slice of a websocket connection the session needs. Narrowing it
// lets tests drive sessions without a network socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Envelope frames every message on the realtime channel, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const sendBuffer = 64

// Session is one authenticated client connection.
type Session struct {
	id     string
	userID string
	conn   Conn

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(userID string, conn Conn) *Session {
	return &Session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Deliver enqueues an event for the client without blocking. A full buffer
// drops the event; the client reconciles from history on reconnect.
func (s *Session) Deliver(event string, data any) {
	payload, err := json.Marshal(outboundEnvelope{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case <-s.done:
	case s.send <- payload:
	default:
	}
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// close shuts the transport down; safe to call from any disconnect path.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

var _ chat.Session = (*Session)(nil)
