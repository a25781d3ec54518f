package gateway

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/JalenduP/Chess-it/internal/auth"
	"github.com/JalenduP/Chess-it/pkg/gamedto"
)

const sendBuffer = 32

// session is one authenticated websocket connection. Outbound frames go
// through a buffered channel and a single writer goroutine; a client that
// cannot keep up is disconnected rather than allowed to stall broadcasts.
type session struct {
	conn     *websocket.Conn
	identity auth.Identity

	out  chan gamedto.Envelope
	once sync.Once

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newSession(conn *websocket.Conn, id auth.Identity) *session {
	return &session{
		conn:     conn,
		identity: id,
		out:      make(chan gamedto.Envelope, sendBuffer),
		rooms:    make(map[string]struct{}),
	}
}

func (s *session) track(gameID string) {
	s.mu.Lock()
	s.rooms[gameID] = struct{}{}
	s.mu.Unlock()
}

func (s *session) roomIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

func (s *session) inRoom(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[gameID]
	return ok
}

// send enqueues a frame without blocking. A full buffer closes the
// connection; the client can reconnect and re-sync from gameState.
func (s *session) send(env gamedto.Envelope) {
	select {
	case s.out <- env:
	default:
		s.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (s *session) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.out:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, s.conn, env)
			cancel()
			if err != nil {
				s.close(websocket.StatusGoingAway, "write failure")
				return
			}
		}
	}
}

func (s *session) close(code websocket.StatusCode, reason string) {
	s.once.Do(func() {
		_ = s.conn.Close(code, reason)
	})
}
