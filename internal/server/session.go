package server

import (
	"context"
	"sync"
)

// session records the client ids issued over one websocket connection so
// they can be disconnected when it closes.
type session struct {
	mu      sync.Mutex
	clients map[string]struct{}
}

type sessionKey struct{}

func newSession() *session {
	return &session{clients: make(map[string]struct{})}
}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom returns the session of ctx, or nil for plain HTTP calls.
// A nil session ignores every method.
func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

func (s *session) track(clientID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.clients[clientID] = struct{}{}
	s.mu.Unlock()
}

func (s *session) release(clientID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
}

func (s *session) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clients = make(map[string]struct{})
	return ids
}
