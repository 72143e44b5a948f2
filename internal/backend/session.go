package backend

import (
	"sync"

	"github.com/klemjul/chatai/internal/llm"
)

// sessionStore keeps the conversation buffer of each session id in memory.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string][]llm.Message
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string][]llm.Message)}
}

func (s *sessionStore) history(sessionID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]llm.Message(nil), s.sessions[sessionID]...)
}

func (s *sessionStore) append(sessionID string, messages ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
}
