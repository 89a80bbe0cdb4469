package relay

import "sync"

// Hub indexes the relay sessions by guild. A guild keeps its last session
// after it ends so the closing notice can still be read.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Open starts a fresh session for guildID, replacing a finished one.
func (h *Hub) Open(guildID, authorID string) *Session {
	s := newSession(guildID, authorID)
	h.mu.Lock()
	h.sessions[guildID] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) Get(guildID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[guildID]
	return s, ok
}
