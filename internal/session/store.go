package session

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Store keeps the conversation transcript per session id. Appends are
// last-writer-wins across concurrent requests for the same session; callers
// that need stronger ordering must serialize per session themselves.
type Store interface {
	// Append adds one message to the session transcript.
	Append(ctx context.Context, sessionID string, message *schema.Message) error

	// Load returns the full transcript for a session, oldest first.
	// A session that was never written to yields an empty slice.
	Load(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// Clear removes the session transcript.
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore is the in-process Store used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]*schema.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]*schema.Message)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, message *schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], message)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[sessionID]
	out := make([]*schema.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
