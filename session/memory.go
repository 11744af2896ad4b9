package session

import (
	"context"
	"sync"

	"weatherbot/dialog"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64]dialog.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int64]dialog.Conversation)}
}

func (s *MemoryStore) Save(_ context.Context, userID int64, conversation *dialog.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = clone(conversation)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, userID int64) (*dialog.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversation, ok := s.data[userID]
	if !ok {
		return nil, dialog.ErrNoConversation
	}
	copied := clone(&conversation)
	return &copied, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

func clone(conversation *dialog.Conversation) dialog.Conversation {
	copied := *conversation
	copied.Data = make(map[string]string, len(conversation.Data))
	for k, v := range conversation.Data {
		copied.Data[k] = v
	}
	copied.Options = append([]string(nil), conversation.Options...)
	return copied
}
