package repository

import (
	"context"
	"sync"

	"agent-chat/internal/domain"
)

// MemoryMessageRepository guarda los mensajes en memoria del proceso.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{}
}

func (r *MemoryMessageRepository) Create(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

func (r *MemoryMessageRepository) List(_ context.Context) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}
