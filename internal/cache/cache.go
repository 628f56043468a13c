package cache

import (
	"context"
	"slices"
	"sync"

	"dukaan/backend/internal/domain"
)

// DraftStore is the durable scratch area that holds each terminal's
// uncommitted draft between requests.
type DraftStore interface {
	Get(ctx context.Context, terminalID string) (*domain.Draft, bool, error)
	Save(ctx context.Context, draft domain.Draft) error
	Delete(ctx context.Context, terminalID string) error
}

type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string]domain.Draft
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]domain.Draft)}
}

func (m *MemoryDraftStore) Get(_ context.Context, terminalID string) (*domain.Draft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	draft, ok := m.drafts[terminalID]
	if !ok {
		return nil, false, nil
	}
	dup := cloneDraft(draft)
	return &dup, true, nil
}

func (m *MemoryDraftStore) Save(_ context.Context, draft domain.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drafts[draft.TerminalID] = cloneDraft(draft)
	return nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, terminalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drafts, terminalID)
	return nil
}

func cloneDraft(src domain.Draft) domain.Draft {
	dup := src
	dup.Cart.Lines = slices.Clone(src.Cart.Lines)
	if src.Delivery != nil {
		delivery := *src.Delivery
		dup.Delivery = &delivery
	}
	return dup
}
