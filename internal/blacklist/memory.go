package blacklist

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store. Entries live until process restart:
// Cleanup performs no eviction, so the set grows for the lifetime of the
// process. Suitable for single-instance deployments; use Redis otherwise.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{tokens: map[string]struct{}{}}
}

func (m *Memory) Add(_ context.Context, token string, _ time.Duration) error {
	m.mu.Lock()
	m.tokens[token] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Contains(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	_, ok := m.tokens[token]
	m.mu.RUnlock()
	return ok, nil
}

// Cleanup is a no-op: the in-memory set keeps no expiry metadata to evict by.
func (m *Memory) Cleanup(_ context.Context) error {
	return nil
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
