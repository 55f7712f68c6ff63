package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]json.RawMessage)}
}

func key(guildID, collection, docID string) string {
	return guildID + "\x00" + collection + "\x00" + docID
}

func prefix(guildID, collection string) string {
	return guildID + "\x00" + collection + "\x00"
}

func (m *Memory) Get(ctx context.Context, guildID, collection, docID string, v any) error {
	m.mu.RLock()
	raw, ok := m.docs[key(guildID, collection, docID)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s/%s", ErrNotFound, guildID, collection, docID)
	}
	return json.Unmarshal(raw, v)
}

func (m *Memory) Put(ctx context.Context, guildID, collection, docID string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}
	m.mu.Lock()
	m.docs[key(guildID, collection, docID)] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, guildID, collection, docID string) error {
	m.mu.Lock()
	delete(m.docs, key(guildID, collection, docID))
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, guildID, collection string) (map[string]json.RawMessage, error) {
	p := prefix(guildID, collection)
	out := make(map[string]json.RawMessage)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, raw := range m.docs {
		if len(k) > len(p) && k[:len(p)] == p {
			out[k[len(p):]] = raw
		}
	}
	return out, nil
}
