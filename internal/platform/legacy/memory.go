package legacy

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and local runs without a
// document database.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]map[string]any // collection -> id -> fields
	// FailSet makes SetFields fail for the named collection.
	FailSet map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]map[string]any)}
}

// Put inserts or replaces a document.
func (m *MemoryStore) Put(collection, id string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
	}
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.docs[collection][id] = cp
}

// Get returns a copy of a document's fields.
func (m *MemoryStore) Get(collection, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][id]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp, true
}

func (m *MemoryStore) FindByFields(_ context.Context, collection string, keys []string, value string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range m.sortedIDs(collection) {
		fields := m.docs[collection][id]
		for _, k := range keys {
			if s, ok := fields[k].(string); ok && s == value {
				out = append(out, m.doc(collection, id))
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) FindAll(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range m.sortedIDs(collection) {
		out = append(out, m.doc(collection, id))
	}
	return out, nil
}

func (m *MemoryStore) SetFields(_ context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSet[collection]; err != nil {
		return err
	}
	d, ok := m.docs[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range fields {
		d[k] = v
	}
	return nil
}

func (m *MemoryStore) sortedIDs(collection string) []string {
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryStore) doc(collection, id string) Document {
	src := m.docs[collection][id]
	cp := make(map[string]any, len(src))
	for k, v := range src {
		cp[k] = v
	}
	return Document{ID: id, Collection: collection, Fields: cp}
}
