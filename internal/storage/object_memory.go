package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryObjectStore keeps blobs in process memory. It backs the memory
// object driver and the test suites.
type MemoryObjectStore struct {
	mu             sync.RWMutex
	objects        map[string][]byte
	contentTypes   map[string]string
	publicEndpoint string
}

// NewMemoryObjectStore returns an empty in-memory object store. The public
// endpoint, when set, is used to shape the public links of uploaded blobs
// the same way the S3 store does.
func NewMemoryObjectStore(publicEndpoint string) *MemoryObjectStore {
	return &MemoryObjectStore{
		objects:        make(map[string][]byte),
		contentTypes:   make(map[string]string),
		publicEndpoint: strings.TrimRight(strings.TrimSpace(publicEndpoint), "/"),
	}
}

func (m *MemoryObjectStore) Upload(_ context.Context, key, contentType string, body []byte) (ObjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.contentTypes[key] = contentType
	ref := ObjectRef{Key: key}
	if m.publicEndpoint != "" {
		ref.URL = m.publicEndpoint + "/" + strings.TrimLeft(key, "/")
	}
	return ref, nil
}

func (m *MemoryObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), body...), nil
}

func (m *MemoryObjectStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.contentTypes, key)
	return nil
}

func (m *MemoryObjectStore) EnsureBucket(context.Context) error { return nil }

// ContentType reports the content type recorded for a stored key; tests use
// it to assert blob metadata.
func (m *MemoryObjectStore) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contentType, ok := m.contentTypes[key]
	return contentType, ok
}

// Len reports the number of stored blobs.
func (m *MemoryObjectStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
