// Package storage puts listing images and their thumbnails into object
// storage.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Storage is the object store used for listing images.
type Storage interface {
	// Upload stores data under key and returns the object's canonical URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the canonical URL of key without contacting the store.
	URL(key string) string
}

var ErrEmptyKey = errors.New("storage key is required")

// MemoryStorage keeps objects in process memory. It backs local development
// when no bucket is configured and the service tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// Object is one stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost/objects"
	}
	return &MemoryStorage{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (m *MemoryStorage) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return m.URL(key), nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) URL(key string) string { return m.baseURL + "/" + key }

// Get returns a stored object.
func (m *MemoryStorage) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Len returns how many objects are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
