package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Compile-time assertion that Memory satisfies the Gateway interface.
var _ Gateway = (*Memory)(nil)

// Memory is an in-process Gateway for tests and local development. Signed
// URLs are synthetic and objects are held in a map.
type Memory struct {
	bucket string

	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	signed  int
}

// NewMemory returns an initialised in-memory gateway.
func NewMemory(bucket string) *Memory {
	return &Memory{
		bucket:  bucket,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// SignUpload implements Gateway.SignUpload.
func (m *Memory) SignUpload(_ context.Context, object, contentType string) (string, error) {
	m.mu.Lock()
	m.signed++
	m.mu.Unlock()

	return fmt.Sprintf("https://storage.invalid/%s/%s?sig=test&ct=%s&exp=%d",
		m.bucket, object, contentType, time.Now().Unix()), nil
}

// Write implements Gateway.Write.
func (m *Memory) Write(_ context.Context, object, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[object] = append([]byte(nil), data...)
	m.types[object] = contentType
	return nil
}

// BlobPath implements Gateway.BlobPath.
func (m *Memory) BlobPath(object string) string {
	return "gs://" + m.bucket + "/" + object
}

// Object returns a stored object's data and content type.
func (m *Memory) Object(object string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[object]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), data...), m.types[object], true
}

// SignedCount returns how many upload URLs have been issued.
func (m *Memory) SignedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signed
}
