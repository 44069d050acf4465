package artifact

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps artifacts in process memory. Used when no file or Redis backend is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, name, contentType string, data []byte) (*Artifact, error) {
	a := newArtifact(name, contentType, int64(len(data)))
	a.Location = "memory:" + a.Key
	m.mu.Lock()
	m.blobs[a.Key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return a, nil
}

func (m *MemoryStore) Open(ctx context.Context, a *Artifact) (io.ReadCloser, error) {
	if a == nil {
		return nil, ErrNilArtifact
	}
	m.mu.RLock()
	b, ok := m.blobs[a.Key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemoryStore) Release(ctx context.Context, a *Artifact) error {
	if a == nil {
		return nil
	}
	m.mu.Lock()
	delete(m.blobs, a.Key)
	m.mu.Unlock()
	return nil
}

// Len reports how many artifacts are currently held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
