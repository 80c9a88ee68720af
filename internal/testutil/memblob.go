package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/voidvault/voidvault-server/internal/model"
)

// MemBlobs is an in-memory model.Storage used by service and handler
// tests.
type MemBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ model.Storage = (*MemBlobs)(nil)

func NewMemBlobs() *MemBlobs {
	return &MemBlobs{objects: make(map[string][]byte)}
}

func (b *MemBlobs) Upload(_ context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *MemBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemBlobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}
