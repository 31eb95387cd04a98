package blob

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ourchat/ourchat/internal/common"
)

// Memory is an in-memory blob Store for tests and the standalone demo
// profile. DownloadURL returns a stable memory:// URL for stored paths.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Upload(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("blob: upload %q: %w", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = data
	return nil
}

func (m *Memory) DownloadURL(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[path]; !ok {
		return "", fmt.Errorf("blob: %q: %w", path, common.ErrNotFound)
	}
	return "memory://" + path, nil
}

// Bytes returns the stored blob, for test assertions.
func (m *Memory) Bytes(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[path]
	return b, ok
}
