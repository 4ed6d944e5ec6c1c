package secretstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryClient is an in-process Client backend, used in tests and local
// development in place of the S3-backed implementation.
type MemoryClient struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{data: make(map[string][]byte)}
}

func (c *MemoryClient) Store(ctx context.Context, kind, name string, payload []byte) (string, error) {
	id := NewReferenceID()
	ref := fmt.Sprintf("mem://secrets/%s/%s/%s", kind, name, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[ref] = append([]byte(nil), payload...)
	return ref, nil
}

func (c *MemoryClient) Fetch(ctx context.Context, reference string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.data[reference]
	if !ok {
		return nil, &Error{Kind: ErrSecretStoreError, Msg: fmt.Sprintf("no payload for reference %q", reference)}
	}
	return append([]byte(nil), payload...), nil
}
