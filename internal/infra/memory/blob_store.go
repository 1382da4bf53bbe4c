package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"polymer-learn-service/internal/domain"
)

// BlobStore keeps uploaded images in memory and serves them under baseURL.
type BlobStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{baseURL: baseURL, blobs: make(map[string]blob)}
}

func (b *BlobStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	ref := uuid.NewString()
	b.mu.Lock()
	b.blobs[ref] = blob{data: append([]byte(nil), data...), contentType: contentType}
	b.mu.Unlock()
	return ref, nil
}

func (b *BlobStore) URL(_ context.Context, ref string) (string, bool, error) {
	b.mu.RLock()
	_, ok := b.blobs[ref]
	b.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	return b.baseURL + "/" + ref, true, nil
}

func (b *BlobStore) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[ref]; !ok {
		return domain.ErrBlobNotFound
	}
	delete(b.blobs, ref)
	return nil
}

// Open returns the stored bytes and content type of ref.
func (b *BlobStore) Open(_ context.Context, ref string) ([]byte, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bl, ok := b.blobs[ref]
	if !ok {
		return nil, "", domain.ErrBlobNotFound
	}
	return append([]byte(nil), bl.data...), bl.contentType, nil
}
