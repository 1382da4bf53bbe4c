package memory

import (
	"context"
	"errors"
	"testing"

	"polymer-learn-service/internal/domain"
)

func TestBlobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	blobs := NewBlobStore("/blobs")

	ref, err := blobs.Put(ctx, []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	url, ok, err := blobs.URL(ctx, ref)
	if err != nil || !ok || url != "/blobs/"+ref {
		t.Fatalf("unexpected url %q ok=%v err=%v", url, ok, err)
	}
	data, contentType, err := blobs.Open(ctx, ref)
	if err != nil || string(data) != "png" || contentType != "image/png" {
		t.Fatalf("unexpected blob %q %q %v", data, contentType, err)
	}

	if err := blobs.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := blobs.URL(ctx, ref); ok {
		t.Fatalf("expected blob gone")
	}
	if err := blobs.Delete(ctx, ref); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Fatalf("expected blob not found, got %v", err)
	}
}
