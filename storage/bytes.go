package storage

import (
	"bytes"
	"context"
	"io"
)

// ByteClient is a []byte-oriented view of a Storage for callers that hold
// whole objects in memory.
type ByteClient interface {
	Upload(ctx context.Context, path string, data []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

type byteAdapter struct {
	storage Storage
}

// NewByteClient wraps a streaming Storage with []byte convenience methods.
func NewByteClient(s Storage) ByteClient {
	return &byteAdapter{storage: s}
}

func (a *byteAdapter) Upload(ctx context.Context, path string, data []byte) error {
	return a.storage.Upload(ctx, path, bytes.NewReader(data))
}

func (a *byteAdapter) Download(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.storage.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *byteAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return a.storage.Exists(ctx, path)
}

func (a *byteAdapter) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	return a.storage.List(ctx, prefix)
}
