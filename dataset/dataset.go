// Package dataset addresses pipeline datasets inside a blob storage backend.
// Blobs live at <pipeline key>/<task key>/<file name>.
package dataset

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/storage"
)

// Store reads and writes task datasets.
type Store struct {
	backend storage.Storage
	blobs   storage.ByteClient

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wraps a storage backend.
func New(backend storage.Storage) *Store {
	return &Store{
		backend: backend,
		blobs:   storage.NewByteClient(backend),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Path returns the blob path of a dataset.
func Path(pipelineKey, taskKey, fileName string) string {
	return path.Join(pipelineKey, taskKey, fileName)
}

func checkSegment(field, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return errors.InvalidInput(field, fmt.Sprintf("%q is not a valid path segment", v))
	}
	return nil
}

func checkSegments(pipelineKey, taskKey, fileName string) error {
	if err := checkSegment("pipeline", pipelineKey); err != nil {
		return err
	}
	if err := checkSegment("task", taskKey); err != nil {
		return err
	}
	return checkSegment("file_name", fileName)
}

// EnsureNamespace prepares the pipeline namespace. Backends without
// directories need nothing.
func (s *Store) EnsureNamespace(ctx context.Context, pipelineKey string) error {
	if err := checkSegment("pipeline", pipelineKey); err != nil {
		return err
	}
	if ns, ok := s.backend.(storage.Namespacer); ok {
		return ns.EnsureNamespace(ctx, pipelineKey)
	}
	return nil
}

// EnsureTaskNamespace prepares the namespace of one task.
func (s *Store) EnsureTaskNamespace(ctx context.Context, pipelineKey, taskKey string) error {
	if err := checkSegment("pipeline", pipelineKey); err != nil {
		return err
	}
	if err := checkSegment("task", taskKey); err != nil {
		return err
	}
	if ns, ok := s.backend.(storage.Namespacer); ok {
		return ns.EnsureNamespace(ctx, path.Join(pipelineKey, taskKey))
	}
	return nil
}

func (s *Store) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Write stores data as the dataset of a task, replacing any previous blob.
// Writes to the same blob are serialized.
func (s *Store) Write(ctx context.Context, pipelineKey, taskKey, fileName string, data []byte) error {
	if err := checkSegments(pipelineKey, taskKey, fileName); err != nil {
		return err
	}
	p := Path(pipelineKey, taskKey, fileName)
	l := s.lock(p)
	l.Lock()
	defer l.Unlock()

	if err := s.blobs.Upload(ctx, p, data); err != nil {
		return fmt.Errorf("dataset: write %s: %w", p, err)
	}
	return nil
}

// Read returns the dataset of a task.
func (s *Store) Read(ctx context.Context, pipelineKey, taskKey, fileName string) ([]byte, error) {
	if err := checkSegments(pipelineKey, taskKey, fileName); err != nil {
		return nil, err
	}
	p := Path(pipelineKey, taskKey, fileName)
	l := s.lock(p)
	l.Lock()
	defer l.Unlock()

	data, err := s.blobs.Download(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", p, err)
	}
	return data, nil
}

// List returns every blob stored under a pipeline.
func (s *Store) List(ctx context.Context, pipelineKey string) ([]storage.FileInfo, error) {
	if err := checkSegment("pipeline", pipelineKey); err != nil {
		return nil, err
	}
	files, err := s.blobs.List(ctx, pipelineKey+"/")
	if err != nil {
		return nil, fmt.Errorf("dataset: list %s: %w", pipelineKey, err)
	}
	return files, nil
}
