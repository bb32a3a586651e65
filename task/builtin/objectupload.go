package builtin

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/storage"
	"github.com/kbukum/runemaster/task"
)

var objectUploadSchema = task.Schema{
	{ID: "prefix", Name: "Key Prefix", Type: task.FieldInput, Optional: true},
}

// ObjectUploadTask writes every upstream dataset to the configured object
// storage under prefix/<file name>.
type ObjectUploadTask struct {
	mu    sync.RWMutex
	store storage.Storage
	log   *logger.Logger
}

var _ task.Sink = (*ObjectUploadTask)(nil)

// NewObjectUploadTask creates an instance bound to store.
func NewObjectUploadTask(store storage.Storage) *ObjectUploadTask {
	o := &ObjectUploadTask{}
	o.configure(store, logger.Nop())
	return o
}

func (o *ObjectUploadTask) Tag() string         { return TagObjectUpload }
func (o *ObjectUploadTask) Kind() task.Kind     { return task.KindSink }
func (o *ObjectUploadTask) Schema() task.Schema { return objectUploadSchema }

func (o *ObjectUploadTask) configure(store storage.Storage, log *logger.Logger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store = store
	o.log = log.WithComponent("object-upload")
}

// Push uploads each dataset.
func (o *ObjectUploadTask) Push(ctx context.Context, t *task.Task, inputs []task.Dataset) error {
	o.mu.RLock()
	store, log := o.store, o.log
	o.mu.RUnlock()

	if store == nil {
		return errors.ServiceUnavailable("object storage")
	}
	if log == nil {
		log = logger.Nop()
	}

	prefix, _ := t.Value("prefix")
	for _, in := range inputs {
		key := path.Join(prefix, in.FileName)
		if err := store.Upload(ctx, key, bytes.NewReader(in.Data)); err != nil {
			return fmt.Errorf("object upload %s: %w", key, err)
		}
		log.Info("dataset uploaded", logger.Fields("key", key, "bytes", len(in.Data)))
	}
	return nil
}
