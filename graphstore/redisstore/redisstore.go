// Package redisstore is a graphstore.Backend over Redis. Each record is a
// JSON document; sorted sets scored by an INCR sequence index every
// collection globally and per pipeline so scans keep insertion order.
//
// Key layout for prefix "runemaster" and the task collection:
//
//	runemaster:task:<key>        JSON document
//	runemaster:task:idx          every key
//	runemaster:task:idx:<p>      keys of pipeline p
//	runemaster:task:seq          insertion counter
package redisstore

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/redis"
)

// Backend stores the graph in Redis.
type Backend struct {
	tasks     *collection[graphstore.TaskRecord]
	edges     *collection[graphstore.EdgeRecord]
	pipelines *collection[graphstore.PipelineRecord]
}

var _ graphstore.Backend = (*Backend)(nil)

// New creates a backend whose keys start with prefix.
func New(client *redis.Client, prefix string) *Backend {
	return &Backend{
		tasks:     newCollection[graphstore.TaskRecord](client, prefix, "task"),
		edges:     newCollection[graphstore.EdgeRecord](client, prefix, "next"),
		pipelines: newCollection[graphstore.PipelineRecord](client, prefix, "pipeline"),
	}
}

func (b *Backend) Tasks() graphstore.Collection[graphstore.TaskRecord]         { return b.tasks }
func (b *Backend) Edges() graphstore.Collection[graphstore.EdgeRecord]         { return b.edges }
func (b *Backend) Pipelines() graphstore.Collection[graphstore.PipelineRecord] { return b.pipelines }

type collection[T graphstore.Record] struct {
	client   *redis.Client
	docs     *redis.TypedStore[T]
	resource string
	base     string
}

func newCollection[T graphstore.Record](client *redis.Client, prefix, name string) *collection[T] {
	base := name
	if prefix != "" {
		base = prefix + ":" + name
	}
	return &collection[T]{
		client:   client,
		docs:     redis.NewTypedStore[T](client, base),
		resource: name,
		base:     base,
	}
}

func (c *collection[T]) indexKey(f graphstore.Filter) string {
	if f.PipelineKey == "" {
		return c.base + ":idx"
	}
	return c.base + ":idx:" + f.PipelineKey
}

func (c *collection[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	rec, err := c.docs.Load(ctx, key)
	if err != nil {
		return zero, redis.FromRedis(err, c.resource, key)
	}
	if rec == nil {
		return zero, errors.NotFound(c.resource, key)
	}
	return *rec, nil
}

func (c *collection[T]) Insert(ctx context.Context, rec T) error {
	ok, err := c.docs.Create(ctx, rec.RecordKey(), &rec)
	if err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	if !ok {
		return errors.AlreadyExists(c.resource).WithDetail("id", rec.RecordKey())
	}
	return c.index(ctx, rec)
}

func (c *collection[T]) Update(ctx context.Context, rec T) error {
	exists, err := c.docs.Exists(ctx, rec.RecordKey())
	if err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	if !exists {
		return errors.NotFound(c.resource, rec.RecordKey())
	}
	if err := c.docs.Save(ctx, rec.RecordKey(), &rec, 0); err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	return nil
}

func (c *collection[T]) Upsert(ctx context.Context, rec T) error {
	if err := c.docs.Save(ctx, rec.RecordKey(), &rec, 0); err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	return c.index(ctx, rec)
}

// index adds rec to both sorted sets, keeping the score of a key that is
// already indexed.
func (c *collection[T]) index(ctx context.Context, rec T) error {
	rdb := c.client.Unwrap()
	seq, err := rdb.Incr(ctx, c.base+":seq").Result()
	if err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	member := goredis.Z{Score: float64(seq), Member: rec.RecordKey()}
	_, err = rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAddNX(ctx, c.indexKey(graphstore.Filter{}), member)
		pipe.ZAddNX(ctx, c.indexKey(graphstore.Filter{PipelineKey: rec.RecordPipeline()}), member)
		return nil
	})
	if err != nil {
		return redis.FromRedis(err, c.resource, rec.RecordKey())
	}
	return nil
}

func (c *collection[T]) Delete(ctx context.Context, key string) error {
	rec, err := c.docs.Load(ctx, key)
	if err != nil {
		return redis.FromRedis(err, c.resource, key)
	}
	if rec == nil {
		return nil
	}
	return c.remove(ctx, []T{*rec})
}

func (c *collection[T]) remove(ctx context.Context, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	rdb := c.client.Unwrap()
	_, err := rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, rec := range recs {
			pipe.Del(ctx, c.docs.Key(rec.RecordKey()))
			pipe.ZRem(ctx, c.indexKey(graphstore.Filter{}), rec.RecordKey())
			pipe.ZRem(ctx, c.indexKey(graphstore.Filter{PipelineKey: rec.RecordPipeline()}), rec.RecordKey())
		}
		return nil
	})
	if err != nil {
		return redis.FromRedis(err, c.resource, "")
	}
	return nil
}

func (c *collection[T]) DeleteWhere(ctx context.Context, f graphstore.Filter) (int, error) {
	recs, err := c.Scan(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := c.remove(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (c *collection[T]) Scan(ctx context.Context, f graphstore.Filter) ([]T, error) {
	keys, err := c.client.Unwrap().ZRange(ctx, c.indexKey(f), 0, -1).Result()
	if err != nil {
		return nil, redis.FromRedis(err, c.resource, "")
	}
	recs, err := c.docs.LoadMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("redisstore: scan %s: %w", c.resource, err)
	}
	return recs, nil
}
