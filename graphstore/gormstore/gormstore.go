// Package gormstore is a graphstore.Backend over GORM: one table per
// collection, JSON columns for maps and lists.
package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/runemaster/database"
	"github.com/kbukum/runemaster/graphstore"
)

// Backend stores the graph in three tables: task, next and pipeline.
type Backend struct {
	tasks     *collection[graphstore.TaskRecord, taskRow]
	edges     *collection[graphstore.EdgeRecord, edgeRow]
	pipelines *collection[graphstore.PipelineRecord, pipelineRow]
}

var _ graphstore.Backend = (*Backend)(nil)

// New migrates the tables and returns a backend over db.
func New(db *database.DB) (*Backend, error) {
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("gormstore: %w", err)
	}
	return &Backend{
		tasks:     &collection[graphstore.TaskRecord, taskRow]{db: db, resource: "task", toRow: taskToRow, fromRow: taskFromRow},
		edges:     &collection[graphstore.EdgeRecord, edgeRow]{db: db, resource: "edge", toRow: edgeToRow, fromRow: edgeFromRow},
		pipelines: &collection[graphstore.PipelineRecord, pipelineRow]{db: db, resource: "pipeline", toRow: pipelineToRow, fromRow: pipelineFromRow},
	}, nil
}

func (b *Backend) Tasks() graphstore.Collection[graphstore.TaskRecord]         { return b.tasks }
func (b *Backend) Edges() graphstore.Collection[graphstore.EdgeRecord]         { return b.edges }
func (b *Backend) Pipelines() graphstore.Collection[graphstore.PipelineRecord] { return b.pipelines }

// collection maps records of T to rows of M. Scans order by rowid, which
// keeps first-insertion order because upserts update in place.
type collection[T graphstore.Record, M any] struct {
	db       *database.DB
	resource string
	toRow    func(T) M
	fromRow  func(M) T
}

func (c *collection[T, M]) Get(ctx context.Context, key string) (T, error) {
	var row M
	if err := c.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error; err != nil {
		var zero T
		return zero, database.FromDatabase(err, c.resource, key)
	}
	return c.fromRow(row), nil
}

func (c *collection[T, M]) Insert(ctx context.Context, rec T) error {
	row := c.toRow(rec)
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return database.FromDatabase(err, c.resource, rec.RecordKey())
	}
	return nil
}

func (c *collection[T, M]) Update(ctx context.Context, rec T) error {
	row := c.toRow(rec)
	res := c.db.WithContext(ctx).Model(&row).Where("key = ?", rec.RecordKey()).Select("*").Updates(&row)
	if res.Error != nil {
		return database.FromDatabase(res.Error, c.resource, rec.RecordKey())
	}
	if res.RowsAffected == 0 {
		return database.FromDatabase(gorm.ErrRecordNotFound, c.resource, rec.RecordKey())
	}
	return nil
}

func (c *collection[T, M]) Upsert(ctx context.Context, rec T) error {
	row := c.toRow(rec)
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return database.FromDatabase(err, c.resource, rec.RecordKey())
	}
	return nil
}

func (c *collection[T, M]) Delete(ctx context.Context, key string) error {
	if err := c.db.WithContext(ctx).Where("key = ?", key).Delete(new(M)).Error; err != nil {
		return database.FromDatabase(err, c.resource, key)
	}
	return nil
}

func (c *collection[T, M]) DeleteWhere(ctx context.Context, f graphstore.Filter) (int, error) {
	q := c.db.WithContext(ctx)
	if f.PipelineKey != "" {
		q = q.Where("pipeline_key = ?", f.PipelineKey)
	} else {
		q = q.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	res := q.Delete(new(M))
	if res.Error != nil {
		return 0, database.FromDatabase(res.Error, c.resource, "")
	}
	return int(res.RowsAffected), nil
}

func (c *collection[T, M]) Scan(ctx context.Context, f graphstore.Filter) ([]T, error) {
	q := c.db.WithContext(ctx).Order("rowid")
	if f.PipelineKey != "" {
		q = q.Where("pipeline_key = ?", f.PipelineKey)
	}
	var rows []M
	if err := q.Find(&rows).Error; err != nil {
		return nil, database.FromDatabase(err, c.resource, "")
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = c.fromRow(r)
	}
	return out, nil
}
