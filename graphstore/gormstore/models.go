package gormstore

import (
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/task"
)

type taskRow struct {
	Key         string                  `gorm:"primaryKey"`
	PipelineKey string                  `gorm:"index;not null"`
	Name        string                  `gorm:"not null"`
	TaskType    string                  `gorm:"not null"`
	Step        int                     `gorm:"not null"`
	Attributes  map[string]task.Binding `gorm:"serializer:json;type:text"`
}

func (taskRow) TableName() string { return "task" }

type edgeRow struct {
	Key         string `gorm:"primaryKey"`
	From        string `gorm:"column:from_key;not null"`
	To          string `gorm:"column:to_key;not null"`
	PipelineKey string `gorm:"index;not null"`
}

func (edgeRow) TableName() string { return "next" }

type pipelineRow struct {
	Key         string                  `gorm:"primaryKey"`
	Name        string                  `gorm:"not null"`
	PipelineKey string                  `gorm:"index;not null"`
	Variables   map[string]string       `gorm:"serializer:json;type:text"`
	Tasks       []graphstore.TaskRecord `gorm:"serializer:json;type:text"`
}

func (pipelineRow) TableName() string { return "pipeline" }

// Models returns the tables for auto-migration.
func Models() []interface{} {
	return []interface{}{&taskRow{}, &edgeRow{}, &pipelineRow{}}
}

func taskToRow(r graphstore.TaskRecord) taskRow { return taskRow(r) }
func taskFromRow(r taskRow) graphstore.TaskRecord { return graphstore.TaskRecord(r) }

func edgeToRow(r graphstore.EdgeRecord) edgeRow { return edgeRow(r) }
func edgeFromRow(r edgeRow) graphstore.EdgeRecord { return graphstore.EdgeRecord(r) }

func pipelineToRow(r graphstore.PipelineRecord) pipelineRow { return pipelineRow(r) }
func pipelineFromRow(r pipelineRow) graphstore.PipelineRecord { return graphstore.PipelineRecord(r) }
