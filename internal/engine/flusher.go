package engine

import (
	"github.com/coffersTech/nanolog/logreport/internal/model"
)

// FlushFunc persists one finalized batch.
// This allows the engine package to not depend on storage package directly.
type FlushFunc func(batch *ColumnBatch) error

// FlushRecords columnizes records and passes the batch to writerFn.
// Nothing is written when conversion fails.
func FlushRecords(records []model.Record, writerFn FlushFunc) (*ColumnBatch, error) {
	batch, err := BuildBatch(records)
	if err != nil {
		return nil, err
	}
	if err := writerFn(batch); err != nil {
		return nil, err
	}
	return batch, nil
}
