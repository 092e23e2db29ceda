package engine

import (
	"github.com/pkg/errors"

	"github.com/coffersTech/nanolog/logreport/internal/model"
)

// DefaultChunkSize is the number of records per batch when none is configured.
const DefaultChunkSize = 2000

// ChunkedStore buffers records and hands a finalized ColumnBatch to its
// FlushFunc each time the buffer reaches the chunk size. At most one chunk of
// records is held in memory.
type ChunkedStore struct {
	chunkSize int
	buf       []model.Record
	flushFn   FlushFunc

	batches int
	rows    int64
}

// NewChunkedStore creates a store writing batches of chunkSize records.
func NewChunkedStore(chunkSize int, flushFn FlushFunc) (*ChunkedStore, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if flushFn == nil {
		return nil, errors.New("flush function is required")
	}
	return &ChunkedStore{
		chunkSize: chunkSize,
		buf:       make([]model.Record, 0, chunkSize),
		flushFn:   flushFn,
	}, nil
}

// Append buffers a record. It reports whether the record completed a batch
// that was flushed.
func (s *ChunkedStore) Append(rec model.Record) (bool, error) {
	s.buf = append(s.buf, rec)
	if len(s.buf) < s.chunkSize {
		return false, nil
	}
	if err := s.flush(); err != nil {
		return false, err
	}
	return true, nil
}

// Flush writes the remaining records as a final, possibly short, batch.
// Calling it with an empty buffer is a no-op.
func (s *ChunkedStore) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	return s.flush()
}

func (s *ChunkedStore) flush() error {
	batch, err := FlushRecords(s.buf, s.flushFn)
	if err != nil {
		return errors.Wrapf(err, "flushing batch %d", s.batches)
	}
	s.batches++
	s.rows += int64(batch.Len())
	s.buf = s.buf[:0]
	return nil
}

// ChunkSize returns the configured batch length.
func (s *ChunkedStore) ChunkSize() int {
	return s.chunkSize
}

// Pending returns the number of buffered, unflushed records.
func (s *ChunkedStore) Pending() int {
	return len(s.buf)
}

// Batches returns the number of batches flushed so far.
func (s *ChunkedStore) Batches() int {
	return s.batches
}

// Rows returns the number of records flushed so far.
func (s *ChunkedStore) Rows() int64 {
	return s.rows
}
