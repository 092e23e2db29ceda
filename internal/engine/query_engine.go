package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchReaderFunc streams the batches of a store in append order.
// seq is the zero-based batch index. Returning an error from visit stops the read.
type BatchReaderFunc func(path string, visit func(seq int, batch *ColumnBatch) error) error

// QueryEngine answers aggregate queries by scanning a persisted store one
// batch at a time. Partial results are computed per batch, possibly in
// parallel, and merged, so memory use is bounded by the number of distinct
// keys rather than the number of rows.
type QueryEngine struct {
	path       string
	readerFunc BatchReaderFunc

	// Workers bounds the number of batches aggregated concurrently.
	Workers int
	// Filter restricts every query to matching rows.
	Filter Predicate
}

// NewQueryEngine creates a QueryEngine over the store at path.
func NewQueryEngine(path string, readerFunc BatchReaderFunc, workers int) *QueryEngine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &QueryEngine{
		path:       path,
		readerFunc: readerFunc,
		Workers:    workers,
	}
}

// scan runs work for every batch. Batches are read sequentially and handed to
// at most Workers goroutines; cancellation is observed between batches.
func (qe *QueryEngine) scan(ctx context.Context, work func(seq int, batch *ColumnBatch)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(qe.Workers)

	readErr := qe.readerFunc(qe.path, func(seq int, batch *ColumnBatch) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			work(seq, batch)
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if readErr != nil {
		return errors.Wrapf(readErr, "scanning %s", qe.path)
	}
	return ctx.Err()
}

// RowCount returns the number of rows selected by the engine filter.
func (qe *QueryEngine) RowCount(ctx context.Context) (int64, error) {
	r, err := qe.Percentage(ctx, nil)
	return r.Total, err
}

// TopN returns the q.N most frequent keys of q.Field.
func (qe *QueryEngine) TopN(ctx context.Context, q TopNQuery) ([]KeyCount, error) {
	q.Where = And(qe.Filter, q.Where)

	var mu sync.Mutex
	total := NewCounter()
	err := qe.scan(ctx, func(seq int, batch *ColumnBatch) {
		part := NewCounter()
		countRows(batch, seq, q, part)

		mu.Lock()
		total.Merge(part)
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("field", q.Field.String()).
		Int("distinct", total.Len()).
		Msg("top-n computed")
	return total.Top(q.N), nil
}

// Percentage returns the share of rows matching pred. A nil pred matches all rows.
func (qe *QueryEngine) Percentage(ctx context.Context, pred Predicate) (Ratio, error) {
	var matched, total atomic.Int64
	err := qe.scan(ctx, func(_ int, batch *ColumnBatch) {
		m, t := matchRows(batch, qe.Filter, pred)
		matched.Add(m)
		total.Add(t)
	})
	if err != nil {
		return Ratio{}, err
	}
	return Ratio{Matched: matched.Load(), Total: total.Load()}, nil
}

// TopNDetailed ranks q.Outer and, for each of its top keys, ranks q.Inner
// among the rows carrying that key. It makes two passes over the store.
func (qe *QueryEngine) TopNDetailed(ctx context.Context, q DetailQuery) ([]DetailGroup, error) {
	outer, err := qe.TopN(ctx, TopNQuery{Field: q.Outer, N: q.OuterN, Where: q.Where})
	if err != nil {
		return nil, err
	}

	q.Where = And(qe.Filter, q.Where)
	inner := make(map[string]*Counter, len(outer))
	for _, kc := range outer {
		inner[kc.Key] = NewCounter()
	}

	var mu sync.Mutex
	err = qe.scan(ctx, func(seq int, batch *ColumnBatch) {
		part := make(map[string]*Counter, len(outer))
		for _, kc := range outer {
			part[kc.Key] = NewCounter()
		}
		countDetail(batch, seq, q, part)

		mu.Lock()
		for k, c := range part {
			inner[k].Merge(c)
		}
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return detailGroups(outer, inner, q.InnerN), nil
}
