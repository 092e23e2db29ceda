// Package ingest turns access-log text into a batched column store.
package ingest

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
	"github.com/coffersTech/nanolog/logreport/internal/pkg/clf"
)

// Policy decides what happens to lines the parser rejects.
type Policy string

const (
	PolicySkip  Policy = "skip"
	PolicyAbort Policy = "abort"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyAbort:
		return p, nil
	case "":
		return PolicySkip, nil
	}
	return "", errors.Errorf("unknown parse error policy %q (want skip or abort)", s)
}

const (
	// maxLoggedSkips bounds the per-line warnings and the errors kept in Result.
	maxLoggedSkips = 10
	maxLineSize    = 1 << 20
)

// Options configures one ingest run.
type Options struct {
	ChunkSize int
	Policy    Policy
	// Metrics receives the run counters. A private set is created when nil.
	Metrics *Metrics
}

// Result summarizes an ingest run.
type Result struct {
	Lines    int64
	Records  int64
	Skipped  int64
	Batches  int
	Duration time.Duration

	// FirstErrors holds the first rejected lines, in input order.
	FirstErrors []*clf.ParseError
}

// Run reads r line by line, parses every line and appends the records to a
// ChunkedStore flushing through flushFn. Input is consumed sequentially and
// ctx is checked after each flushed batch.
//
// With PolicyAbort the first rejected line ends the run with an error wrapping
// its *clf.ParseError. Batches flushed before that point stay in the store.
func Run(ctx context.Context, r io.Reader, flushFn engine.FlushFunc, opts Options) (Result, error) {
	var res Result
	start := time.Now()

	if opts.Policy == "" {
		opts.Policy = PolicySkip
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}

	store, err := engine.NewChunkedStore(opts.ChunkSize, func(b *engine.ColumnBatch) error {
		if err := flushFn(b); err != nil {
			return err
		}
		m.BatchesFlushed.Inc()
		m.BatchRows.Observe(float64(b.Len()))
		return nil
	})
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		res.Lines++
		m.LinesTotal.Inc()

		rec, err := clf.Parse(scanner.Text())
		if err != nil {
			var perr *clf.ParseError
			if !errors.As(err, &perr) {
				return res, err
			}
			perr.LineNo = int(res.Lines)
			if opts.Policy == PolicyAbort {
				return res, errors.Wrap(perr, "aborting ingest")
			}

			res.Skipped++
			m.ParseErrors.Inc()
			if len(res.FirstErrors) < maxLoggedSkips {
				res.FirstErrors = append(res.FirstErrors, perr)
				log.Warn().
					Int("line", perr.LineNo).
					Str("reason", perr.Reason).
					Msg("skipping unparseable line")
			}
			continue
		}

		res.Records++
		m.RecordsTotal.Inc()
		flushed, err := store.Append(rec)
		if err != nil {
			return res, err
		}
		if flushed {
			res.Batches = store.Batches()
			log.Debug().
				Int("batch", res.Batches-1).
				Int64("lines", res.Lines).
				Msg("batch flushed")
			if err := ctx.Err(); err != nil {
				return res, errors.Wrap(err, "ingest cancelled")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Wrapf(err, "reading input after line %d", res.Lines)
	}

	if err := store.Flush(); err != nil {
		return res, err
	}
	res.Batches = store.Batches()
	res.Duration = time.Since(start)

	if res.Skipped > maxLoggedSkips {
		log.Warn().
			Int64("skipped", res.Skipped).
			Int("logged", maxLoggedSkips).
			Msg("further parse errors not logged")
	}
	return res, nil
}
