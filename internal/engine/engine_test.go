package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanolog/logreport/internal/model"
	"github.com/coffersTech/nanolog/logreport/internal/pkg/clf"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

var sampleLines = []string{
	`10.0.32.179 - - [31/Oct/1994:14:03:20 +0000] "GET /system/get.php?token=l_CHgTmLxX HTTP/1.0" 404 484`,
	`10.0.146.5 - - [31/Oct/1994:14:03:21 +0000] "POST /kernel/list.php HTTP/1.1" 204 1851`,
	`10.0.136.237 - - [31/Oct/1994:14:03:16 +0000] "HEAD /system/request.php HTTP/1.0" 403 1093`,
}

var extraLines = []string{
	`10.0.146.5 - - [31/Oct/1994:14:03:22 +0000] "GET /system/get.php?token=zz HTTP/1.1" 200 10`,
	`10.0.32.179 - bob [31/Oct/1994:14:03:23 +0000] "GET" - -`,
}

func parseAll(t *testing.T, lines []string) []model.Record {
	t.Helper()
	recs := make([]model.Record, 0, len(lines))
	for _, line := range lines {
		rec, err := clf.Parse(line)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return recs
}

// memStore runs records through a ChunkedStore and returns the flushed
// batches plus a reader over them.
func memStore(t *testing.T, chunkSize int, recs []model.Record) ([]*ColumnBatch, BatchReaderFunc) {
	t.Helper()
	var batches []*ColumnBatch
	store, err := NewChunkedStore(chunkSize, func(b *ColumnBatch) error {
		batches = append(batches, b)
		return nil
	})
	require.NoError(t, err)
	for _, rec := range recs {
		_, err := store.Append(rec)
		require.NoError(t, err)
	}
	require.NoError(t, store.Flush())

	reader := func(_ string, visit func(int, *ColumnBatch) error) error {
		for i, b := range batches {
			if err := visit(i, b); err != nil {
				return err
			}
		}
		return nil
	}
	return batches, reader
}

func TestChunkBoundaries(t *testing.T) {
	recs := parseAll(t, append(append([]string{}, sampleLines...), extraLines...))

	var lengths []int
	store, err := NewChunkedStore(2, func(b *ColumnBatch) error {
		lengths = append(lengths, b.Len())
		return nil
	})
	require.NoError(t, err)

	for i, rec := range recs {
		flushed, err := store.Append(rec)
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, flushed, "record %d", i)
		assert.LessOrEqual(t, store.Pending(), 2)
	}
	assert.Equal(t, 1, store.Pending())
	require.NoError(t, store.Flush())
	require.NoError(t, store.Flush())

	assert.Equal(t, []int{2, 2, 1}, lengths)
	assert.Equal(t, 3, store.Batches())
	assert.Equal(t, int64(5), store.Rows())
	assert.Equal(t, 0, store.Pending())
}

func TestChunkedStoreRejectsBadSize(t *testing.T) {
	_, err := NewChunkedStore(0, func(*ColumnBatch) error { return nil })
	assert.Error(t, err)
	_, err = NewChunkedStore(10, nil)
	assert.Error(t, err)
}

func TestBuildBatchConversions(t *testing.T) {
	recs := parseAll(t, append(append([]string{}, sampleLines...), extraLines...))
	batch, err := BuildBatch(recs)
	require.NoError(t, err)
	require.Equal(t, 5, batch.Len())

	for _, f := range AllFields() {
		assert.Equal(t, 5, batch.Column(f).Size(), f.String())
	}

	status, ok := batch.Int(FieldStatus, 0)
	assert.True(t, ok)
	assert.Equal(t, int64(404), status)

	_, ok = batch.Int(FieldStatus, 4)
	assert.False(t, ok, "'-' status must be null, not zero")
	_, ok = batch.Int(FieldSize, 4)
	assert.False(t, ok)
	_, ok = batch.String(FieldResource, 4)
	assert.False(t, ok, "absent resource must be null")

	user, ok := batch.String(FieldUserID, 4)
	assert.True(t, ok)
	assert.Equal(t, "bob", user)
	assert.Equal(t, 1, batch.Column(FieldStatus).NullCount())
}

func TestInvariantViolation(t *testing.T) {
	recs := parseAll(t, sampleLines)
	recs[1].Size = "12x"

	flushed := 0
	store, err := NewChunkedStore(10, func(*ColumnBatch) error {
		flushed++
		return nil
	})
	require.NoError(t, err)
	for _, rec := range recs {
		_, err := store.Append(rec)
		require.NoError(t, err)
	}
	err = store.Flush()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))

	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, FieldSize, ie.Field)
	assert.Equal(t, 1, ie.Row)
	assert.Equal(t, "12x", ie.Value)
	assert.Zero(t, flushed)
}

func TestParseNullableInt(t *testing.T) {
	v, ok, err := ParseNullableInt("484")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(484), v)

	_, ok, err = ParseNullableInt("-")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"", "-1", "1.5", " 1", "99999999999999999999"} {
		_, _, err := ParseNullableInt(bad)
		assert.Error(t, err, bad)
	}
}

func TestCounterTieBreakAndMergeOrder(t *testing.T) {
	a := NewCounter()
	a.Add("b", Position{Batch: 0, Row: 1})
	a.Add("a", Position{Batch: 0, Row: 2})

	b := NewCounter()
	b.Add("c", Position{Batch: 1, Row: 0})
	b.Add("a", Position{Batch: 1, Row: 1})
	b.Add("b", Position{Batch: 1, Row: 2})

	ab := NewCounter()
	ab.Merge(a)
	ab.Merge(b)
	ba := NewCounter()
	ba.Merge(b)
	ba.Merge(a)

	want := []KeyCount{{"b", 2}, {"a", 2}, {"c", 1}}
	assert.Equal(t, want, ab.Top(0))
	assert.Equal(t, want, ba.Top(0))
	assert.Equal(t, want[:2], ab.Top(2))
}

func TestSampleScenario(t *testing.T) {
	batches, reader := memStore(t, DefaultChunkSize, parseAll(t, sampleLines))
	require.Len(t, batches, 1)

	ctx := context.Background()
	qe := NewQueryEngine("mem", reader, 2)

	rows, err := qe.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)

	ips, err := qe.TopN(ctx, TopNQuery{Field: FieldClientIP, N: 10})
	require.NoError(t, err)
	assert.Equal(t, []KeyCount{{"10.0.32.179", 1}, {"10.0.146.5", 1}, {"10.0.136.237", 1}}, ips)

	ok, err := qe.Percentage(ctx, Successful)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ok.Matched)
	assert.Equal(t, "33.33%", ok.Percent())

	bad, err := qe.Percentage(ctx, Unsuccessful)
	require.NoError(t, err)
	assert.Equal(t, "66.67%", bad.Percent())
}

func TestTopNStripsQueryString(t *testing.T) {
	_, reader := memStore(t, 2, parseAll(t, append(append([]string{}, sampleLines...), extraLines...)))
	qe := NewQueryEngine("mem", reader, 1)

	top, err := qe.TopN(context.Background(), TopNQuery{Field: FieldResource, N: 10})
	require.NoError(t, err)
	assert.Equal(t, []KeyCount{
		{"/system/get.php", 2},
		{"/kernel/list.php", 1},
		{"/system/request.php", 1},
	}, top)

	raw, err := qe.TopN(context.Background(), TopNQuery{Field: FieldResource, N: 10, Key: func(s string) string { return s }})
	require.NoError(t, err)
	assert.Len(t, raw, 4)
}

func TestPercentageBoundaries(t *testing.T) {
	var lines []string
	for _, status := range []string{"199", "200", "300", "301", "-"} {
		lines = append(lines, fmt.Sprintf(`10.0.0.1 - - [31/Oct/1994:14:03:20 +0000] "GET / HTTP/1.0" %s 1`, status))
	}
	_, reader := memStore(t, 2, parseAll(t, lines))
	qe := NewQueryEngine("mem", reader, 1)
	ctx := context.Background()

	ok, err := qe.Percentage(ctx, Successful)
	require.NoError(t, err)
	assert.Equal(t, Ratio{Matched: 2, Total: 5}, ok)

	bad, err := qe.Percentage(ctx, Unsuccessful)
	require.NoError(t, err)
	assert.Equal(t, Ratio{Matched: 2, Total: 5}, bad)

	assert.Equal(t, "0.00%", Ratio{}.Percent())
}

// syntheticLines produces a deterministic log with repeated keys and ties.
func syntheticLines(n int) []string {
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}
	paths := []string{"/a", "/b?x=1", "/b?x=2", "/c", "/d?q", "/e"}
	statuses := []string{"200", "404", "500", "301", "-", "204", "300"}
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(`%s - - [31/Oct/1994:14:03:20 +0000] "GET %s HTTP/1.1" %s %d`,
			ips[(i*7)%len(ips)], paths[(i*5+i/3)%len(paths)], statuses[(i*3)%len(statuses)], i)
	}
	return lines
}

func TestMergeMatchesMaterializedTable(t *testing.T) {
	recs := parseAll(t, syntheticLines(257))
	ctx := context.Background()

	filter, err := CompileFilter("NOT status:5xx")
	require.NoError(t, err)

	for _, chunk := range []int{1, 7, 64, 1000} {
		for _, workers := range []int{1, 4} {
			for _, where := range []Predicate{nil, filter} {
				name := fmt.Sprintf("chunk=%d/workers=%d/filtered=%v", chunk, workers, where != nil)
				t.Run(name, func(t *testing.T) {
					_, reader := memStore(t, chunk, recs)
					qe := NewQueryEngine("mem", reader, workers)
					qe.Filter = where

					table, err := qe.LoadTable(ctx)
					require.NoError(t, err)
					defer table.Release()

					for _, f := range []Field{FieldClientIP, FieldResource, FieldStatus} {
						q := TopNQuery{Field: f, N: 4}
						merged, err := qe.TopN(ctx, q)
						require.NoError(t, err)
						full, err := table.TopN(ctx, q)
						require.NoError(t, err)
						assert.Equal(t, full, merged, f.String())
					}

					for _, pred := range []Predicate{Successful, Unsuccessful} {
						merged, err := qe.Percentage(ctx, pred)
						require.NoError(t, err)
						full, err := table.Percentage(ctx, pred)
						require.NoError(t, err)
						assert.Equal(t, full, merged)
					}

					dq := DetailQuery{Outer: FieldClientIP, Inner: FieldResource, OuterN: 3, InnerN: 2}
					merged, err := qe.TopNDetailed(ctx, dq)
					require.NoError(t, err)
					full, err := table.TopNDetailed(ctx, dq)
					require.NoError(t, err)
					assert.Equal(t, full, merged)
				})
			}
		}
	}
}

func TestLoadTablePreservesOrder(t *testing.T) {
	lines := append(append([]string{}, sampleLines...), extraLines...)
	_, reader := memStore(t, 2, parseAll(t, lines))
	qe := NewQueryEngine("mem", reader, 1)

	table, err := qe.LoadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	require.Equal(t, 5, table.Len())
	assert.Equal(t, int64(5), table.Record().NumRows())
	wantIPs := []string{"10.0.32.179", "10.0.146.5", "10.0.136.237", "10.0.146.5", "10.0.32.179"}
	for i, want := range wantIPs {
		got, ok := table.String(FieldClientIP, i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := table.Int(FieldStatus, 4)
	assert.False(t, ok)
}

func TestTopNDetailed(t *testing.T) {
	lines := append(append([]string{}, sampleLines...), extraLines...)
	_, reader := memStore(t, 2, parseAll(t, lines))
	qe := NewQueryEngine("mem", reader, 3)

	groups, err := qe.TopNDetailed(context.Background(), DetailQuery{
		Outer: FieldClientIP, Inner: FieldResource, OuterN: 10, InnerN: 5,
	})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "10.0.32.179", groups[0].Key)
	assert.Equal(t, int64(2), groups[0].Count)
	assert.Equal(t, []KeyCount{{"/system/get.php", 1}}, groups[0].Top)

	assert.Equal(t, "10.0.146.5", groups[1].Key)
	assert.Equal(t, []KeyCount{{"/kernel/list.php", 1}, {"/system/get.php", 1}}, groups[1].Top)

	assert.Equal(t, "10.0.136.237", groups[2].Key)
}

func TestEngineFilter(t *testing.T) {
	lines := append(append([]string{}, sampleLines...), extraLines...)
	_, reader := memStore(t, 2, parseAll(t, lines))
	qe := NewQueryEngine("mem", reader, 2)

	filter, err := CompileFilter("method:GET")
	require.NoError(t, err)
	qe.Filter = filter

	rows, err := qe.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)

	_, err = CompileFilter("agent:curl")
	assert.Error(t, err)

	none, err := CompileFilter("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestScanCancelled(t *testing.T) {
	_, reader := memStore(t, 1, parseAll(t, sampleLines))
	qe := NewQueryEngine("mem", reader, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qe.TopN(ctx, TopNQuery{Field: FieldClientIP, N: 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("ip")
	require.NoError(t, err)
	assert.Equal(t, FieldClientIP, f)

	f, err = ParseField("path")
	require.NoError(t, err)
	assert.Equal(t, FieldResource, f)

	_, err = ParseField("agent")
	assert.Error(t, err)
}
