package engine

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/pkg/errors"
)

// ArrowSchema is the logical table schema. Every column is nullable.
var ArrowSchema = func() *arrow.Schema {
	fields := make([]arrow.Field, 0, NumFields)
	for _, f := range AllFields() {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if f.Type() == ColumnTypeInt64 {
			typ = arrow.PrimitiveTypes.Int64
		}
		fields = append(fields, arrow.Field{Name: f.String(), Type: typ, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}()

// Table is the whole store materialized in memory as one Arrow record,
// built by concatenating each batch's columns in append order.
type Table struct {
	rec  arrow.Record
	strs [NumFields]*array.String
	ints [NumFields]*array.Int64
}

// LoadTable reads every batch of the store and concatenates the columns.
// Rows rejected by the engine filter are left out. Call Release when done.
func (qe *QueryEngine) LoadTable(ctx context.Context) (*Table, error) {
	mem := memory.NewGoAllocator()
	parts := make([][]arrow.Array, NumFields)
	defer func() {
		for _, col := range parts {
			for _, a := range col {
				a.Release()
			}
		}
	}()

	err := qe.readerFunc(qe.path, func(_ int, batch *ColumnBatch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, f := range AllFields() {
			parts[f] = append(parts[f], toArrow(mem, batch, f, qe.Filter))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", qe.path)
	}

	cols := make([]arrow.Array, NumFields)
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for _, f := range AllFields() {
		if len(parts[f]) == 0 {
			cols[f] = emptyArrow(mem, f)
			continue
		}
		c, err := array.Concatenate(parts[f], mem)
		if err != nil {
			return nil, errors.Wrapf(err, "concatenating column %s", f)
		}
		cols[f] = c
	}

	rows := int64(cols[0].Len())
	return newTable(array.NewRecord(ArrowSchema, cols, rows)), nil
}

func newTable(rec arrow.Record) *Table {
	t := &Table{rec: rec}
	for _, f := range AllFields() {
		switch col := rec.Column(int(f)).(type) {
		case *array.String:
			t.strs[f] = col
		case *array.Int64:
			t.ints[f] = col
		}
	}
	return t
}

// toArrow converts one batch column, keeping only rows selected by where.
func toArrow(mem memory.Allocator, batch *ColumnBatch, f Field, where Predicate) arrow.Array {
	if f.Type() == ColumnTypeInt64 {
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i := 0; i < batch.Len(); i++ {
			if where != nil && !where(batch, i) {
				continue
			}
			if v, ok := batch.Int(f, i); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewInt64Array()
	}

	b := array.NewStringBuilder(mem)
	defer b.Release()
	for i := 0; i < batch.Len(); i++ {
		if where != nil && !where(batch, i) {
			continue
		}
		if v, ok := batch.String(f, i); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
	return b.NewStringArray()
}

func emptyArrow(mem memory.Allocator, f Field) arrow.Array {
	if f.Type() == ColumnTypeInt64 {
		b := array.NewInt64Builder(mem)
		defer b.Release()
		return b.NewInt64Array()
	}
	b := array.NewStringBuilder(mem)
	defer b.Release()
	return b.NewStringArray()
}

// Record exposes the underlying Arrow record. It stays valid until Release.
func (t *Table) Record() arrow.Record {
	return t.rec
}

// Release frees the table memory.
func (t *Table) Release() {
	if t.rec != nil {
		t.rec.Release()
		t.rec = nil
	}
}

func (t *Table) Len() int {
	if t.rec == nil {
		return 0
	}
	return int(t.rec.NumRows())
}

func (t *Table) String(f Field, i int) (string, bool) {
	col := t.strs[f]
	if col == nil || col.IsNull(i) {
		return "", false
	}
	return col.Value(i), true
}

func (t *Table) Int(f Field, i int) (int64, bool) {
	col := t.ints[f]
	if col == nil || col.IsNull(i) {
		return 0, false
	}
	return col.Value(i), true
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount(context.Context) (int64, error) {
	return int64(t.Len()), nil
}

// TopN ranks q.Field over the whole table.
func (t *Table) TopN(_ context.Context, q TopNQuery) ([]KeyCount, error) {
	c := NewCounter()
	countRows(t, 0, q, c)
	return c.Top(q.N), nil
}

// Percentage returns the share of rows matching pred.
func (t *Table) Percentage(_ context.Context, pred Predicate) (Ratio, error) {
	m, total := matchRows(t, nil, pred)
	return Ratio{Matched: m, Total: total}, nil
}

// TopNDetailed ranks q.Outer, then q.Inner within each top outer key.
func (t *Table) TopNDetailed(ctx context.Context, q DetailQuery) ([]DetailGroup, error) {
	outer, err := t.TopN(ctx, TopNQuery{Field: q.Outer, N: q.OuterN, Where: q.Where})
	if err != nil {
		return nil, err
	}
	inner := make(map[string]*Counter, len(outer))
	for _, kc := range outer {
		inner[kc.Key] = NewCounter()
	}
	countDetail(t, 0, q, inner)
	return detailGroups(outer, inner, q.InnerN), nil
}
