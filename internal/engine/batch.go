package engine

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/coffersTech/nanolog/logreport/internal/model"
)

// ColumnBatch is an immutable group of equal-length typed columns, one per Field.
type ColumnBatch struct {
	columns [NumFields]Column
	rows    int
}

// AssembleBatch wraps decoded columns after checking their types and lengths.
func AssembleBatch(columns [NumFields]Column) (*ColumnBatch, error) {
	rows := -1
	for _, f := range AllFields() {
		col := columns[f]
		if col == nil {
			return nil, errors.Errorf("missing column %s", f)
		}
		if col.Type() != f.Type() {
			return nil, errors.Errorf("column %s has type %s, want %s", f, col.Type(), f.Type())
		}
		if rows == -1 {
			rows = col.Size()
		} else if col.Size() != rows {
			return nil, errors.Errorf("column length mismatch: %s has %d rows, want %d", f, col.Size(), rows)
		}
	}
	return &ColumnBatch{columns: columns, rows: rows}, nil
}

// BuildBatch columnizes records: the identity field is dropped, empty
// request fields become nulls and status/size are converted to int64 or null.
// A numeric token that is neither digits nor "-" yields an *InvariantError.
func BuildBatch(records []model.Record) (*ColumnBatch, error) {
	n := len(records)
	var columns [NumFields]Column
	for _, f := range AllFields() {
		if f.Type() == ColumnTypeInt64 {
			columns[f] = NewInt64Column(n)
		} else {
			columns[f] = NewBytesColumn(n*16, n)
		}
	}

	for i, rec := range records {
		appendString(columns[FieldClientIP], rec.ClientIP)
		appendString(columns[FieldUserID], rec.UserID)
		appendString(columns[FieldTimestamp], rec.Timestamp)
		appendString(columns[FieldMethod], rec.Method)
		appendString(columns[FieldResource], rec.Resource)
		appendString(columns[FieldProtocol], rec.Protocol)
		if err := appendNumeric(columns[FieldStatus], FieldStatus, i, rec.Status); err != nil {
			return nil, err
		}
		if err := appendNumeric(columns[FieldSize], FieldSize, i, rec.Size); err != nil {
			return nil, err
		}
	}
	return &ColumnBatch{columns: columns, rows: n}, nil
}

func appendString(col Column, v string) {
	c := col.(*BytesColumn)
	if v == "" {
		c.AppendNull()
		return
	}
	c.AppendString(v)
}

func appendNumeric(col Column, f Field, row int, token string) error {
	c := col.(*Int64Column)
	v, ok, err := ParseNullableInt(token)
	if err != nil {
		return &InvariantError{Field: f, Row: row, Value: token}
	}
	if !ok {
		c.AppendNull()
		return nil
	}
	c.Append(v)
	return nil
}

// ParseNullableInt converts "-" to null and a digit string to its value.
// Anything else is an error.
func ParseNullableInt(token string) (int64, bool, error) {
	if token == model.NullToken {
		return 0, false, nil
	}
	if token == "" {
		return 0, false, errors.New("empty numeric token")
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, false, errors.Errorf("non-digit in %q", token)
		}
	}
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "numeric token %q", token)
	}
	return v, true, nil
}

func (b *ColumnBatch) Len() int {
	return b.rows
}

// Column returns the column backing f.
func (b *ColumnBatch) Column(f Field) Column {
	return b.columns[f]
}

func (b *ColumnBatch) String(f Field, i int) (string, bool) {
	c, ok := b.columns[f].(*BytesColumn)
	if !ok {
		return "", false
	}
	return c.GetString(i)
}

func (b *ColumnBatch) Int(f Field, i int) (int64, bool) {
	c, ok := b.columns[f].(*Int64Column)
	if !ok {
		return 0, false
	}
	return c.Get(i)
}

// Bytes estimates the in-memory size of the batch.
func (b *ColumnBatch) Bytes() int {
	total := 0
	for _, c := range b.columns {
		total += c.Bytes()
	}
	return total
}
