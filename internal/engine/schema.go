package engine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/coffersTech/nanolog/logreport/internal/pkg/nanoql"
)

// Field identifies one retained column of the access-log table.
// The identity field of a record is not retained and has no Field.
type Field int

const (
	FieldClientIP Field = iota
	FieldUserID
	FieldTimestamp
	FieldMethod
	FieldResource
	FieldProtocol
	FieldStatus
	FieldSize

	NumFields = int(FieldSize) + 1
)

var fieldNames = [NumFields]string{
	"client_ip", "user_id", "timestamp", "method", "resource", "protocol", "status", "size",
}

func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// Type is the physical column type used for the field.
func (f Field) Type() ColumnType {
	if f == FieldStatus || f == FieldSize {
		return ColumnTypeInt64
	}
	return ColumnTypeBytes
}

// AllFields lists the fields in storage order.
func AllFields() []Field {
	fields := make([]Field, NumFields)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// ParseField resolves a field name or one of its aliases ("ip", "path", ...).
func ParseField(name string) (Field, error) {
	canonical, ok := nanoql.Fields[strings.ToLower(name)]
	if !ok {
		return 0, errors.Errorf("unknown field %q", name)
	}
	return fieldByName[canonical], nil
}

var fieldByName = func() map[string]Field {
	m := make(map[string]Field, NumFields)
	for i, n := range fieldNames {
		m[n] = Field(i)
	}
	return m
}()

// RowSource is a read-only columnar view addressed by row index.
// ColumnBatch and Table both implement it so the same aggregation code runs
// per batch and over the materialized table.
type RowSource interface {
	Len() int
	String(f Field, i int) (string, bool)
	Int(f Field, i int) (int64, bool)
}

// Text returns the textual form of any field; ok is false for nulls.
func Text(src RowSource, f Field, i int) (string, bool) {
	if f.Type() == ColumnTypeInt64 {
		v, ok := src.Int(f, i)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(v, 10), true
	}
	return src.String(f, i)
}
