package engine

// ColumnType defines the type of data stored in a column.
type ColumnType uint8

const (
	ColumnTypeInt64 ColumnType = iota + 1
	ColumnTypeBytes
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeInt64:
		return "int64"
	case ColumnTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Column is the generic interface for a column in a ColumnBatch.
// Every column carries a validity flag per row; a false flag is a null.
type Column interface {
	Type() ColumnType
	Reset()
	Size() int      // Number of rows
	Bytes() int     // Estimated memory usage in bytes
	NullCount() int // Rows without a value
	IsValid(i int) bool
}

// Int64Column stores nullable int64 values (status, size).
type Int64Column struct {
	Data  []int64 // zero where the row is null
	Valid []bool
}

func NewInt64Column(capacity int) *Int64Column {
	return &Int64Column{
		Data:  make([]int64, 0, capacity),
		Valid: make([]bool, 0, capacity),
	}
}

func (c *Int64Column) Type() ColumnType {
	return ColumnTypeInt64
}

func (c *Int64Column) Append(v int64) {
	c.Data = append(c.Data, v)
	c.Valid = append(c.Valid, true)
}

func (c *Int64Column) AppendNull() {
	c.Data = append(c.Data, 0)
	c.Valid = append(c.Valid, false)
}

func (c *Int64Column) Reset() {
	c.Data = c.Data[:0]
	c.Valid = c.Valid[:0]
}

func (c *Int64Column) Size() int {
	return len(c.Data)
}

func (c *Int64Column) Bytes() int {
	return len(c.Data)*8 + len(c.Valid)
}

func (c *Int64Column) NullCount() int {
	return countNulls(c.Valid)
}

func (c *Int64Column) IsValid(i int) bool {
	return i >= 0 && i < len(c.Valid) && c.Valid[i]
}

// Get returns the value at index i and whether it is non-null.
func (c *Int64Column) Get(i int) (int64, bool) {
	if !c.IsValid(i) {
		return 0, false
	}
	return c.Data[i], true
}

// BytesColumn stores variable-length byte slices using a flat buffer and offsets.
// This reduces GC pressure compared to []string or [][]byte.
type BytesColumn struct {
	Data    []byte // The flat buffer storing all bytes
	Offsets []int  // Starting offset for each row. Length is RowCount + 1
	Valid   []bool
}

func NewBytesColumn(dataCap, rowsCap int) *BytesColumn {
	c := &BytesColumn{
		Data:    make([]byte, 0, dataCap),
		Offsets: make([]int, 0, rowsCap+1),
		Valid:   make([]bool, 0, rowsCap),
	}
	c.Offsets = append(c.Offsets, 0) // Initial offset
	return c
}

func (c *BytesColumn) Type() ColumnType {
	return ColumnTypeBytes
}

// Append adds a byte slice to the column. The input is copied.
func (c *BytesColumn) Append(v []byte) {
	c.Data = append(c.Data, v...)
	c.Offsets = append(c.Offsets, len(c.Data))
	c.Valid = append(c.Valid, true)
}

// AppendString adds a string to the column.
func (c *BytesColumn) AppendString(v string) {
	c.Data = append(c.Data, v...)
	c.Offsets = append(c.Offsets, len(c.Data))
	c.Valid = append(c.Valid, true)
}

// AppendNull adds an empty, invalid row.
func (c *BytesColumn) AppendNull() {
	c.Offsets = append(c.Offsets, len(c.Data))
	c.Valid = append(c.Valid, false)
}

func (c *BytesColumn) Reset() {
	c.Data = c.Data[:0]
	c.Offsets = c.Offsets[:0]
	c.Offsets = append(c.Offsets, 0)
	c.Valid = c.Valid[:0]
}

func (c *BytesColumn) Size() int {
	return len(c.Offsets) - 1
}

func (c *BytesColumn) Bytes() int {
	return len(c.Data) + len(c.Offsets)*8 + len(c.Valid)
}

func (c *BytesColumn) NullCount() int {
	return countNulls(c.Valid)
}

func (c *BytesColumn) IsValid(i int) bool {
	return i >= 0 && i < len(c.Valid) && c.Valid[i]
}

// Get returns the byte slice at index i.
// The returned slice aliases the column buffer; treat it as read-only.
func (c *BytesColumn) Get(i int) ([]byte, bool) {
	if !c.IsValid(i) {
		return nil, false
	}
	return c.Data[c.Offsets[i]:c.Offsets[i+1]], true
}

// GetString returns a copy of the value at index i.
func (c *BytesColumn) GetString(i int) (string, bool) {
	b, ok := c.Get(i)
	if !ok {
		return "", false
	}
	return string(b), true
}

func countNulls(valid []bool) int {
	n := 0
	for _, ok := range valid {
		if !ok {
			n++
		}
	}
	return n
}
