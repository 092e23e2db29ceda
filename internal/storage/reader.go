package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
)

// BatchIterator provides a batch-by-batch view of a store in append order.
type BatchIterator interface {
	Next() bool
	Batch() *engine.ColumnBatch
	Seq() int
	Error() error
	Close() error
}

// StoreInfo summarizes a store without decoding its columns.
type StoreInfo struct {
	RunID   uuid.UUID
	Batches int
	Rows    int64
	Bytes   int64
}

type ColumnReader struct {
	decoder *zstd.Decoder
}

func NewColumnReader() (*ColumnReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ColumnReader{decoder: dec}, nil
}

// Close releases the decoder.
func (cr *ColumnReader) Close() {
	cr.decoder.Close()
}

// NewIterator opens the store at path and validates its header.
func (cr *ColumnReader) NewIterator(path string) (BatchIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}

	r := bufio.NewReaderSize(f, 1<<16)
	runID, err := readHeader(r)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileIterator{
		reader: cr,
		file:   f,
		buf:    r,
		runID:  runID,
		seq:    -1,
	}, nil
}

type FileIterator struct {
	reader *ColumnReader
	file   *os.File
	buf    *bufio.Reader
	runID  uuid.UUID

	seq   int
	batch *engine.ColumnBatch
	err   error
}

func (it *FileIterator) Next() bool {
	if it.err != nil {
		return false
	}

	frame, _, err := readFrame(it.buf, it.seq+1)
	if err == io.EOF {
		it.batch = nil
		return false
	}
	if err != nil {
		it.err = err
		return false
	}

	batch, err := it.reader.decodeFrame(frame)
	if err != nil {
		it.err = errors.Wrapf(err, "batch %d", it.seq+1)
		return false
	}
	it.seq++
	it.batch = batch
	return true
}

func (it *FileIterator) Batch() *engine.ColumnBatch {
	return it.batch
}

func (it *FileIterator) Seq() int {
	return it.seq
}

func (it *FileIterator) RunID() uuid.UUID {
	return it.runID
}

func (it *FileIterator) Error() error {
	return it.err
}

func (it *FileIterator) Close() error {
	return it.file.Close()
}

// ReadBatches streams every batch of the store to visit in append order.
// It matches engine.BatchReaderFunc.
func (cr *ColumnReader) ReadBatches(path string, visit func(seq int, batch *engine.ColumnBatch) error) error {
	it, err := cr.NewIterator(path)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		if err := visit(it.Seq(), it.Batch()); err != nil {
			return err
		}
	}
	return it.Error()
}

// Verify walks every frame of the store checking lengths and checksums.
func (cr *ColumnReader) Verify(path string) (StoreInfo, error) {
	var info StoreInfo

	f, err := os.Open(path)
	if err != nil {
		return info, errors.Wrap(err, "opening store")
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<16)
	if info.RunID, err = readHeader(r); err != nil {
		return info, err
	}
	info.Bytes = headerSize

	for {
		frame, n, err := readFrame(r, info.Batches)
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			return info, err
		}
		info.Batches++
		info.Rows += int64(binary.LittleEndian.Uint32(frame))
		info.Bytes += n
	}
}

func readHeader(r io.Reader) (uuid.UUID, error) {
	var runID uuid.UUID

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return runID, errors.Wrap(ErrInvalidHeader, "short header")
	}
	if !bytes.Equal(header[:len(MagicHeader)], MagicHeader) {
		return runID, errors.Wrapf(ErrInvalidHeader, "unexpected magic %q", header[:len(MagicHeader)])
	}
	copy(runID[:], header[len(MagicHeader):])
	return runID, nil
}

// readFrame returns the next checksummed frame and the number of bytes it
// occupied. io.EOF is returned only at a clean frame boundary.
func readFrame(r io.Reader, seq int) ([]byte, int64, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, errors.Wrapf(ErrCorruptStore, "batch %d: truncated length prefix", seq)
	}
	if size < 5 || size > maxFrameSize {
		return nil, 0, errors.Wrapf(ErrCorruptStore, "batch %d: implausible frame length %d", seq, size)
	}

	body := make([]byte, int(size)+checksumSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, 0, errors.Wrapf(ErrCorruptStore, "batch %d: truncated frame", seq)
	}
	frame, sum := body[:size], body[size:]
	want := blake2b.Sum256(frame)
	if !bytes.Equal(sum, want[:]) {
		return nil, 0, errors.Wrapf(ErrCorruptStore, "batch %d: checksum mismatch", seq)
	}
	return frame, int64(4 + len(body)), nil
}

func (cr *ColumnReader) decodeFrame(frame []byte) (*engine.ColumnBatch, error) {
	if len(frame) < 5 {
		return nil, errors.Wrapf(ErrCorruptStore, "frame of %d bytes has no row header", len(frame))
	}
	rows := binary.LittleEndian.Uint32(frame[:4])
	ncols := frame[4]
	r := bytes.NewReader(frame[5:])

	if int(ncols) != engine.NumFields {
		return nil, errors.Wrapf(ErrCorruptStore, "frame has %d columns, want %d", ncols, engine.NumFields)
	}

	var columns [engine.NumFields]engine.Column
	for i := 0; i < int(ncols); i++ {
		name, typ, err := readColumnHeader(r)
		if err != nil {
			return nil, err
		}
		field, err := engine.ParseField(name)
		if err != nil || field.String() != name {
			return nil, errors.Wrapf(ErrCorruptStore, "unknown column %q", name)
		}
		if columns[field] != nil {
			return nil, errors.Wrapf(ErrCorruptStore, "duplicate column %q", name)
		}
		if typ != field.Type() {
			return nil, errors.Wrapf(ErrCorruptStore, "column %s has type %s", name, typ)
		}

		raw, err := cr.readAndDecompress(r)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptStore, "column %s: %v", name, err)
		}

		switch typ {
		case engine.ColumnTypeInt64:
			columns[field], err = decodeInt64Col(raw, int(rows))
		default:
			columns[field], err = decodeBytesCol(raw, int(rows))
		}
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrCorruptStore, "%d trailing bytes in frame", r.Len())
	}

	batch, err := engine.AssembleBatch(columns)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptStore, err.Error())
	}
	return batch, nil
}

func readColumnHeader(r *bytes.Reader) (string, engine.ColumnType, error) {
	nameLen, err := r.ReadByte()
	if err != nil {
		return "", 0, errors.Wrap(ErrCorruptStore, "truncated column header")
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", 0, errors.Wrap(ErrCorruptStore, "truncated column name")
	}
	typ, err := r.ReadByte()
	if err != nil {
		return "", 0, errors.Wrap(ErrCorruptStore, "truncated column type")
	}
	return string(name), engine.ColumnType(typ), nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (cr *ColumnReader) readAndDecompress(r *bytes.Reader) ([]byte, error) {
	// Read compressed size (uint32)
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if int64(size) > int64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}

	// Read compressed data
	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	return cr.decoder.DecodeAll(compressed, nil)
}

func decodeInt64Col(raw []byte, rows int) (*engine.Int64Column, error) {
	valid, data, err := readBitmap(raw, rows)
	if err != nil {
		return nil, err
	}
	if len(data) != rows*8 {
		return nil, errors.Wrapf(ErrCorruptStore, "int64 payload of %d bytes for %d rows", len(data), rows)
	}

	col := engine.NewInt64Column(rows)
	for i := 0; i < rows; i++ {
		if !valid[i] {
			col.AppendNull()
			continue
		}
		col.Append(int64(binary.LittleEndian.Uint64(data[i*8:])))
	}
	return col, nil
}

// decodeBytesCol reads [Len uint32][Bytes] per row.
func decodeBytesCol(raw []byte, rows int) (*engine.BytesColumn, error) {
	valid, data, err := readBitmap(raw, rows)
	if err != nil {
		return nil, err
	}

	col := engine.NewBytesColumn(len(data), rows)
	for i := 0; i < rows; i++ {
		if len(data) < 4 {
			return nil, errors.Wrapf(ErrCorruptStore, "truncated value at row %d", i)
		}
		n := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if n > len(data) {
			return nil, errors.Wrapf(ErrCorruptStore, "value at row %d overruns payload", i)
		}
		if valid[i] {
			col.Append(data[:n])
		} else {
			col.AppendNull()
		}
		data = data[n:]
	}
	if len(data) != 0 {
		return nil, errors.Wrapf(ErrCorruptStore, "%d trailing bytes in payload", len(data))
	}
	return col, nil
}
