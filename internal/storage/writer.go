package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
)

// ColumnWriter appends serialized batches to a store file.
// It is single-writer; batches are never rewritten once appended.
// Close publishes the written batches, Abort discards them.
type ColumnWriter struct {
	encoder *zstd.Encoder
	file    *os.File
	path    string
	runID   uuid.UUID

	// staging is the temporary file a new store is written to; empty when
	// appending in place.
	staging string
	// base is the verified size of an appended store before this writer.
	base int64

	batches int
	rows    int64
	written int64
}

// StagingPathFor returns the temporary path a new store is built at.
func StagingPathFor(path string) string {
	return path + ".tmp"
}

// CreateStore starts a new store for path. Batches go to a staging file that
// replaces path only when Close succeeds, so an existing store stays intact
// until then.
func CreateStore(path string) (*ColumnWriter, error) {
	staging := StagingPathFor(path)
	f, err := os.Create(staging)
	if err != nil {
		return nil, errors.Wrap(err, "creating store")
	}

	runID := uuid.New()
	header := make([]byte, 0, headerSize)
	header = append(header, MagicHeader...)
	header = append(header, runID[:]...)
	if _, err := f.Write(header); err != nil {
		f.Close()
		os.Remove(staging)
		return nil, errors.Wrap(err, "writing store header")
	}
	cw, err := newColumnWriter(f, path, runID, headerSize)
	if err != nil {
		os.Remove(staging)
		return nil, err
	}
	cw.staging = staging
	return cw, nil
}

// AppendStore opens an existing store for appending after verifying every
// batch already in it. A missing file is created.
func AppendStore(path string) (*ColumnWriter, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CreateStore(path)
	}

	cr, err := NewColumnReader()
	if err != nil {
		return nil, err
	}
	defer cr.Close()
	info, err := cr.Verify(path)
	if err != nil {
		return nil, errors.Wrap(err, "refusing to append to damaged store")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening store for append")
	}
	log.Debug().
		Str("store", path).
		Str("run_id", info.RunID.String()).
		Int("batches", info.Batches).
		Msg("appending to existing store")
	cw, err := newColumnWriter(f, path, info.RunID, info.Bytes)
	if err != nil {
		return nil, err
	}
	cw.base = info.Bytes
	return cw, nil
}

func newColumnWriter(f *os.File, path string, runID uuid.UUID, size int64) (*ColumnWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &ColumnWriter{
		encoder: enc,
		file:    f,
		path:    path,
		runID:   runID,
		written: size,
	}, nil
}

// WriteBatch serializes one batch and appends it with a single write.
// It matches engine.FlushFunc.
func (cw *ColumnWriter) WriteBatch(b *engine.ColumnBatch) error {
	frame, err := cw.encodeFrame(b)
	if err != nil {
		return err
	}
	if len(frame) > maxFrameSize {
		return errors.Errorf("batch frame of %d bytes exceeds limit", len(frame))
	}

	sum := blake2b.Sum256(frame)
	out := make([]byte, 0, 4+len(frame)+checksumSize)
	out = putUint32(out, uint32(len(frame)))
	out = append(out, frame...)
	out = append(out, sum[:]...)

	if _, err := cw.file.Write(out); err != nil {
		return errors.Wrapf(err, "appending batch %d", cw.batches)
	}
	cw.batches++
	cw.rows += int64(b.Len())
	cw.written += int64(len(out))

	log.Debug().
		Int("batch", cw.batches-1).
		Int("rows", b.Len()).
		Int("bytes", len(out)).
		Msg("batch appended")
	return nil
}

func (cw *ColumnWriter) encodeFrame(b *engine.ColumnBatch) ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(b.Len()))
	buf.WriteByte(byte(engine.NumFields))

	for _, f := range engine.AllFields() {
		var raw []byte
		switch col := b.Column(f).(type) {
		case *engine.Int64Column:
			raw = encodeInt64Col(col)
		case *engine.BytesColumn:
			raw = encodeBytesCol(col)
		default:
			return nil, errors.Errorf("column %s: unsupported column type %T", f, col)
		}

		name := f.String()
		buf.WriteByte(byte(len(name)))
		buf.WriteString(name)
		buf.WriteByte(byte(f.Type()))
		if err := cw.compressAndWrite(buf, raw); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeInt64Col(col *engine.Int64Column) []byte {
	raw := appendBitmap(make([]byte, 0, bitmapLen(col.Size())+col.Size()*8), col.Valid)
	for _, v := range col.Data {
		raw = binary.LittleEndian.AppendUint64(raw, uint64(v))
	}
	return raw
}

// encodeBytesCol writes [Len uint32][Bytes] per row; nulls are zero-length.
func encodeBytesCol(col *engine.BytesColumn) []byte {
	raw := appendBitmap(make([]byte, 0, bitmapLen(col.Size())+len(col.Data)+col.Size()*4), col.Valid)
	for i := 0; i < col.Size(); i++ {
		v, _ := col.Get(i)
		raw = putUint32(raw, uint32(len(v)))
		raw = append(raw, v...)
	}
	return raw
}

func (cw *ColumnWriter) compressAndWrite(w io.Writer, raw []byte) error {
	compressed := cw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	// Write Compressed Size (uint32)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

// RunID identifies the ingest run that created the store.
func (cw *ColumnWriter) RunID() uuid.UUID {
	return cw.runID
}

// Batches returns the number of batches appended by this writer.
func (cw *ColumnWriter) Batches() int {
	return cw.batches
}

// Size returns the store size in bytes.
func (cw *ColumnWriter) Size() int64 {
	return cw.written
}

// Path returns the store path.
func (cw *ColumnWriter) Path() string {
	return cw.path
}

// Close syncs and closes the store file. A new store is then renamed over
// its final path.
func (cw *ColumnWriter) Close() error {
	cw.encoder.Close()
	if err := cw.file.Sync(); err != nil {
		cw.file.Close()
		cw.removeStaging()
		return errors.Wrap(err, "syncing store")
	}
	if err := cw.file.Close(); err != nil {
		cw.removeStaging()
		return errors.Wrap(err, "closing store")
	}
	if cw.staging == "" {
		return nil
	}
	if err := os.Rename(cw.staging, cw.path); err != nil {
		cw.removeStaging()
		return errors.Wrap(err, "publishing store")
	}
	return nil
}

// Abort drops everything written by this writer. A new store's staging file
// is removed and an appended store is cut back to its size before the append.
func (cw *ColumnWriter) Abort() error {
	cw.encoder.Close()
	if cw.staging != "" {
		cw.file.Close()
		return cw.removeStaging()
	}

	err := cw.file.Truncate(cw.base)
	if closeErr := cw.file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrap(err, "rolling back append")
	}
	cw.batches, cw.rows, cw.written = 0, 0, cw.base
	return nil
}

func (cw *ColumnWriter) removeStaging() error {
	if err := os.Remove(cw.staging); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing staged store")
	}
	return nil
}
