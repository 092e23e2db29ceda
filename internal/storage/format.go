package storage

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Store layout:
//
//	header: MagicHeader (8) | run id (16)
//	batch:  frame length uint32 | frame | blake2b-256(frame) (32)
//	frame:  row count uint32 | column count uint8 | column...
//	column: name length uint8 | name | type uint8 | payload length uint32 | zstd(payload)
//
// A payload starts with a validity bitmap (bit set = value present) followed
// by little-endian int64 values or [len uint32][bytes] strings.
// All integers are little-endian.

// MagicHeader identifies a batch store file.
var MagicHeader = []byte("NANOACC1")

const (
	headerSize   = 8 + 16
	checksumSize = 32
	// maxFrameSize guards allocations when reading a damaged length prefix.
	maxFrameSize = 1 << 30
)

// StoreExt is the extension of batch store files.
const StoreExt = ".nano"

var (
	ErrInvalidHeader = errors.New("invalid store header")
	ErrCorruptStore  = errors.New("corrupt store")
)

// StorePathFor derives the store path from the input log path:
// access.log becomes access.nano, any other name gets .nano appended.
func StorePathFor(input string) string {
	dir, base := filepath.Split(input)
	if strings.HasSuffix(base, ".log") && base != ".log" {
		base = strings.TrimSuffix(base, ".log")
	}
	return filepath.Join(dir, base+StoreExt)
}

// ManifestPathFor returns the sidecar path holding ingest statistics.
func ManifestPathFor(store string) string {
	return store + ".stats"
}

func bitmapLen(rows int) int {
	return (rows + 7) / 8
}

func appendBitmap(buf []byte, valid []bool) []byte {
	bm := make([]byte, bitmapLen(len(valid)))
	for i, ok := range valid {
		if ok {
			bm[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return append(buf, bm...)
}

func readBitmap(data []byte, rows int) ([]bool, []byte, error) {
	n := bitmapLen(rows)
	if len(data) < n {
		return nil, nil, errors.Wrap(ErrCorruptStore, "short validity bitmap")
	}
	valid := make([]bool, rows)
	for i := range valid {
		valid[i] = data[i/8]&(1<<(uint(i)%8)) != 0
	}
	return valid, data[n:], nil
}

func putUint32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}
