package ingest

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// Manifest holds cumulative ingest statistics persisted next to a store.
type Manifest struct {
	RunID      string
	Source     string
	ChunkSize  int
	Runs       int
	Lines      int64
	Records    int64
	Skipped    int64
	Batches    int64
	StoreBytes int64
	UpdatedAt  time.Time
}

// Add folds the result of one ingest run into the manifest.
func (m *Manifest) Add(res Result) {
	m.Runs++
	m.Lines += res.Lines
	m.Records += res.Records
	m.Skipped += res.Skipped
	m.Batches += int64(res.Batches)
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return m, errors.Wrap(err, "reading manifest")
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return m, errors.Wrapf(err, "parsing manifest %s", path)
	}

	m.RunID = string(v.GetStringBytes("run_id"))
	m.Source = string(v.GetStringBytes("source"))
	m.ChunkSize = v.GetInt("chunk_size")
	m.Runs = v.GetInt("runs")
	m.Lines = v.GetInt64("lines")
	m.Records = v.GetInt64("records")
	m.Skipped = v.GetInt64("skipped")
	m.Batches = v.GetInt64("batches")
	m.StoreBytes = v.GetInt64("store_bytes")
	if ts := v.GetStringBytes("updated_at"); len(ts) > 0 {
		if m.UpdatedAt, err = time.Parse(time.RFC3339, string(ts)); err != nil {
			return m, errors.Wrap(err, "parsing manifest timestamp")
		}
	}
	return m, nil
}

// Marshal renders the manifest as a JSON object.
func (m Manifest) Marshal() []byte {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("run_id", a.NewString(m.RunID))
	o.Set("source", a.NewString(m.Source))
	o.Set("chunk_size", a.NewNumberInt(m.ChunkSize))
	o.Set("runs", a.NewNumberInt(m.Runs))
	o.Set("lines", a.NewNumberInt(int(m.Lines)))
	o.Set("records", a.NewNumberInt(int(m.Records)))
	o.Set("skipped", a.NewNumberInt(int(m.Skipped)))
	o.Set("batches", a.NewNumberInt(int(m.Batches)))
	o.Set("store_bytes", a.NewNumberInt(int(m.StoreBytes)))
	o.Set("updated_at", a.NewString(m.UpdatedAt.UTC().Format(time.RFC3339)))
	return append(o.MarshalTo(nil), '\n')
}

// SaveManifest writes the manifest to disk atomically.
func SaveManifest(path string, m Manifest) error {
	tmpPath := path + ".tmp"

	// Write to temp file first
	if err := os.WriteFile(tmpPath, m.Marshal(), 0644); err != nil {
		return errors.Wrap(err, "writing manifest")
	}

	// Atomic rename
	return errors.Wrap(os.Rename(tmpPath, path), "renaming manifest")
}
