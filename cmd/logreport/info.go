package main

import (
	"os"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/coffersTech/nanolog/logreport/internal/ingest"
	"github.com/coffersTech/nanolog/logreport/internal/storage"
)

func Info() cli.Command {
	return cli.Command{
		Name:  "info",
		Usage: "verify a store and print its ingest statistics",
		Flags: []cli.Flag{storeFlag()},
		Action: func(c *cli.Context) error {
			storePath := c.String("dataframe")

			cr, err := storage.NewColumnReader()
			if err != nil {
				return fatal(err)
			}
			defer cr.Close()

			info, err := cr.Verify(storePath)
			if err != nil {
				return fatal(errors.Wrapf(err, "verifying %s", storePath))
			}

			t := tabby.New()
			t.AddHeader("Property", "Value")
			t.AddLine("store", storePath)
			t.AddLine("run id", info.RunID.String())
			t.AddLine("batches", info.Batches)
			t.AddLine("rows", humanize.Comma(info.Rows))
			t.AddLine("size", humanize.Bytes(uint64(info.Bytes)))

			m, err := ingest.LoadManifest(storage.ManifestPathFor(storePath))
			switch {
			case err == nil:
				t.AddLine("source", m.Source)
				t.AddLine("ingest runs", m.Runs)
				t.AddLine("chunk size", m.ChunkSize)
				t.AddLine("lines read", humanize.Comma(m.Lines))
				t.AddLine("records", humanize.Comma(m.Records))
				t.AddLine("skipped lines", humanize.Comma(m.Skipped))
				t.AddLine("updated", humanize.Time(m.UpdatedAt))
			case os.IsNotExist(errors.Cause(err)):
				t.AddLine("manifest", "missing")
			default:
				return fatal(err)
			}
			t.Print()
			return nil
		},
	}
}
