package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/coffersTech/nanolog/logreport/internal/config"
	"github.com/coffersTech/nanolog/logreport/internal/ingest"
	"github.com/coffersTech/nanolog/logreport/internal/storage"
)

func Ingest() cli.Command {
	const (
		chunksFlagName      = "chunks"
		parseErrorFlagName  = "on-parse-error"
		appendFlagName      = "append"
		storeFlagName       = "store"
		metricsFileFlagName = "metrics-file"
	)

	return cli.Command{
		Name:      "ingest",
		Usage:     "parse an access log into a batched column store",
		ArgsUsage: "<log_file>",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  chunksFlagName,
				Value: 2000,
				Usage: "number of lines per stored batch",
			},
			cli.StringFlag{
				Name:  parseErrorFlagName,
				Value: string(ingest.PolicySkip),
				Usage: "what to do with unparseable lines: skip or abort",
			},
			cli.BoolFlag{
				Name:  appendFlagName,
				Usage: "append to an existing store instead of replacing it",
			},
			cli.StringFlag{
				Name:  storeFlagName,
				Usage: "store path (default: derived from the log file name)",
			},
			cli.StringFlag{
				Name:  metricsFileFlagName,
				Usage: "write ingest metrics in Prometheus text format to this file",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return usage("ingest takes exactly one log file, got %d arguments", c.NArg())
			}
			input := c.Args().First()

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			overrideInt(c, chunksFlagName, &cfg.ChunkSize)
			overrideString(c, parseErrorFlagName, &cfg.OnParseError)
			overrideString(c, metricsFileFlagName, &cfg.MetricsFile)
			if err := validate(cfg); err != nil {
				return err
			}

			storePath := c.String(storeFlagName)
			if storePath == "" {
				storePath = storage.StorePathFor(input)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runIngest(ctx, cfg, input, storePath, c.Bool(appendFlagName)); err != nil {
				return fatal(err)
			}
			fmt.Printf("Store created and located at %s\n", storePath)
			return nil
		},
	}
}

func runIngest(ctx context.Context, cfg config.Config, input, storePath string, appendMode bool) error {
	policy, err := ingest.ParsePolicy(cfg.OnParseError)
	if err != nil {
		return err
	}

	f, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "opening input")
	}
	defer f.Close()

	open := storage.CreateStore
	if appendMode {
		open = storage.AppendStore
	}
	cw, err := open(storePath)
	if err != nil {
		return err
	}

	metrics := ingest.NewMetrics()
	res, err := ingest.Run(ctx, f, cw.WriteBatch, ingest.Options{
		ChunkSize: cfg.ChunkSize,
		Policy:    policy,
		Metrics:   metrics,
	})
	if err != nil {
		// The previous store and its manifest are left as they were.
		if abortErr := cw.Abort(); abortErr != nil {
			log.Warn().Err(abortErr).Str("store", storePath).Msg("discarding partial ingest")
		}
		return errors.Wrapf(err, "ingesting %s", input)
	}
	if err := cw.Close(); err != nil {
		return errors.Wrapf(err, "ingesting %s", input)
	}

	manifestPath := storage.ManifestPathFor(storePath)
	manifest := ingest.Manifest{}
	if appendMode {
		if prev, err := ingest.LoadManifest(manifestPath); err == nil {
			manifest = prev
		} else if !os.IsNotExist(errors.Cause(err)) {
			log.Warn().Err(err).Msg("ignoring unreadable manifest")
		}
	}
	manifest.Add(res)
	manifest.RunID = cw.RunID().String()
	manifest.Source = input
	manifest.ChunkSize = cfg.ChunkSize
	manifest.StoreBytes = cw.Size()
	manifest.UpdatedAt = time.Now()
	if err := ingest.SaveManifest(manifestPath, manifest); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	log.Info().
		Str("store", storePath).
		Int64("lines", res.Lines).
		Int64("records", res.Records).
		Int64("skipped", res.Skipped).
		Int("batches", res.Batches).
		Str("size", humanize.Bytes(uint64(cw.Size()))).
		Dur("duration", res.Duration).
		Msg("ingest finished")
	return nil
}
