package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/coffersTech/nanolog/logreport/internal/config"
	"github.com/coffersTech/nanolog/logreport/internal/engine"
	"github.com/coffersTech/nanolog/logreport/internal/report"
	"github.com/coffersTech/nanolog/logreport/internal/storage"
)

const (
	fullFlagName         = "full"
	topFlagName          = "top"
	successfulFlagName   = "successful"
	unsuccessfulFlagName = "unsuccessful"
	detailedIPsFlagName  = "detailed_ips"
	outputFlagName       = "output"
	formatFlagName       = "format"
	whereFlagName        = "where"
	workersFlagName      = "workers"
	inMemoryFlagName     = "in-memory"
)

func Report() cli.Command {
	return cli.Command{
		Name:  "report",
		Usage: "run reports against an ingested store",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  fullFlagName + ", f",
				Usage: "run every report",
			},
			cli.StringFlag{
				Name:  topFlagName,
				Usage: "top report for requests, unsuccessful (status outside 200-300) or ips",
			},
			cli.BoolFlag{
				Name:  successfulFlagName + ", s",
				Usage: "percentage of successful requests",
			},
			cli.BoolFlag{
				Name:  unsuccessfulFlagName + ", u",
				Usage: "percentage of unsuccessful requests",
			},
			cli.BoolFlag{
				Name:  detailedIPsFlagName,
				Usage: "top ip addresses with their most requested resources",
			},
			storeFlag(),
			cli.StringFlag{
				Name:  outputFlagName,
				Value: config.OutputCLI,
				Usage: "write to the terminal (cli) or to the results file (txt)",
			},
			cli.StringFlag{
				Name:  formatFlagName,
				Value: config.FormatText,
				Usage: "render as text or json",
			},
			cli.StringFlag{
				Name:  whereFlagName,
				Usage: "restrict every report to rows matching this filter, e.g. 'method:GET AND NOT status:5xx'",
			},
			cli.IntFlag{
				Name:  workersFlagName,
				Usage: "batches aggregated concurrently (default: GOMAXPROCS)",
			},
			cli.BoolFlag{
				Name:  inMemoryFlagName,
				Usage: "materialize the whole table in memory before aggregating",
			},
		},
		Action: func(c *cli.Context) error {
			kinds, err := selectedKinds(c)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			overrideString(c, outputFlagName, &cfg.Output)
			overrideString(c, formatFlagName, &cfg.Format)
			overrideString(c, whereFlagName, &cfg.Where)
			overrideInt(c, workersFlagName, &cfg.Workers)
			if err := validate(cfg); err != nil {
				return err
			}

			filter, err := engine.CompileFilter(cfg.Where)
			if err != nil {
				return usage("invalid --where filter: %v", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := buildReport(ctx, cfg, c.String("dataframe"), filter, kinds, c.Bool(inMemoryFlagName))
			if err != nil {
				return fatal(err)
			}
			if err := writeReport(cfg, rep); err != nil {
				return fatal(err)
			}
			fmt.Println("\nReport completed.")
			return nil
		},
	}
}

// selectedKinds collects the requested sections; selecting none is a usage error.
func selectedKinds(c *cli.Context) ([]report.Kind, error) {
	if c.Bool(fullFlagName) {
		return report.FullKinds(), nil
	}

	var kinds []report.Kind
	if top := c.String(topFlagName); top != "" {
		k, err := report.ParseTop(top)
		if err != nil {
			return nil, usage("%v", err)
		}
		kinds = append(kinds, k)
	}
	if c.Bool(successfulFlagName) {
		kinds = append(kinds, report.KindSuccessful)
	}
	if c.Bool(unsuccessfulFlagName) {
		kinds = append(kinds, report.KindUnsuccessful)
	}
	if c.Bool(detailedIPsFlagName) {
		kinds = append(kinds, report.KindTopIPsDetailed)
	}
	if len(kinds) == 0 {
		return nil, usage("no report selected: use --full, --top, -s, -u or --detailed_ips")
	}
	return kinds, nil
}

func buildReport(ctx context.Context, cfg config.Config, storePath string, filter engine.Predicate, kinds []report.Kind, inMemory bool) (*report.Report, error) {
	if _, err := os.Stat(storePath); err != nil {
		return nil, errors.Wrap(err, "opening store")
	}

	cr, err := storage.NewColumnReader()
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	qe := engine.NewQueryEngine(storePath, cr.ReadBatches, cfg.Workers)
	qe.Filter = filter

	var src report.Source = qe
	if inMemory {
		table, err := qe.LoadTable(ctx)
		if err != nil {
			return nil, err
		}
		defer table.Release()
		src = table
		log.Debug().Int("rows", table.Len()).Msg("table materialized")
	}

	b := report.Builder{Source: src, TopN: cfg.TopN, DetailN: cfg.DetailN}
	return b.Build(ctx, kinds)
}

// writeReport renders only after every section has been computed.
func writeReport(cfg config.Config, rep *report.Report) error {
	var w io.Writer = os.Stdout
	if cfg.Output == config.OutputTXT {
		f, err := os.Create(cfg.ResultsFile)
		if err != nil {
			return errors.Wrap(err, "creating results file")
		}
		defer f.Close()
		w = f
	}

	if err := report.Render(w, rep, cfg.Format); err != nil {
		return err
	}
	if cfg.Output == config.OutputTXT {
		log.Info().Str("file", cfg.ResultsFile).Msg("results written")
	}
	return nil
}
