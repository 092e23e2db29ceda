// Command logreport ingests web-server access logs into a batched column
// store and prints aggregate reports over it.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/coffersTech/nanolog/logreport/internal/config"
)

const (
	verboseFlagName = "verbose"
	configFlagName  = "config"

	// exit codes
	exitFatal = 1
	exitUsage = 2
)

// logWriter receives console log output.
var logWriter io.Writer = os.Stderr

func main() {
	if err := buildApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("logreport failed")
	}
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = "logreport"
	app.Usage = "columnar reports over apache access logs"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  verboseFlagName,
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  configFlagName,
			Usage: "optional YAML configuration file",
		},
	}
	app.Before = func(c *cli.Context) error {
		setupLogging(c.Bool(verboseFlagName))
		return nil
	}

	app.Commands = []cli.Command{
		Ingest(),
		Report(),
		Info(),
	}
	return app
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logWriter, TimeFormat: time.Kitchen})
}

// loadConfig returns the defaults overlaid with the --config file, if any.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.GlobalString(configFlagName)
	if path == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.LoadYAML(path)
	if err != nil {
		return cfg, cli.NewExitError(err.Error(), exitUsage)
	}
	log.Debug().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

func fatal(err error) error {
	return cli.NewExitError(err.Error(), exitFatal)
}

func usage(format string, args ...interface{}) error {
	return cli.NewExitError(fmt.Sprintf(format, args...), exitUsage)
}
