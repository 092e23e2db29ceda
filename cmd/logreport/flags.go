package main

import (
	"github.com/urfave/cli"

	"github.com/coffersTech/nanolog/logreport/internal/config"
)

const defaultStore = "apache_httpd.nano"

// overrideInt copies an explicitly set int flag into dst.
func overrideInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

// overrideString copies an explicitly set string flag into dst.
func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func validate(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	return nil
}

func storeFlag() cli.StringFlag {
	return cli.StringFlag{
		Name:  "dataframe, df",
		Value: defaultStore,
		Usage: "the store to run against",
	}
}
