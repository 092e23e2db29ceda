// Package config holds the settings shared by the ingest and report commands.
package config

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	OutputCLI = "cli"
	OutputTXT = "txt"

	FormatText = "text"
	FormatJSON = "json"
)

// Config is the YAML-loadable configuration. CLI flags override file values.
type Config struct {
	ChunkSize    int    `yaml:"chunk_size"`
	OnParseError string `yaml:"on_parse_error"`
	Workers      int    `yaml:"workers"`
	TopN         int    `yaml:"top_n"`
	DetailN      int    `yaml:"detail_n"`
	Output       string `yaml:"output"`
	Format       string `yaml:"format"`
	ResultsFile  string `yaml:"results_file"`
	Where        string `yaml:"where"`
	MetricsFile  string `yaml:"metrics_file"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ChunkSize:    2000,
		OnParseError: "skip",
		Workers:      runtime.GOMAXPROCS(0),
		TopN:         10,
		DetailN:      5,
		Output:       OutputCLI,
		Format:       FormatText,
		ResultsFile:  "apache_httpd_results.txt",
	}
}

// LoadYAML overlays the YAML file at path on the defaults.
// Unknown keys are rejected.
func LoadYAML(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read YAML file %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, errors.Wrapf(err, "failed to unmarshal YAML %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.OnParseError != "skip" && c.OnParseError != "abort" {
		return errors.Errorf("on_parse_error must be skip or abort, got %q", c.OnParseError)
	}
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.TopN <= 0 || c.DetailN <= 0 {
		return errors.Errorf("top_n and detail_n must be positive, got %d and %d", c.TopN, c.DetailN)
	}
	if c.Output != OutputCLI && c.Output != OutputTXT {
		return errors.Errorf("output must be cli or txt, got %q", c.Output)
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		return errors.Errorf("format must be text or json, got %q", c.Format)
	}
	if c.Output == OutputTXT && c.ResultsFile == "" {
		return errors.New("results_file is required for txt output")
	}
	return nil
}
