package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitlibraries/lccfilter"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a filter run. Values come from an optional
// YAML file and are overridden by flags and environment variables.
type Config struct {
	File     string `yaml:"file"`
	Output   string `yaml:"output"`
	Lower    string `yaml:"lower"`
	Upper    string `yaml:"upper"`
	Counter  int    `yaml:"counter"`
	Format   string `yaml:"format"`    // aleph or marc
	Section  string `yaml:"section"`   // aleph only
	KeyField string `yaml:"key_field"` // element name for aleph, tag query for marc
	Verbose  bool   `yaml:"verbose"`
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() *Config {
	return &Config{
		Counter: 100,
		Format:  "aleph",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the config describes a runnable filter.
func (c *Config) Validate() error {
	if c.File == "" || c.Output == "" || c.Lower == "" || c.Upper == "" {
		return errors.New("need file, output, lower and upper")
	}
	if c.Counter < 0 {
		return fmt.Errorf("counter must not be negative, got %d", c.Counter)
	}
	switch c.Format {
	case "aleph":
	case "marc":
		if c.KeyField == "" {
			return errors.New("marc format needs a key field query")
		}
		if _, err := lccfilter.ParseFieldQuery(c.KeyField); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q, want aleph or marc", c.Format)
	}
	return nil
}

// Source returns the record reader for the configured format.
func (c *Config) Source(r io.Reader) (lccfilter.Source, error) {
	switch c.Format {
	case "aleph":
		return lccfilter.NewAlephIterator(r, lccfilter.AlephOptions{
			Section: c.Section,
			KeyTag:  c.KeyField,
		}), nil
	case "marc":
		q, err := lccfilter.ParseFieldQuery(c.KeyField)
		if err != nil {
			return nil, err
		}
		return lccfilter.NewMarcIterator(r, q), nil
	}
	return nil, fmt.Errorf("unknown format %q", c.Format)
}
