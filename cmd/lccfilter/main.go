package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitlibraries/lccfilter"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := newApp(os.Stderr)
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command line app. Progress lines are written to status.
func newApp(status io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "lccfilter"
	app.Usage = "Create LC call number filing keys and filter catalog exports by call number range"

	app.Commands = []cli.Command{
		{
			Name:      "key",
			Usage:     "Print the filing key for one or more call numbers",
			ArgsUsage: "[callnumber...]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "strict, s",
					Usage: "fail on anything that is not an LC call number",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() == 0 {
					return errors.New("need at least one call number")
				}
				for _, raw := range c.Args() {
					key, err := lccfilter.FilingKey(raw, c.Bool("strict"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, key)
				}
				return nil
			},
		},
		{
			Name:  "filter",
			Usage: "Copy the records of an export whose call number key is in a range",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config", Usage: "YAML config file", EnvVar: "LCCFILTER_CONFIG"},
				cli.StringFlag{Name: "file, f", Usage: "file to read", EnvVar: "LCCFILTER_FILE"},
				cli.StringFlag{Name: "output, o", Usage: "file to output", EnvVar: "LCCFILTER_OUTPUT"},
				cli.StringFlag{Name: "lower, l", Usage: "lower call number bound", EnvVar: "LCCFILTER_LOWER"},
				cli.StringFlag{Name: "upper, u", Usage: "upper call number bound", EnvVar: "LCCFILTER_UPPER"},
				cli.IntFlag{Name: "counter, c", Usage: "progress counter (default: 100)", EnvVar: "LCCFILTER_COUNTER"},
				cli.StringFlag{Name: "format", Usage: "export format, aleph or marc (default: aleph)", EnvVar: "LCCFILTER_FORMAT"},
				cli.StringFlag{Name: "section", Usage: "aleph element holding one record", EnvVar: "LCCFILTER_SECTION"},
				cli.StringFlag{Name: "key-field", Usage: "aleph key element or marc tag query, e.g. 852h", EnvVar: "LCCFILTER_KEY_FIELD"},
				cli.BoolFlag{Name: "verbose", Usage: "log skipped records", EnvVar: "LCCFILTER_VERBOSE"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := configFromContext(c)
				if err != nil {
					return err
				}
				return runFilter(cfg, status)
			},
		},
	}
	return app
}

func configFromContext(c *cli.Context) (*Config, error) {
	cfg := DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	for name, dst := range map[string]*string{
		"file":      &cfg.File,
		"output":    &cfg.Output,
		"lower":     &cfg.Lower,
		"upper":     &cfg.Upper,
		"format":    &cfg.Format,
		"section":   &cfg.Section,
		"key-field": &cfg.KeyField,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet("counter") {
		cfg.Counter = c.Int("counter")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	return cfg, cfg.Validate()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func runFilter(cfg *Config, status io.Writer) (err error) {
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rng, err := lccfilter.NewRange(cfg.Lower, cfg.Upper)
	if err != nil {
		return err
	}
	if rng.Empty() {
		logger.Warn("Lower bound sorts after upper bound, nothing will match",
			zap.String("lower", rng.Lower), zap.String("upper", rng.Upper))
	}

	in, err := os.Open(cfg.File)
	if err != nil {
		return err
	}
	defer in.Close()
	src, err := cfg.Source(bufio.NewReader(in))
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(out)
	defer func() {
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
	}()

	f := &lccfilter.Filter{
		Range:    rng,
		Every:    cfg.Counter,
		Progress: status,
		Logger:   logger.With(zap.String("file", cfg.File)),
	}
	_, err = f.Run(src, w)
	return err
}
