// eventtrace drives ETW file sessions from the command line: resolve
// providers, start and stop sessions, read .etl files and emit test events.
package main

import (
	"fmt"
	"log"
	"os"

	plog "github.com/phuslu/log"
	cli "github.com/urfave/cli/v2"

	"github.com/tekert/eventtrace/etw"
	"github.com/tekert/eventtrace/internal/config"
)

const (
	formatFlagName   = "format"
	logLevelFlagName = "log-level"

	configMetadataKey = "config"
)

func main() {
	// Run() should not return an error because of ExitErrHandler, but just in case ...
	if err := app().Run(os.Args); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}

var appCommands = []*cli.Command{
	providerConfigCommand,
	guidCommand,
	keywordsCommand,
	providerOptionCommand,
	providersCommand,
	sessionCommand,
	logCommand,
	emitCommand,
}

func app() *cli.App {
	return &cli.App{
		Name:           "eventtrace",
		Usage:          "Start and stop ETW file sessions and read the .etl files they write",
		Commands:       appCommands,
		Before:         setup,
		ExitErrHandler: errHandler,
		// Provider selectors carry comma separated event IDs.
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    formatFlagName,
				Aliases: []string{"f"},
				Usage:   "output format, json or table",
				Value:   formatJSON,
			},
			&cli.StringFlag{
				Name:  logLevelFlagName,
				Usage: "library log level (trace, debug, info, warn, error, off); defaults to $" + config.EnvConfigPrefix + "_LOG_LEVEL",
			},
		},
	}
}

// setup loads the environment defaults and applies the log level.
func setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if c.IsSet(logLevelFlagName) {
		cfg.LogLevel = c.String(logLevelFlagName)
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if level > plog.ErrorLevel {
		etw.DisableLogging()
	} else {
		etw.SetLogLevelsAll(level)
	}
	logger := &plog.Logger{Level: level, Writer: &plog.IOWriter{Writer: c.App.ErrWriter}}
	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	if _, err := newPrinter(c); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	c.App.Metadata[configMetadataKey] = cfg
	return nil
}

// appConfig returns the configuration loaded by setup.
func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configMetadataKey].(*config.Config); ok {
		return cfg
	}
	cfg, err := config.Load()
	if err != nil {
		return &config.Config{SessionName: "eventtrace", BufferSizeKB: 64}
	}
	return cfg
}

func errHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(exitError(c, err))
}

// exitError prefixes err with the app and command name.
func exitError(c *cli.Context, err error) cli.ExitCoder {
	s := c.App.Name
	if c.Command != nil && c.Command.Name != "" {
		s += " " + c.Command.Name
	}
	return cli.Exit(fmt.Errorf("%s: %w", s, err), 1)
}
