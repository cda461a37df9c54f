package main

import (
	"errors"
	"fmt"
	"strconv"

	cli "github.com/urfave/cli/v2"

	"github.com/tekert/eventtrace/etw"
)

var sessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Manage ETW file sessions",
	Subcommands: []*cli.Command{
		sessionStartCommand,
		sessionStopCommand,
		sessionDetailsCommand,
		sessionListCommand,
	},
}

var sessionStartCommand = &cli.Command{
	Name:  "start",
	Usage: "Start a session writing the given providers to an .etl file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "session name; defaults to $EVENTTRACE_SESSION_NAME",
		},
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Usage:    "path of the .etl file",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:     "provider",
			Aliases:  []string{"p"},
			Usage:    "(Name|GUID)[:Level[:EventIDs[:MatchAnyKeyword[:MatchAllKeyword]]]], repeatable",
			Required: true,
		},
		&cli.UintFlag{
			Name:  "buffer-size",
			Usage: "buffer size in KB",
		},
		&cli.UintFlag{
			Name:  "min-buffers",
			Usage: "minimum number of buffers",
		},
		&cli.UintFlag{
			Name:  "max-buffers",
			Usage: "maximum number of buffers",
		},
		&cli.DurationFlag{
			Name:  "flush-timer",
			Usage: "how often buffers are flushed to the file",
		},
		&cli.UintFlag{
			Name:  "max-file-size",
			Usage: "maximum file size in MB",
		},
		&cli.BoolFlag{
			Name:  "circular",
			Usage: "overwrite the oldest events once the maximum file size is reached",
		},
	},
	Action: startSession,
}

func startSession(c *cli.Context) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	name, opts, err := sessionOptions(c)
	if err != nil {
		return err
	}

	var providers []etw.ProviderConfig
	for _, s := range c.StringSlice("provider") {
		cfg, popts, err := etw.ParseProvider(s)
		if err != nil {
			return fmt.Errorf("invalid provider %q: %w", s, err)
		}
		providers = append(providers, cfg)
		opts = append(opts, etw.WithProviderOptions(cfg.GUID, popts))
	}

	details, err := etw.StartSession(name, c.String("output"), providers, opts...)
	if err != nil {
		return err
	}
	return printSession(p, *details)
}

// sessionOptions merges the environment defaults with the flags that were set.
func sessionOptions(c *cli.Context) (string, []etw.SessionOption, error) {
	cfg := *appConfig(c)
	if c.IsSet("name") {
		cfg.SessionName = c.String("name")
	}
	if c.IsSet("buffer-size") {
		cfg.BufferSizeKB = uint32(c.Uint("buffer-size"))
	}
	if c.IsSet("min-buffers") {
		cfg.MinimumBuffers = uint32(c.Uint("min-buffers"))
	}
	if c.IsSet("max-buffers") {
		cfg.MaximumBuffers = uint32(c.Uint("max-buffers"))
	}
	if c.IsSet("flush-timer") {
		cfg.FlushTimer = c.Duration("flush-timer")
	}
	if c.IsSet("max-file-size") {
		cfg.MaximumFileSizeMB = uint32(c.Uint("max-file-size"))
	}
	if c.IsSet("circular") {
		cfg.Circular = c.Bool("circular")
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return cfg.SessionName, cfg.SessionOptions(), nil
}

var sessionStopCommand = &cli.Command{
	Name:      "stop",
	Usage:     "Stop a session and print its final statistics",
	ArgsUsage: "NAME",
	Action: func(c *cli.Context) error {
		return sessionControl(c, etw.StopSession)
	},
}

var sessionDetailsCommand = &cli.Command{
	Name:      "details",
	Usage:     "Print the properties and statistics of a running session",
	ArgsUsage: "NAME",
	Action: func(c *cli.Context) error {
		return sessionControl(c, etw.GetSessionDetails)
	},
}

func sessionControl(c *cli.Context, control func(string) (*etw.SessionDetails, error)) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one session name")
	}
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	details, err := control(c.Args().First())
	if err != nil {
		return err
	}
	return printSession(p, *details)
}

var sessionListCommand = &cli.Command{
	Name:  "list",
	Usage: "List every session running on the system",
	Action: func(c *cli.Context) error {
		p, err := newPrinter(c)
		if err != nil {
			return err
		}
		sessions, err := etw.ListSessions()
		if err != nil {
			return err
		}
		return printSessions(p, sessions)
	},
}

func printSession(p *printer, s etw.SessionDetails) error {
	if !p.table() {
		return p.json(s)
	}
	return sessionRows(p, []etw.SessionDetails{s})
}

func printSessions(p *printer, sessions []etw.SessionDetails) error {
	if !p.table() {
		return p.json(sessions)
	}
	return sessionRows(p, sessions)
}

func sessionRows(p *printer, sessions []etw.SessionDetails) error {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.Name,
			strconv.FormatUint(uint64(s.BufferSizeKB), 10),
			strconv.FormatUint(uint64(s.NumberOfBuffers), 10),
			strconv.FormatUint(uint64(s.EventsLost), 10),
			strconv.FormatUint(uint64(s.BuffersWritten), 10),
			s.ClockType.String(),
			s.LogFile,
		})
	}
	return p.rows([]string{"NAME", "BUFFER KB", "BUFFERS", "EVENTS LOST", "WRITTEN", "CLOCK", "LOG FILE"}, rows)
}
