package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/tekert/eventtrace/etw"
)

var logCommand = &cli.Command{
	Name:      "log",
	Usage:     "Read the events of an .etl file",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "max",
			Usage: "stop after this many events, 0 reads all",
		},
		&cli.StringSliceFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   "only print events of this provider (name or GUID), repeatable",
		},
		&cli.StringFlag{
			Name:  "ids",
			Usage: "comma separated event IDs to print",
		},
		&cli.BoolFlag{
			Name:  "no-properties",
			Usage: "skip payload decoding",
		},
		&cli.BoolFlag{
			Name:  "header",
			Usage: "print the file header after the events",
		},
	},
	Action: readLog,
}

func readLog(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one .etl file")
	}
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	opts, err := logOptions(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tw *tabwriter.Writer
	fn := func(e *etw.Event) error { return p.jsonLine(e) }
	if p.table() {
		tw = tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tPROVIDER\tID\tLEVEL\tPID\tTID\tEVENT\tPROPERTIES")
		fn = func(e *etw.Event) error {
			_, err := fmt.Fprintln(tw, strings.Join(eventRow(e), "\t"))
			return err
		}
	}

	header, err := etw.ProcessEventLog(ctx, c.Args().First(), fn, opts...)
	if tw != nil {
		if ferr := tw.Flush(); err == nil {
			err = ferr
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(c.App.ErrWriter, "interrupted")
		}
		return err
	}

	if c.Bool("header") {
		if p.table() {
			return p.fields(headerFields(&header))
		}
		return p.json(header)
	}
	return nil
}

func logOptions(c *cli.Context) ([]etw.LogOption, error) {
	var opts []etw.LogOption
	if n := c.Int("max"); n > 0 {
		opts = append(opts, etw.WithMaxEvents(n))
	} else if n < 0 {
		return nil, fmt.Errorf("invalid max events %d", n)
	}

	providers := c.StringSlice("provider")
	if len(providers) > 0 {
		guids := make([]etw.GUID, 0, len(providers))
		for _, s := range providers {
			m, err := etw.ResolveProvider(s)
			if err != nil {
				return nil, err
			}
			guids = append(guids, m.GUID)
		}
		opts = append(opts, etw.WithProviderFilter(guids...))
	}

	ids, err := parseIDList(c.String("ids"))
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		opts = append(opts, etw.WithEventIDFilter(ids...))
	}
	if c.Bool("no-properties") {
		opts = append(opts, etw.WithoutProperties())
	}
	return opts, nil
}

func eventRow(e *etw.Event) []string {
	provider := e.Provider.Name
	if provider == "" {
		provider = e.Provider.GUID.StringU()
	}
	name := e.EventName
	if name == "" {
		name = strings.Trim(e.TaskName+"/"+e.OpcodeName, "/")
	}

	var props strings.Builder
	for i, prop := range e.Properties {
		if i > 0 {
			props.WriteByte(' ')
		}
		props.WriteString(prop.Name)
		props.WriteByte('=')
		props.WriteString(prop.Value)
	}
	if e.RawData != "" {
		if props.Len() > 0 {
			props.WriteByte(' ')
		}
		props.WriteString("raw=" + e.RawData)
	}

	return []string{
		e.Timestamp.Format(time.RFC3339Nano),
		provider,
		strconv.FormatUint(uint64(e.EventID), 10),
		strconv.FormatUint(uint64(e.Level), 10),
		strconv.FormatUint(uint64(e.ProcessID), 10),
		strconv.FormatUint(uint64(e.ThreadID), 10),
		name,
		props.String(),
	}
}

func headerFields(h *etw.LogHeader) [][2]string {
	return [][2]string{
		{"LoggerName", h.LoggerName},
		{"LogFile", h.LogFile},
		{"StartTime", h.StartTime.Format(time.RFC3339Nano)},
		{"EndTime", h.EndTime.Format(time.RFC3339Nano)},
		{"EventsLost", strconv.FormatUint(uint64(h.EventsLost), 10)},
		{"BuffersWritten", strconv.FormatUint(uint64(h.BuffersWritten), 10)},
		{"BuffersLost", strconv.FormatUint(uint64(h.BuffersLost), 10)},
		{"Processors", strconv.FormatUint(uint64(h.NumberOfProcessors), 10)},
	}
}
