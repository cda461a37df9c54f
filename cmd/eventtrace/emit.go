package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/tekert/eventtrace/etw"
)

var emitCommand = &cli.Command{
	Name:      "emit",
	Usage:     "Write TraceLogging events from a provider registered by this process",
	ArgsUsage: "[KEY=VALUE...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "provider",
			Aliases:  []string{"p"},
			Usage:    "provider name, its GUID is derived from it",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "event",
			Usage: "event name",
			Value: "Message",
		},
		&cli.StringFlag{
			Name:  "level",
			Usage: "event level",
			Value: "4",
		},
		&cli.StringFlag{
			Name:  "keyword",
			Usage: "event keyword mask",
			Value: "0x1",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of events to write",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "how long to wait for a session to enable the provider",
			Value: 5 * time.Second,
		},
	},
	Action: emitEvents,
}

// emitResult is what emit prints once done.
type emitResult struct {
	Provider etw.ProviderConfig `json:"provider"`
	Written  int                `json:"written"`
}

func emitEvents(c *cli.Context) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	fields, err := parseFields(c.Args().Slice())
	if err != nil {
		return err
	}
	level, err := parseUint(c.String("level"), 8)
	if err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	keyword, err := parseUint(c.String("keyword"), 64)
	if err != nil {
		return fmt.Errorf("invalid keyword: %w", err)
	}
	count := c.Int("count")
	if count < 1 {
		return fmt.Errorf("invalid count %d", count)
	}

	e, err := etw.NewEmitter(c.String("provider"))
	if err != nil {
		return err
	}
	defer e.Close()

	if !waitEnabled(e, c.Duration("wait")) {
		return fmt.Errorf("no session enabled provider %s within %s, start one with: session start -p %s",
			e.GUID().StringU(), c.Duration("wait"), e.GUID().StringU())
	}

	res := emitResult{Provider: e.ProviderConfig()}
	for range count {
		if err := e.Emit(c.Context, c.String("event"), uint8(level), keyword, fields); err != nil {
			return err
		}
		res.Written++
	}

	if p.table() {
		return p.fields([][2]string{
			{"Provider", res.Provider.Name},
			{"GUID", res.Provider.GUID.StringU()},
			{"Written", strconv.Itoa(res.Written)},
		})
	}
	return p.json(res)
}

// waitEnabled polls until a session enables e or d elapses.
func waitEnabled(e *etw.Emitter, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for !e.Enabled() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	return true
}

// parseFields turns KEY=VALUE arguments into event fields.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, expected KEY=VALUE", arg)
		}
		if _, dup := fields[k]; dup {
			return nil, errors.New("duplicate field " + k)
		}
		fields[k] = v
	}
	return fields, nil
}
