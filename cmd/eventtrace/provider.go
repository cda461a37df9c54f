package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/tekert/eventtrace/etw"
	"github.com/tekert/eventtrace/internal/hexf"
)

var providerConfigCommand = &cli.Command{
	Name:      "provider-config",
	Usage:     "Print a provider config; empty and disabled unless a provider is given",
	ArgsUsage: "[NAME|GUID]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "keywords",
			Usage: "MatchAnyKeyword mask, e.g. 0x10",
		},
		&cli.BoolFlag{
			Name:  "disabled",
			Usage: "leave the config disabled",
		},
	},
	Action: providerConfig,
}

func providerConfig(c *cli.Context) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}

	cfg := etw.NewProviderConfig()
	if c.NArg() > 0 {
		if cfg, err = etw.ProviderConfigFor(c.Args().First()); err != nil {
			return err
		}
	}
	if c.IsSet("keywords") {
		if cfg.Keywords, err = parseUint(c.String("keywords"), 64); err != nil {
			return fmt.Errorf("invalid keywords: %w", err)
		}
	}
	if c.Bool("disabled") {
		cfg.Enabled = false
	}

	if p.table() {
		return p.fields([][2]string{
			{"Name", cfg.Name},
			{"GUID", cfg.GUID.StringU()},
			{"Keywords", hexf.NUm64p(cfg.Keywords)},
			{"Enabled", strconv.FormatBool(cfg.Enabled)},
		})
	}
	return p.json(cfg)
}

var guidCommand = &cli.Command{
	Name:      "guid",
	Usage:     "Convert an installed provider name to its GUID",
	ArgsUsage: "NAME",
	Action:    providerGUID,
}

func providerGUID(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one provider name")
	}
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	guid, err := etw.ConvertToGUID(c.Args().First())
	if err != nil {
		return err
	}
	if p.table() {
		_, err = fmt.Fprintln(p.w, guid.StringU())
		return err
	}
	return p.json(guid)
}

var keywordsCommand = &cli.Command{
	Name:      "keywords",
	Usage:     "List the keywords a provider publishes, sorted by value",
	ArgsUsage: "NAME|GUID",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "levels",
			Usage: "list the levels instead",
		},
	},
	Action: providerKeywords,
}

func providerKeywords(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one provider")
	}
	p, err := newPrinter(c)
	if err != nil {
		return err
	}

	get := etw.GetProviderKeywords
	if c.Bool("levels") {
		get = etw.GetProviderLevels
	}
	keywords, err := get(c.Args().First())
	if err != nil {
		return err
	}

	if p.table() {
		rows := make([][]string, 0, len(keywords))
		for _, k := range keywords {
			rows = append(rows, []string{hexf.NUm64p(k.Value), k.Name, k.Description})
		}
		return p.rows([]string{"VALUE", "NAME", "DESCRIPTION"}, rows)
	}
	return p.json(keywords)
}

var providerOptionCommand = &cli.Command{
	Name:  "provider-option",
	Usage: "Print validated provider options, defaults unless flags are given",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "level",
			Usage: "maximum event level, 0xff for all",
		},
		&cli.StringFlag{
			Name:  "match-all",
			Usage: "MatchAllKeyword mask",
		},
		&cli.StringSliceFlag{
			Name:  "pid",
			Usage: "only trace these processes (at most 8)",
		},
		&cli.StringSliceFlag{
			Name:  "exe",
			Usage: "only trace processes started from these images",
		},
		&cli.StringFlag{
			Name:  "enable-ids",
			Usage: "comma separated event IDs to keep",
		},
		&cli.StringFlag{
			Name:  "disable-ids",
			Usage: "comma separated event IDs to drop",
		},
		&cli.BoolFlag{
			Name:  "stacks",
			Usage: "record a call stack with every event",
		},
	},
	Action: providerOption,
}

func providerOption(c *cli.Context) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	opts, err := providerOptionsFromFlags(c)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	if p.table() {
		return p.fields([][2]string{
			{"Level", hexf.Num64(uint64(opts.Level))},
			{"MatchAllKeywords", hexf.Num64(opts.MatchAllKeywords)},
			{"ProcessIDs", fmt.Sprint(opts.ProcessIDs)},
			{"ExecutableNames", strings.Join(opts.ExecutableNames, ",")},
			{"EventIDsToEnable", fmt.Sprint(opts.EventIDsToEnable)},
			{"EventIDsToDisable", fmt.Sprint(opts.EventIDsToDisable)},
			{"StacksEnabled", strconv.FormatBool(opts.StacksEnabled)},
			{"EnableProperties", hexf.Num64(uint64(opts.EnableProperties))},
		})
	}
	return p.json(opts)
}

func providerOptionsFromFlags(c *cli.Context) (etw.ProviderOptions, error) {
	opts := etw.NewProviderOption()
	if c.IsSet("level") {
		u, err := parseUint(c.String("level"), 8)
		if err != nil {
			return opts, fmt.Errorf("invalid level: %w", err)
		}
		opts.Level = uint8(u)
	}
	if c.IsSet("match-all") {
		u, err := parseUint(c.String("match-all"), 64)
		if err != nil {
			return opts, fmt.Errorf("invalid match-all keywords: %w", err)
		}
		opts.MatchAllKeywords = u
	}
	for _, s := range c.StringSlice("pid") {
		u, err := parseUint(s, 32)
		if err != nil {
			return opts, fmt.Errorf("invalid process ID: %w", err)
		}
		opts.ProcessIDs = append(opts.ProcessIDs, uint32(u))
	}
	opts.ExecutableNames = c.StringSlice("exe")

	var err error
	if opts.EventIDsToEnable, err = parseIDList(c.String("enable-ids")); err != nil {
		return opts, err
	}
	if opts.EventIDsToDisable, err = parseIDList(c.String("disable-ids")); err != nil {
		return opts, err
	}
	opts.StacksEnabled = c.Bool("stacks")
	return opts, nil
}

var providersCommand = &cli.Command{
	Name:  "providers",
	Usage: "List the providers registered on this system",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "filter",
			Usage: "only list providers whose name contains this text (case-insensitive)",
		},
	},
	Action: listProviders,
}

func listProviders(c *cli.Context) error {
	p, err := newPrinter(c)
	if err != nil {
		return err
	}
	list, err := etw.ListProviders()
	if err != nil {
		return err
	}
	list = filterProviders(list, c.String("filter"))

	if p.table() {
		rows := make([][]string, 0, len(list))
		for _, m := range list {
			rows = append(rows, []string{m.GUID.StringU(), m.SchemaSource, m.Name})
		}
		return p.rows([]string{"GUID", "SCHEMA", "NAME"}, rows)
	}
	return p.json(list)
}

func filterProviders(list []etw.ProviderMetadata, filter string) []etw.ProviderMetadata {
	if filter == "" {
		return list
	}
	filter = strings.ToLower(filter)
	out := make([]etw.ProviderMetadata, 0, len(list))
	for _, m := range list {
		if strings.Contains(strings.ToLower(m.Name), filter) {
			out = append(out, m)
		}
	}
	return out
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
}

// parseIDList parses a comma separated list of event IDs.
func parseIDList(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint16, 0, len(parts))
	for _, part := range parts {
		u, err := parseUint(part, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid event ID %q: %w", part, err)
		}
		ids = append(ids, uint16(u))
	}
	return ids, nil
}
