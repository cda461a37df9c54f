package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v2"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// printer writes command results as indented JSON or as aligned columns.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(c *cli.Context) (*printer, error) {
	format := strings.ToLower(c.String(formatFlagName))
	switch format {
	case "":
		format = formatJSON
	case formatJSON, formatTable:
	default:
		return nil, fmt.Errorf("unknown output format %q, use %s or %s", format, formatJSON, formatTable)
	}
	return &printer{w: c.App.Writer, format: format}, nil
}

func (p *printer) table() bool { return p.format == formatTable }

// json writes v as indented JSON.
func (p *printer) json(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}

// jsonLine writes v as a single JSON line, for streams of events.
func (p *printer) jsonLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}

// rows writes a header and one tab separated line per row.
func (p *printer) rows(header []string, rows [][]string) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	return w.Flush()
}

// fields writes name/value pairs, one per line.
func (p *printer) fields(pairs [][2]string) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 3, ' ', 0)
	for _, kv := range pairs {
		fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
	}
	return w.Flush()
}
