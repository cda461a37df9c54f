package etw

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/tekert/eventtrace/internal/test"
)

func TestEventLogMissingParameters(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)
	ctx := context.Background()

	_, err := ReadEventLog(ctx, "")
	tt.ExpectErr(err, ErrMissingParameter)

	_, err = ProcessEventLog(ctx, "trace.etl", nil)
	tt.ExpectErr(err, ErrMissingParameter)
}

func TestEventLogMissingFile(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	path := filepath.Join(t.TempDir(), "does-not-exist.etl")
	el, err := ReadEventLog(context.Background(), path)
	tt.ExpectErr(err, fs.ErrNotExist)
	tt.Assert(el == nil)
}

func TestLogConfigWants(t *testing.T) {
	t.Parallel()

	a := *MustParseGUID("22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716")
	b := *MustParseGUID("edd08927-9cc4-4e65-b970-c2560fb5c289")

	tests := []struct {
		name     string
		opts     []LogOption
		provider GUID
		id       uint16
		want     bool
	}{
		{"No Filters", nil, a, 1, true},
		{"Provider Match", []LogOption{WithProviderFilter(a)}, a, 1, true},
		{"Provider Miss", []LogOption{WithProviderFilter(a)}, b, 1, false},
		{"Providers Accumulate", []LogOption{WithProviderFilter(a), WithProviderFilter(b)}, b, 1, true},
		{"Event ID Match", []LogOption{WithEventIDFilter(1, 2)}, a, 2, true},
		{"Event ID Miss", []LogOption{WithEventIDFilter(1, 2)}, a, 3, false},
		{"Both Must Match", []LogOption{WithProviderFilter(a), WithEventIDFilter(5)}, b, 5, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tt := test.FromT(t)
			var cfg logConfig
			for _, opt := range tc.opts {
				opt(&cfg)
			}
			tt.Equal(cfg.wants(&tc.provider, tc.id), tc.want)
		})
	}
}

func TestLogOptions(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	var cfg logConfig
	for _, opt := range []LogOption{WithMaxEvents(10), WithoutProperties()} {
		opt(&cfg)
	}
	tt.Equal(cfg.maxEvents, 10)
	tt.Assert(cfg.skipProperties)
}

func TestEventProperty(t *testing.T) {
	t.Parallel()
	tt := test.FromT(t)

	e := &Event{Properties: []EventProperty{
		{Name: "ProcessID", Value: "4"},
		{Name: "Image[0].Name", Value: "a.exe"},
		{Name: "ProcessID", Value: "8"},
	}}
	v, ok := e.Property("ProcessID")
	tt.Assert(ok)
	tt.Equal(v, "4")
	v, ok = e.Property("Image[0].Name")
	tt.Assert(ok)
	tt.Equal(v, "a.exe")
	_, ok = e.Property("Missing")
	tt.Assert(!ok)
}
