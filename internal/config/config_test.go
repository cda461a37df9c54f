package config

import (
	"testing"
	"time"

	plog "github.com/phuslu/log"

	"github.com/tekert/eventtrace/internal/test"
)

// Tests here use t.Setenv and cannot run in parallel.

func TestLoadDefaults(t *testing.T) {
	tt := test.FromT(t)

	cfg, err := Load()
	tt.CheckErr(err)
	tt.Equal(*cfg, Config{
		LogLevel:     "INFO",
		SessionName:  "eventtrace",
		BufferSizeKB: 64,
		FlushTimer:   time.Second,
	})
	tt.Equal(len(cfg.SessionOptions()), 4)
}

func TestLoadFromEnv(t *testing.T) {
	tt := test.FromT(t)

	t.Setenv("EVENTTRACE_LOG_LEVEL", "debug")
	t.Setenv("EVENTTRACE_SESSION_NAME", "my-trace")
	t.Setenv("EVENTTRACE_BUFFER_SIZE_KB", "256")
	t.Setenv("EVENTTRACE_MINIMUM_BUFFERS", "8")
	t.Setenv("EVENTTRACE_MAXIMUM_BUFFERS", "64")
	t.Setenv("EVENTTRACE_FLUSH_TIMER", "5s")
	t.Setenv("EVENTTRACE_MAXIMUM_FILE_SIZE_MB", "100")
	t.Setenv("EVENTTRACE_CIRCULAR", "true")

	cfg, err := Load()
	tt.CheckErr(err)
	tt.Equal(*cfg, Config{
		LogLevel:          "debug",
		SessionName:       "my-trace",
		BufferSizeKB:      256,
		MinimumBuffers:    8,
		MaximumBuffers:    64,
		FlushTimer:        5 * time.Second,
		MaximumFileSizeMB: 100,
		Circular:          true,
	})
	tt.Equal(len(cfg.SessionOptions()), 5)

	lvl, err := ParseLevel(cfg.LogLevel)
	tt.CheckErr(err)
	tt.Equal(lvl, plog.DebugLevel)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Bad Number", map[string]string{"EVENTTRACE_BUFFER_SIZE_KB": "big"}},
		{"Zero Buffer Size", map[string]string{"EVENTTRACE_BUFFER_SIZE_KB": "0"}},
		{"Bad Level", map[string]string{"EVENTTRACE_LOG_LEVEL": "loud"}},
		{"Min Above Max", map[string]string{"EVENTTRACE_MINIMUM_BUFFERS": "10", "EVENTTRACE_MAXIMUM_BUFFERS": "2"}},
		{"Circular Without Size", map[string]string{"EVENTTRACE_CIRCULAR": "true"}},
		{"Bad Duration", map[string]string{"EVENTTRACE_FLUSH_TIMER": "soon"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := test.FromT(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			tt.ExpectErr(err, nil)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tt := test.FromT(t)

	for in, want := range map[string]plog.Level{
		"TRACE":   plog.TraceLevel,
		"Debug":   plog.DebugLevel,
		"":        plog.InfoLevel,
		"warning": plog.WarnLevel,
		"error":   plog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		tt.CheckErr(err)
		tt.Equal(got, want)
	}
	_, err := ParseLevel("verbose")
	tt.ExpectErr(err, nil)
}
