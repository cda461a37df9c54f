// Package config loads the eventtrace defaults from EVENTTRACE_* environment
// variables. Command line flags override them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/kelseyhightower/envconfig"
	plog "github.com/phuslu/log"

	"github.com/tekert/eventtrace/etw"
)

// EnvConfigPrefix is the prefix of every environment variable read by Load.
const EnvConfigPrefix = "EVENTTRACE"

// Config holds the session defaults and the log level.
type Config struct {
	LogLevel    string `default:"INFO" split_words:"true"`
	SessionName string `default:"eventtrace" split_words:"true"`

	BufferSizeKB      uint32        `default:"64" envconfig:"BUFFER_SIZE_KB"`
	MinimumBuffers    uint32        `default:"0" split_words:"true"`
	MaximumBuffers    uint32        `default:"0" split_words:"true"`
	FlushTimer        time.Duration `default:"1s" split_words:"true"`
	MaximumFileSizeMB uint32        `default:"0" envconfig:"MAXIMUM_FILE_SIZE_MB"`
	Circular          bool          `default:"false"`
}

func (cfg Config) String() string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(EnvConfigPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionName == "" {
		errs = append(errs, errors.New(EnvConfigPrefix+"_SESSION_NAME cannot be empty"))
	}
	if cfg.BufferSizeKB == 0 {
		errs = append(errs, errors.New(EnvConfigPrefix+"_BUFFER_SIZE_KB cannot be 0"))
	}
	if cfg.MaximumBuffers > 0 && cfg.MinimumBuffers > cfg.MaximumBuffers {
		errs = append(errs, fmt.Errorf("%s_MINIMUM_BUFFERS (%d) exceeds %s_MAXIMUM_BUFFERS (%d)",
			EnvConfigPrefix, cfg.MinimumBuffers, EnvConfigPrefix, cfg.MaximumBuffers))
	}
	if cfg.FlushTimer < 0 {
		errs = append(errs, errors.New(EnvConfigPrefix+"_FLUSH_TIMER cannot be negative"))
	}
	if cfg.Circular && cfg.MaximumFileSizeMB == 0 {
		errs = append(errs, errors.New(EnvConfigPrefix+"_CIRCULAR needs "+EnvConfigPrefix+"_MAXIMUM_FILE_SIZE_MB"))
	}
	return errors.Join(errs...)
}

// SessionOptions translates the buffer settings for etw.StartSession.
func (cfg *Config) SessionOptions() []etw.SessionOption {
	opts := []etw.SessionOption{
		etw.WithBufferSize(cfg.BufferSizeKB),
		etw.WithBuffers(cfg.MinimumBuffers, cfg.MaximumBuffers),
		etw.WithFlushTimer(cfg.FlushTimer),
		etw.WithMaximumFileSize(cfg.MaximumFileSizeMB),
	}
	if cfg.Circular {
		opts = append(opts, etw.WithCircular())
	}
	return opts
}

// ParseLevel maps a level name to a phuslu/log level. "off" disables logging.
func ParseLevel(s string) (plog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return plog.TraceLevel, nil
	case "debug":
		return plog.DebugLevel, nil
	case "info", "":
		return plog.InfoLevel, nil
	case "warn", "warning":
		return plog.WarnLevel, nil
	case "error":
		return plog.ErrorLevel, nil
	case "off", "none":
		return 99, nil
	}
	return plog.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
