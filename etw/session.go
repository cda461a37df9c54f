package etw

// Important documentation "hidden" in the Remarks section:
// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-enabletraceex2

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MinimumSessionFileSize is the size an .etl file reaches once its session has
// been stopped, even with no events: the header plus one flushed buffer per CPU.
const MinimumSessionFileSize = 64 * 1024

// LogFileMode flags.
//
// https://learn.microsoft.com/en-us/windows/win32/etw/logging-mode-constants
const (
	EVENT_TRACE_FILE_MODE_NONE       = 0x00000000
	EVENT_TRACE_FILE_MODE_SEQUENTIAL = 0x00000001
	EVENT_TRACE_FILE_MODE_CIRCULAR   = 0x00000002
	EVENT_TRACE_FILE_MODE_APPEND     = 0x00000004
	EVENT_TRACE_FILE_MODE_NEWFILE    = 0x00000008
	EVENT_TRACE_REAL_TIME_MODE       = 0x00000100
	EVENT_TRACE_USE_PAGED_MEMORY     = 0x01000000
)

// ControlTrace codes.
const (
	EVENT_TRACE_CONTROL_QUERY  = 0
	EVENT_TRACE_CONTROL_STOP   = 1
	EVENT_TRACE_CONTROL_UPDATE = 2
	EVENT_TRACE_CONTROL_FLUSH  = 3
)

// ClockType is the timer a session stamps events with (Wnode.ClientContext).
type ClockType uint32

const (
	ClockQPC        ClockType = 1
	ClockSystemTime ClockType = 2
	ClockCPUCycle   ClockType = 3
)

func (c ClockType) String() string {
	switch c {
	case ClockQPC:
		return "QPC"
	case ClockSystemTime:
		return "SystemTime"
	case ClockCPUCycle:
		return "CPUCycle"
	}
	return fmt.Sprintf("ClockType(%d)", uint32(c))
}

// SessionDetails is a snapshot of a session's properties and statistics as
// reported by ControlTrace.
type SessionDetails struct {
	Name                string    `json:"name"`
	GUID                GUID      `json:"guid"`
	LogFile             string    `json:"logFile"`
	LogFileMode         uint32    `json:"logFileMode"`
	BufferSizeKB        uint32    `json:"bufferSizeKB"`
	MinimumBuffers      uint32    `json:"minimumBuffers"`
	MaximumBuffers      uint32    `json:"maximumBuffers"`
	MaximumFileSizeMB   uint32    `json:"maximumFileSizeMB"`
	FlushTimer          uint32    `json:"flushTimer"` // seconds
	NumberOfBuffers     uint32    `json:"numberOfBuffers"`
	FreeBuffers         uint32    `json:"freeBuffers"`
	EventsLost          uint32    `json:"eventsLost"`
	BuffersWritten      uint32    `json:"buffersWritten"`
	LogBuffersLost      uint32    `json:"logBuffersLost"`
	RealTimeBuffersLost uint32    `json:"realTimeBuffersLost"`
	LoggerThreadID      uint64    `json:"loggerThreadID"`
	ClockType           ClockType `json:"clockType"`
}

// sessionConfig holds what SessionOptions set before StartTrace.
type sessionConfig struct {
	bufferSizeKB  uint32
	minBuffers    uint32
	maxBuffers    uint32
	flushTimer    uint32
	maxFileSizeMB uint32
	logFileMode   uint32
	providerOpts  map[GUID]ProviderOptions
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		// An event can be up to 64KB, smaller buffers lose the big ones.
		bufferSizeKB: 64,
		flushTimer:   1,
		logFileMode:  EVENT_TRACE_FILE_MODE_SEQUENTIAL,
		providerOpts: make(map[GUID]ProviderOptions),
	}
}

func (c *sessionConfig) validate() error {
	if c.minBuffers > 0 && c.maxBuffers > 0 && c.minBuffers > c.maxBuffers {
		return fmt.Errorf("minimum buffers (%d) exceed maximum buffers (%d)", c.minBuffers, c.maxBuffers)
	}
	if c.logFileMode&EVENT_TRACE_FILE_MODE_CIRCULAR != 0 && c.maxFileSizeMB == 0 {
		return errors.New("circular mode needs a maximum file size")
	}
	return nil
}

func (c *sessionConfig) options(guid GUID) ProviderOptions {
	if o, ok := c.providerOpts[guid]; ok {
		return o
	}
	return NewProviderOption()
}

// SessionOption configures StartSession.
type SessionOption func(*sessionConfig)

// WithBufferSize sets the size of each session buffer in KB (default 64).
func WithBufferSize(kb uint32) SessionOption {
	return func(c *sessionConfig) { c.bufferSizeKB = kb }
}

// WithBuffers sets the minimum and maximum number of buffers. Zero lets ETW pick.
func WithBuffers(minimum, maximum uint32) SessionOption {
	return func(c *sessionConfig) {
		c.minBuffers = minimum
		c.maxBuffers = maximum
	}
}

// WithFlushTimer sets how often buffers are flushed to the file. The timer has
// a resolution of one second.
func WithFlushTimer(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.flushTimer = uint32(d / time.Second) }
}

// WithMaximumFileSize caps the .etl file size in MB. Zero means no limit.
func WithMaximumFileSize(mb uint32) SessionOption {
	return func(c *sessionConfig) { c.maxFileSizeMB = mb }
}

// WithCircular makes the session overwrite the oldest events once the
// maximum file size is reached, instead of stopping.
func WithCircular() SessionOption {
	return func(c *sessionConfig) {
		c.logFileMode &^= EVENT_TRACE_FILE_MODE_SEQUENTIAL
		c.logFileMode |= EVENT_TRACE_FILE_MODE_CIRCULAR
	}
}

// WithProviderOptions sets the options the provider with this GUID is enabled
// with. Providers without options use NewProviderOption().
func WithProviderOptions(guid GUID, opts ProviderOptions) SessionOption {
	return func(c *sessionConfig) { c.providerOpts[guid] = opts }
}

// StartSession starts a named session writing to outputFile and enables every
// enabled provider in providers on it.
//
// A session that already uses the name is left running and an *ExistsError is
// returned. If a provider cannot be enabled the new session is stopped again
// before the error is returned.
//
// ETW sessions are a limited system resource (64 per system), stop them with
// StopSession when done. Running sessions can be listed with `logman query -ets`.
func StartSession(name, outputFile string, providers []ProviderConfig, opts ...SessionOption) (*SessionDetails, error) {
	if name == "" {
		return nil, missing("session name")
	}
	if outputFile == "" {
		return nil, missing("output file")
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options for session %q: %w", name, err)
	}

	enabled := make([]ProviderConfig, 0, len(providers))
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		if p.GUID.IsZero() {
			return nil, fmt.Errorf("provider %q has no GUID", p.Name)
		}
		o := cfg.options(p.GUID)
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("invalid options for provider %s: %w", providerLabel(ProviderMetadata{Name: p.Name, GUID: p.GUID}), err)
		}
		enabled = append(enabled, p)
	}
	if len(enabled) == 0 {
		return nil, ErrNoProviders
	}

	logFile, err := filepath.Abs(outputFile)
	if err != nil {
		return nil, fmt.Errorf("invalid output file %q: %w", outputFile, err)
	}
	if fi, err := os.Stat(filepath.Dir(logFile)); err != nil {
		return nil, fmt.Errorf("invalid output file %q: %w", outputFile, err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("invalid output file %q: %s is not a directory", outputFile, filepath.Dir(logFile))
	}

	handle, err := startTrace(name, logFile, &cfg)
	if err != nil {
		return nil, err
	}

	for i := range enabled {
		p := &enabled[i]
		o := cfg.options(p.GUID)
		if err := enableTrace(handle, p, &o); err != nil {
			if _, serr := controlTrace(name, EVENT_TRACE_CONTROL_STOP); serr != nil {
				seslog.Error().Err(serr).Str("session", name).Msg("failed to stop session after enable failure")
			}
			return nil, fmt.Errorf("failed to enable provider %s on session %q: %w",
				providerLabel(ProviderMetadata{Name: p.Name, GUID: p.GUID}), name, err)
		}
		seslog.Debug().Str("session", name).Str("provider", p.Name).
			Str("guid", p.GUID.String()).Uint64("keywords", p.Keywords).
			Uint8("level", o.Level).Msg("provider enabled")
	}

	details, err := controlTrace(name, EVENT_TRACE_CONTROL_QUERY)
	if err != nil {
		return nil, fmt.Errorf("session %q started but query failed: %w", name, err)
	}

	seslog.Info().Str("session", name).
		Str("logFile", details.LogFile).
		Int("providers", len(enabled)).
		Uint32("BufferSizeKB", details.BufferSizeKB).
		Uint32("MinBuffers", details.MinimumBuffers).
		Uint32("MaxBuffers", details.MaximumBuffers).
		Msg("Session started")
	return details, nil
}

// StopSession stops a session by name, flushing its buffers so the .etl file
// is complete, and returns its final statistics.
func StopSession(name string) (*SessionDetails, error) {
	if name == "" {
		return nil, missing("session name")
	}
	details, err := controlTrace(name, EVENT_TRACE_CONTROL_STOP)
	if err != nil {
		return nil, err
	}
	seslog.Info().Str("session", name).
		Uint32("EventsLost", details.EventsLost).
		Uint32("BuffersWritten", details.BuffersWritten).
		Msg("Session stopped")
	return details, nil
}

// GetSessionDetails queries a running session by name. Sessions started by
// other processes can be queried too.
func GetSessionDetails(name string) (*SessionDetails, error) {
	if name == "" {
		return nil, missing("session name")
	}
	return controlTrace(name, EVENT_TRACE_CONTROL_QUERY)
}

// FlushSession flushes the active buffers of a running session to its file.
func FlushSession(name string) error {
	if name == "" {
		return missing("session name")
	}
	_, err := controlTrace(name, EVENT_TRACE_CONTROL_FLUSH)
	return err
}

// ListSessions returns the details of every session running on the system.
func ListSessions() ([]SessionDetails, error) {
	return queryAllTraces()
}
