package etw

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrStop can be returned by a ProcessEventLog callback to stop reading
// without reporting an error.
var ErrStop = errors.New("stop processing")

// ProviderRef names the provider of an event.
type ProviderRef struct {
	Name string `json:"name"`
	GUID GUID   `json:"guid"`
}

// EventProperty is one decoded payload field. Nested structs are flattened
// as Parent[i].Member.
type EventProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event is a decoded event read from an .etl file.
type Event struct {
	Provider    ProviderRef `json:"provider"`
	EventID     uint16      `json:"eventID"`
	Version     uint8       `json:"version"`
	Channel     uint8       `json:"channel"`
	Level       uint8       `json:"level"`
	Opcode      uint8       `json:"opcode"`
	Task        uint16      `json:"task"`
	Keywords    uint64      `json:"keywords"`
	ProcessID   uint32      `json:"processID"`
	ThreadID    uint32      `json:"threadID"`
	ProcessorID uint16      `json:"processorID"`
	Timestamp   time.Time   `json:"timestamp"`
	ActivityID  GUID        `json:"activityID"`
	TaskName    string      `json:"taskName,omitempty"`
	OpcodeName  string      `json:"opcodeName,omitempty"`
	EventName   string      `json:"eventName,omitempty"`

	Properties []EventProperty `json:"properties,omitempty"`

	// RawData holds the payload as upper-case hex when it could not be
	// decoded, for events without a schema or with a broken one.
	RawData string `json:"rawData,omitempty"`
}

// Property returns the value of the first property with this name.
func (e *Event) Property(name string) (string, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// LogHeader describes the session that wrote an .etl file.
type LogHeader struct {
	LoggerName         string    `json:"loggerName"`
	LogFile            string    `json:"logFile"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	BootTime           time.Time `json:"bootTime"`
	EventsLost         uint32    `json:"eventsLost"`
	BuffersWritten     uint32    `json:"buffersWritten"`
	BuffersLost        uint32    `json:"buffersLost"`
	PointerSize        uint32    `json:"pointerSize"`
	NumberOfProcessors uint32    `json:"numberOfProcessors"`
	CPUSpeedMHz        uint32    `json:"cpuSpeedMHz"`
	TimerResolution    uint32    `json:"timerResolution"` // 100ns units
}

// EventLog is the full content of an .etl file.
type EventLog struct {
	Header LogHeader `json:"header"`
	Events []Event   `json:"events"`
}

type logConfig struct {
	maxEvents      int
	providers      map[GUID]struct{}
	eventIDs       map[uint16]struct{}
	skipProperties bool
}

func (c *logConfig) wants(provider *GUID, eventID uint16) bool {
	if len(c.providers) > 0 {
		if _, ok := c.providers[*provider]; !ok {
			return false
		}
	}
	if len(c.eventIDs) > 0 {
		if _, ok := c.eventIDs[eventID]; !ok {
			return false
		}
	}
	return true
}

// LogOption configures ReadEventLog and ProcessEventLog.
type LogOption func(*logConfig)

// WithMaxEvents stops reading after n events passed the filters. Zero means no limit.
func WithMaxEvents(n int) LogOption {
	return func(c *logConfig) { c.maxEvents = n }
}

// WithProviderFilter keeps only events of these providers.
func WithProviderFilter(guids ...GUID) LogOption {
	return func(c *logConfig) {
		if c.providers == nil {
			c.providers = make(map[GUID]struct{}, len(guids))
		}
		for _, g := range guids {
			c.providers[g] = struct{}{}
		}
	}
}

// WithEventIDFilter keeps only events with these IDs.
func WithEventIDFilter(ids ...uint16) LogOption {
	return func(c *logConfig) {
		if c.eventIDs == nil {
			c.eventIDs = make(map[uint16]struct{}, len(ids))
		}
		for _, id := range ids {
			c.eventIDs[id] = struct{}{}
		}
	}
}

// WithoutProperties skips payload decoding, events only carry their header
// fields. Much faster on large files.
func WithoutProperties() LogOption {
	return func(c *logConfig) { c.skipProperties = true }
}

// ProcessEventLog reads an .etl file and calls fn for every event in file
// order. fn can return ErrStop to end early; any other error stops reading
// and is returned.
// Cancelling ctx stops reading at the next buffer boundary.
func ProcessEventLog(ctx context.Context, path string, fn func(*Event) error, opts ...LogOption) (LogHeader, error) {
	if path == "" {
		return LogHeader{}, missing("path")
	}
	if fn == nil {
		return LogHeader{}, missing("event callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return LogHeader{}, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return LogHeader{}, err
	}

	var cfg logConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return processLogFile(ctx, abs, &cfg, fn)
}

// ReadEventLog reads a whole .etl file into memory.
func ReadEventLog(ctx context.Context, path string, opts ...LogOption) (*EventLog, error) {
	el := &EventLog{}
	header, err := ProcessEventLog(ctx, path, func(e *Event) error {
		el.Events = append(el.Events, *e)
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	el.Header = header
	return el, nil
}
