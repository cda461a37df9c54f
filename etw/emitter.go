package etw

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrEmitterClosed is returned by Emit after Close.
var ErrEmitterClosed = errors.New("emitter is closed")

// eventWriter is the provider behind an Emitter.
type eventWriter interface {
	writeEvent(name string, level uint8, keyword uint64, fields []EventProperty) error
	enabled() bool
	close() error
}

// Emitter is a TraceLogging provider registered by this process. Its GUID is
// derived from the name, so a session can enable it before it exists.
// Events written while no session has the provider enabled are dropped.
type Emitter struct {
	name string
	guid GUID

	mu     sync.Mutex
	closed bool
	w      eventWriter
}

// NewEmitter registers a TraceLogging provider with this name.
func NewEmitter(name string) (*Emitter, error) {
	if name == "" {
		return nil, missing("provider name")
	}
	w, guid, err := newEventWriter(name)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("provider", name).Str("guid", guid.String()).Msg("emitter registered")
	return &Emitter{name: name, guid: guid, w: w}, nil
}

func (e *Emitter) Name() string { return e.name }

func (e *Emitter) GUID() GUID { return e.guid }

// Enabled reports whether any session has the provider enabled.
func (e *Emitter) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.w.enabled()
}

// ProviderConfig returns an enabled config for this provider with all keywords.
func (e *Emitter) ProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:     e.name,
		GUID:     e.guid,
		Keywords: AllKeywords,
		Enabled:  true,
	}
}

// Emit writes one event. Fields become string properties, written in key
// order.
func (e *Emitter) Emit(ctx context.Context, eventName string, level uint8, keyword uint64, fields map[string]string) error {
	if eventName == "" {
		return missing("event name")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	props := make([]EventProperty, 0, len(fields))
	for k, v := range fields {
		props = append(props, EventProperty{Name: k, Value: v})
	}
	slices.SortFunc(props, func(a, b EventProperty) int { return cmp.Compare(a.Name, b.Name) })

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEmitterClosed
	}
	return e.w.writeEvent(eventName, level, keyword, props)
}

// Close unregisters the provider. Calling it more than once is a no-op.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.w.close()
}
