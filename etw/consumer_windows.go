//go:build windows && (amd64 || arm64)

package etw

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/tekert/eventtrace/internal/utf16f"

	"golang.org/x/sys/windows"
)

// consumer holds the state of one ProcessEventLog call. ProcessTrace runs the
// callbacks on the calling goroutine, so no locking is needed.
type consumer struct {
	ctx     context.Context
	cfg     *logConfig
	fn      func(*Event) error
	decoder *propertyDecoder

	header  LogHeader
	count   int
	stopped bool
	err     error
}

// The callbacks are created once, NewCallback slots are never released.
// Each open trace finds its consumer through EVENT_TRACE_LOGFILE.Context.
var (
	consumers  sync.Map // uintptr -> *consumer
	consumerID atomic.Uintptr

	eventRecordCallback = windows.NewCallback(func(rec *eventRecord) uintptr {
		if c, ok := consumers.Load(rec.UserContext); ok {
			c.(*consumer).handleEvent(rec)
		}
		return 0
	})

	// Returning FALSE makes ProcessTrace return ERROR_CANCELLED.
	bufferCallback = windows.NewCallback(func(lf *eventTraceLogfile) uintptr {
		c, ok := consumers.Load(lf.Context)
		if !ok || c.(*consumer).done() {
			return 0
		}
		return 1
	})
)

func (c *consumer) done() bool {
	return c.stopped || c.ctx.Err() != nil
}

func (c *consumer) stop(err error) {
	c.stopped = true
	if err != nil && c.err == nil {
		c.err = err
	}
}

func (c *consumer) handleEvent(rec *eventRecord) {
	// Events of the current buffer keep coming after a stop.
	if c.done() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.stop(fmt.Errorf("panic while handling event %d of provider %s: %v",
				rec.EventHeader.EventDescriptor.Id, rec.EventHeader.ProviderId.StringU(), r))
		}
	}()

	h := &rec.EventHeader
	if h.ProviderId == eventTraceGUID && h.EventDescriptor.Opcode == 0 {
		c.readHeaderEvent(rec)
		return
	}
	if !c.cfg.wants(&h.ProviderId, h.EventDescriptor.Id) {
		return
	}

	e := &Event{
		Provider:    ProviderRef{GUID: h.ProviderId},
		EventID:     h.EventDescriptor.Id,
		Version:     h.EventDescriptor.Version,
		Channel:     h.EventDescriptor.Channel,
		Level:       h.EventDescriptor.Level,
		Opcode:      h.EventDescriptor.Opcode,
		Task:        h.EventDescriptor.Task,
		Keywords:    h.EventDescriptor.Keyword,
		ProcessID:   h.ProcessId,
		ThreadID:    h.ThreadId,
		ProcessorID: rec.processorID(),
		Timestamp:   FromFiletime(h.TimeStamp),
		ActivityID:  h.ActivityId,
	}

	if !c.cfg.skipProperties {
		if err := c.decoder.decode(rec, e); err != nil {
			c.logDecodeError(rec, err)
		}
	}
	if e.Provider.Name == "" {
		e.Provider.Name = registry.name(&h.ProviderId)
	}

	c.count++
	if err := c.fn(e); err != nil {
		if errors.Is(err, ErrStop) {
			err = nil
		}
		c.stop(err)
		return
	}
	if c.cfg.maxEvents > 0 && c.count >= c.cfg.maxEvents {
		c.stop(nil)
	}
}

func (c *consumer) logDecodeError(rec *eventRecord, err error) {
	h := &rec.EventHeader
	key := h.ProviderId.String() + ":" + fmt.Sprint(h.EventDescriptor.Id)
	if errors.Is(err, errNoSchema) {
		conlog.SampledDebug(key).Str("provider", h.ProviderId.StringU()).
			Uint16("eventID", h.EventDescriptor.Id).Msg("event has no schema, payload kept as raw data")
		return
	}
	conlog.SampledWarn(key, err).Str("provider", h.ProviderId.StringU()).
		Uint16("eventID", h.EventDescriptor.Id).Msg("failed to decode event properties")
}

// readHeaderEvent takes the logger and log file names from the payload of
// the header event: TRACE_LOGFILE_HEADER followed by both names.
func (c *consumer) readHeaderEvent(rec *eventRecord) {
	size := uint32(unsafe.Sizeof(traceLogfileHeader{}))
	if rec.pointerSize() == 4 {
		size = traceLogfileHeader32Size
	}
	if uint32(rec.UserDataLength) <= size+2 {
		return
	}
	p := unsafe.Add(unsafe.Pointer(rec.UserData), size)
	words := unsafe.Slice((*uint16)(p), (uint32(rec.UserDataLength)-size)/2)

	end := slices.Index(words, 0)
	if end < 0 {
		return
	}
	c.header.LoggerName = utf16f.DecodeWtf8(words[:end])
	if name := utf16f.DecodeWtf8(words[end+1:]); name != "" {
		c.header.LogFile = name
	}
}

func newLogHeader(path string, h *traceLogfileHeader) LogHeader {
	return LogHeader{
		LogFile:            path,
		StartTime:          FromFiletime(h.StartTime),
		EndTime:            FromFiletime(h.EndTime),
		BootTime:           FromFiletime(h.BootTime),
		EventsLost:         h.EventsLost,
		BuffersWritten:     h.BuffersWritten,
		BuffersLost:        h.BuffersLost,
		PointerSize:        h.PointerSize,
		NumberOfProcessors: h.NumberOfProcessors,
		CPUSpeedMHz:        h.CpuSpeedInMHz,
		TimerResolution:    h.TimerResolution,
	}
}

// processLogFile opens an .etl file and blocks in ProcessTrace until every
// event was delivered or the consumer stopped.
func processLogFile(ctx context.Context, path string, cfg *logConfig, fn func(*Event) error) (LogHeader, error) {
	pathW, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return LogHeader{}, fmt.Errorf("invalid path %q: %w", path, err)
	}

	c := &consumer{
		ctx:     ctx,
		cfg:     cfg,
		fn:      fn,
		decoder: newPropertyDecoder(),
	}
	id := consumerID.Add(1)
	consumers.Store(id, c)
	defer consumers.Delete(id)

	lf := &eventTraceLogfile{
		LogFileName:         pathW,
		ProcessTraceMode:    PROCESS_TRACE_MODE_EVENT_RECORD,
		BufferCallback:      bufferCallback,
		EventRecordCallback: eventRecordCallback,
		Context:             id,
	}
	handle, err := sysOpenTrace(lf)
	if err != nil {
		return LogHeader{}, fmt.Errorf("OpenTraceW failed for %q: %w", path, err)
	}
	defer func() {
		if err := sysCloseTrace(handle); err != nil {
			conlog.Warn().Err(err).Str("file", path).Msg("CloseTrace failed")
		}
	}()

	// OpenTraceW fills the header, the names come with the first event.
	c.header = newLogHeader(path, &lf.LogfileHeader)
	if err := ctx.Err(); err != nil {
		return c.header, err
	}

	conlog.Debug().Str("file", path).Uint32("buffers", c.header.BuffersWritten).Msg("processing log file")
	err = sysProcessTrace([]uint64{handle})
	runtime.KeepAlive(lf)
	runtime.KeepAlive(pathW)

	switch {
	case c.err != nil:
		return c.header, c.err
	case ctx.Err() != nil:
		return c.header, ctx.Err()
	case err != nil && !errors.Is(err, windows.ERROR_CANCELLED):
		return c.header, fmt.Errorf("ProcessTrace failed for %q: %w", path, err)
	}
	conlog.Debug().Str("file", path).Int("events", c.count).Msg("log file processed")
	return c.header, nil
}
