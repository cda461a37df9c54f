//go:build windows && (amd64 || arm64)

package etw

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/tekert/eventtrace/internal/utf16f"

	"golang.org/x/sys/windows"
)

// maxQueriedSessions is the number of sessions QueryAllTracesW can return in
// one call. 64 is the system wide default limit.
const maxQueriedSessions = 64

// name reads one of the names ETW wrote behind the properties.
func (b *propertiesBuffer) name(offset uint32) string {
	size := uint32(unsafe.Sizeof(*b))
	if offset == 0 || offset >= size {
		return ""
	}
	p := unsafe.Add(unsafe.Pointer(b), offset)
	return utf16f.DecodeWtf8(unsafe.Slice((*uint16)(p), (size-offset)/2))
}

func (b *propertiesBuffer) details() *SessionDetails {
	return &SessionDetails{
		Name:                b.name(b.LoggerNameOffset),
		GUID:                b.Wnode.Guid,
		LogFile:             b.name(b.LogFileNameOffset),
		LogFileMode:         b.LogFileMode,
		BufferSizeKB:        b.BufferSize,
		MinimumBuffers:      b.MinimumBuffers,
		MaximumBuffers:      b.MaximumBuffers,
		MaximumFileSizeMB:   b.MaximumFileSize,
		FlushTimer:          b.FlushTimer,
		NumberOfBuffers:     b.NumberOfBuffers,
		FreeBuffers:         b.FreeBuffers,
		EventsLost:          b.EventsLost,
		BuffersWritten:      b.BuffersWritten,
		LogBuffersLost:      b.LogBuffersLost,
		RealTimeBuffersLost: b.RealTimeBuffersLost,
		LoggerThreadID:      uint64(b.LoggerThreadId),
		ClockType:           ClockType(b.Wnode.ClientContext),
	}
}

func sessionName(name string) (*uint16, error) {
	if len(name) >= maxNameLength {
		return nil, fmt.Errorf("session name %q is too long", name)
	}
	return windows.UTF16PtrFromString(name)
}

func traceError(op, name string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ALREADY_EXISTS):
		return &ExistsError{SessionName: name}
	case errors.Is(err, windows.ERROR_WMI_INSTANCE_NOT_FOUND):
		return &NotFoundError{SessionName: name}
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%s failed for session %q, administrator rights or membership of "+
			"Performance Log Users are required: %w", op, name, err)
	}
	return fmt.Errorf("%s failed for session %q: %w", op, name, err)
}

// startTrace creates a file mode session and returns its handle.
func startTrace(name, logFile string, cfg *sessionConfig) (uint64, error) {
	namePtr, err := sessionName(name)
	if err != nil {
		return 0, err
	}
	fileName, err := windows.UTF16FromString(logFile)
	if err != nil {
		return 0, fmt.Errorf("invalid output file %q: %w", logFile, err)
	}
	if len(fileName) > maxNameLength {
		return 0, fmt.Errorf("output file path %q is too long", logFile)
	}

	props := newPropertiesBuffer()
	props.Wnode.ClientContext = uint32(ClockQPC)
	props.BufferSize = cfg.bufferSizeKB
	props.MinimumBuffers = cfg.minBuffers
	props.MaximumBuffers = cfg.maxBuffers
	props.MaximumFileSize = cfg.maxFileSizeMB
	props.LogFileMode = cfg.logFileMode
	props.FlushTimer = cfg.flushTimer
	copy(props.LogFileName[:], fileName)

	var handle uint64
	if err := sysStartTrace(&handle, namePtr, &props.eventTraceProperties); err != nil {
		return 0, traceError("StartTraceW", name, err)
	}
	seslog.Debug().Str("session", name).Uint64("handle", handle).Msg("StartTraceW")
	return handle, nil
}

// enableTrace enables one provider on a started session.
func enableTrace(handle uint64, p *ProviderConfig, o *ProviderOptions) error {
	filters := o.filters()
	descs := make([]eventFilterDescriptor, len(filters))
	for i := range filters {
		descs[i] = eventFilterDescriptor{
			Ptr:  uint64(uintptr(unsafe.Pointer(&filters[i].Data[0]))),
			Size: uint32(len(filters[i].Data)),
			Type: filters[i].Type,
		}
	}

	params := enableTraceParameters{
		Version:        ENABLE_TRACE_PARAMETERS_VERSION_2,
		EnableProperty: o.enableProperties(),
	}
	if len(descs) > 0 {
		params.EnableFilterDesc = &descs[0]
		params.FilterDescCount = uint32(len(descs))
	}

	guid := p.GUID
	err := sysEnableTraceEx2(
		handle,
		&guid,
		EVENT_CONTROL_CODE_ENABLE_PROVIDER,
		o.Level,
		p.Keywords,
		o.MatchAllKeywords,
		0,
		&params,
	)
	runtime.KeepAlive(filters)
	runtime.KeepAlive(descs)
	if err != nil {
		return fmt.Errorf("EnableTraceEx2: %w", err)
	}
	return nil
}

// controlTrace runs a ControlTraceW command on a session by name and returns
// the properties ETW reports back.
func controlTrace(name string, code uint32) (*SessionDetails, error) {
	namePtr, err := sessionName(name)
	if err != nil {
		return nil, err
	}
	props := newPropertiesBuffer()
	err = sysControlTrace(0, namePtr, &props.eventTraceProperties, code)
	// A stop with real time consumers still attached completes asynchronously.
	if code == EVENT_TRACE_CONTROL_STOP && errors.Is(err, windows.ERROR_CTX_CLOSE_PENDING) {
		err = nil
	}
	if err != nil {
		return nil, traceError("ControlTraceW", name, err)
	}
	return props.details(), nil
}

func queryAllTraces() ([]SessionDetails, error) {
	bufs := make([]propertiesBuffer, maxQueriedSessions)
	ptrs := make([]*eventTraceProperties, maxQueriedSessions)
	for i := range bufs {
		b := &bufs[i]
		b.Wnode.BufferSize = uint32(unsafe.Sizeof(*b))
		b.LoggerNameOffset = uint32(unsafe.Offsetof(b.LoggerName))
		b.LogFileNameOffset = uint32(unsafe.Offsetof(b.LogFileName))
		ptrs[i] = &b.eventTraceProperties
	}

	var count uint32
	err := sysQueryAllTraces(&ptrs[0], maxQueriedSessions, &count)
	if errors.Is(err, windows.ERROR_MORE_DATA) {
		seslog.Warn().Uint32("sessions", count).Int("returned", maxQueriedSessions).
			Msg("more sessions running than QueryAllTracesW can return")
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("QueryAllTracesW: %w", err)
	}

	count = min(count, maxQueriedSessions)
	sessions := make([]SessionDetails, 0, count)
	for i := range count {
		sessions = append(sessions, *bufs[i].details())
	}
	return sessions, nil
}
