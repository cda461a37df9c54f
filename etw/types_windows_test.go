//go:build windows && (amd64 || arm64)

package etw

import (
	"testing"
	"unsafe"
)

// TestStructLayouts checks the field offsets of the structs shared with
// advapi32 and tdh against the 64-bit C layouts. Sizes are checked at
// compile time in types_windows.go.
func TestStructLayouts(t *testing.T) {
	t.Parallel()

	check := func(t *testing.T, name string, actual, expected uintptr) {
		t.Helper()
		if actual != expected {
			t.Errorf("Offset of %s mismatch: got %d, want %d", name, actual, expected)
		}
	}

	t.Run("EVENT_RECORD", func(t *testing.T) {
		var r eventRecord
		check(t, "EventHeader", unsafe.Offsetof(r.EventHeader), 0)
		check(t, "BufferContext", unsafe.Offsetof(r.BufferContext), 80)
		check(t, "ExtendedDataCount", unsafe.Offsetof(r.ExtendedDataCount), 84)
		check(t, "UserDataLength", unsafe.Offsetof(r.UserDataLength), 86)
		check(t, "ExtendedData", unsafe.Offsetof(r.ExtendedData), 88)
		check(t, "UserData", unsafe.Offsetof(r.UserData), 96)
		check(t, "UserContext", unsafe.Offsetof(r.UserContext), 104)
	})

	t.Run("EVENT_HEADER", func(t *testing.T) {
		var h eventHeader
		check(t, "TimeStamp", unsafe.Offsetof(h.TimeStamp), 16)
		check(t, "ProviderId", unsafe.Offsetof(h.ProviderId), 24)
		check(t, "EventDescriptor", unsafe.Offsetof(h.EventDescriptor), 40)
		check(t, "ProcessorTime", unsafe.Offsetof(h.ProcessorTime), 56)
		check(t, "ActivityId", unsafe.Offsetof(h.ActivityId), 64)
	})

	t.Run("EVENT_TRACE_PROPERTIES", func(t *testing.T) {
		var p propertiesBuffer
		check(t, "BufferSize", unsafe.Offsetof(p.BufferSize), 48)
		check(t, "AgeLimit", unsafe.Offsetof(p.AgeLimit), 76)
		check(t, "LoggerThreadId", unsafe.Offsetof(p.LoggerThreadId), 104)
		check(t, "LogFileNameOffset", unsafe.Offsetof(p.LogFileNameOffset), 112)
		check(t, "LoggerNameOffset", unsafe.Offsetof(p.LoggerNameOffset), 116)
		check(t, "LoggerName", unsafe.Offsetof(p.LoggerName), 120)
		check(t, "LogFileName", unsafe.Offsetof(p.LogFileName), 120+2*maxNameLength)

		b := newPropertiesBuffer()
		if b.Wnode.BufferSize != uint32(unsafe.Sizeof(*b)) {
			t.Errorf("Wnode.BufferSize = %d, want %d", b.Wnode.BufferSize, unsafe.Sizeof(*b))
		}
	})

	t.Run("EVENT_TRACE_LOGFILEW", func(t *testing.T) {
		var lf eventTraceLogfile
		check(t, "CurrentEvent", unsafe.Offsetof(lf.CurrentEvent), 32)
		check(t, "LogfileHeader", unsafe.Offsetof(lf.LogfileHeader), 120)
		check(t, "BufferCallback", unsafe.Offsetof(lf.BufferCallback), 400)
		check(t, "EventRecordCallback", unsafe.Offsetof(lf.EventRecordCallback), 424)
		check(t, "IsKernelTrace", unsafe.Offsetof(lf.IsKernelTrace), 432)
		check(t, "Context", unsafe.Offsetof(lf.Context), 440)
	})

	t.Run("TRACE_LOGFILE_HEADER", func(t *testing.T) {
		var h traceLogfileHeader
		check(t, "EndTime", unsafe.Offsetof(h.EndTime), 16)
		check(t, "StartBuffers", unsafe.Offsetof(h.StartBuffers), 40)
		check(t, "LoggerName", unsafe.Offsetof(h.LoggerName), 56)
		check(t, "TimeZone", unsafe.Offsetof(h.TimeZone), 72)
		check(t, "BootTime", unsafe.Offsetof(h.BootTime), 248)
		check(t, "StartTime", unsafe.Offsetof(h.StartTime), 264)
		check(t, "BuffersLost", unsafe.Offsetof(h.BuffersLost), 276)
	})

	t.Run("ENABLE_TRACE_PARAMETERS", func(t *testing.T) {
		var p enableTraceParameters
		check(t, "SourceId", unsafe.Offsetof(p.SourceId), 12)
		check(t, "EnableFilterDesc", unsafe.Offsetof(p.EnableFilterDesc), 32)
		check(t, "FilterDescCount", unsafe.Offsetof(p.FilterDescCount), 40)
	})

	t.Run("TRACE_EVENT_INFO", func(t *testing.T) {
		var i traceEventInfo
		check(t, "EventDescriptor", unsafe.Offsetof(i.EventDescriptor), 32)
		check(t, "DecodingSource", unsafe.Offsetof(i.DecodingSource), 48)
		check(t, "EventNameOffset", unsafe.Offsetof(i.EventNameOffset), 92)
		check(t, "TopLevelPropertyCount", unsafe.Offsetof(i.TopLevelPropertyCount), 104)

		var p eventPropertyInfo
		check(t, "Count", unsafe.Offsetof(p.Count), 16)
		check(t, "Length", unsafe.Offsetof(p.Length), 18)
	})
}

func TestEventRecordHelpers(t *testing.T) {
	t.Parallel()

	var r eventRecord
	r.BufferContext = etwBufferContext{ProcessorNumber: 3, Alignment: 1}
	if got := r.processorID(); got != 3 {
		t.Errorf("processorID = %d, want 3", got)
	}
	r.EventHeader.Flags = EVENT_HEADER_FLAG_PROCESSOR_INDEX
	if got := r.processorID(); got != 0x0103 {
		t.Errorf("processorID with index flag = %#x, want 0x103", got)
	}
	if got := r.pointerSize(); got != 8 {
		t.Errorf("pointerSize = %d, want 8", got)
	}
	r.EventHeader.Flags |= EVENT_HEADER_FLAG_32_BIT_HEADER
	if got := r.pointerSize(); got != 4 {
		t.Errorf("pointerSize with 32-bit header = %d, want 4", got)
	}
	if r.userData() != nil {
		t.Error("userData of an empty record must be nil")
	}
}
