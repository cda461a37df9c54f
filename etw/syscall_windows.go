//go:build windows && (amd64 || arm64)

package etw

// The trace APIs return their status code directly, GetLastError is not used.
// Restricted to 64-bit targets: TRACEHANDLE and keyword masks are 64-bit
// arguments that fit in a single uintptr there.

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	advapi32 = windows.NewLazySystemDLL("advapi32.dll")

	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-starttracew
	startTraceW = advapi32.NewProc("StartTraceW")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-controltracew
	controlTraceW = advapi32.NewProc("ControlTraceW")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-enabletraceex2
	enableTraceEx2 = advapi32.NewProc("EnableTraceEx2")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-queryalltracesw
	queryAllTracesW = advapi32.NewProc("QueryAllTracesW")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-opentracew
	openTraceW = advapi32.NewProc("OpenTraceW")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-processtrace
	processTrace = advapi32.NewProc("ProcessTrace")
	// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/nf-evntrace-closetrace
	closeTrace = advapi32.NewProc("CloseTrace")

	tdh = windows.NewLazySystemDLL("tdh.dll")

	tdhEnumerateProviders                = tdh.NewProc("TdhEnumerateProviders")
	tdhEnumerateProviderFieldInformation = tdh.NewProc("TdhEnumerateProviderFieldInformation")
	tdhGetEventInformation               = tdh.NewProc("TdhGetEventInformation")
	tdhGetEventMapInformation            = tdh.NewProc("TdhGetEventMapInformation")
	tdhGetPropertySize                   = tdh.NewProc("TdhGetPropertySize")
	tdhGetProperty                       = tdh.NewProc("TdhGetProperty")
	tdhFormatProperty                    = tdh.NewProc("TdhFormatProperty")
)

const invalidProcessTraceHandle = ^uint64(0)

const (
	EVENT_CONTROL_CODE_DISABLE_PROVIDER = 0
	EVENT_CONTROL_CODE_ENABLE_PROVIDER  = 1
	EVENT_CONTROL_CODE_CAPTURE_STATE    = 2
)

func status(r1 uintptr) error {
	if r1 == 0 {
		return nil
	}
	return syscall.Errno(r1)
}

func sysStartTrace(handle *uint64, name *uint16, props *eventTraceProperties) error {
	r1, _, _ := syscall.SyscallN(startTraceW.Addr(),
		uintptr(unsafe.Pointer(handle)),
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(props)))
	return status(r1)
}

func sysControlTrace(handle uint64, name *uint16, props *eventTraceProperties, code uint32) error {
	r1, _, _ := syscall.SyscallN(controlTraceW.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(props)),
		uintptr(code))
	return status(r1)
}

func sysEnableTraceEx2(handle uint64, provider *GUID, code uint32, level uint8,
	matchAny, matchAll uint64, timeout uint32, params *enableTraceParameters) error {
	r1, _, _ := syscall.SyscallN(enableTraceEx2.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(provider)),
		uintptr(code),
		uintptr(level),
		uintptr(matchAny),
		uintptr(matchAll),
		uintptr(timeout),
		uintptr(unsafe.Pointer(params)))
	return status(r1)
}

func sysQueryAllTraces(props **eventTraceProperties, count uint32, loggers *uint32) error {
	r1, _, _ := syscall.SyscallN(queryAllTracesW.Addr(),
		uintptr(unsafe.Pointer(props)),
		uintptr(count),
		uintptr(unsafe.Pointer(loggers)))
	return status(r1)
}

// sysOpenTrace returns invalidProcessTraceHandle on failure, the reason is in
// the thread's last error.
func sysOpenTrace(logfile *eventTraceLogfile) (uint64, error) {
	r1, _, err := syscall.SyscallN(openTraceW.Addr(), uintptr(unsafe.Pointer(logfile)))
	if uint64(r1) == invalidProcessTraceHandle {
		return invalidProcessTraceHandle, err
	}
	return uint64(r1), nil
}

func sysProcessTrace(handles []uint64) error {
	r1, _, _ := syscall.SyscallN(processTrace.Addr(),
		uintptr(unsafe.Pointer(&handles[0])),
		uintptr(len(handles)),
		0,
		0)
	return status(r1)
}

func sysCloseTrace(handle uint64) error {
	r1, _, _ := syscall.SyscallN(closeTrace.Addr(), uintptr(handle))
	return status(r1)
}

func tdhEnumProviders(buf unsafe.Pointer, size *uint32) error {
	r1, _, _ := syscall.SyscallN(tdhEnumerateProviders.Addr(),
		uintptr(buf),
		uintptr(unsafe.Pointer(size)))
	return status(r1)
}

func tdhEnumProviderFields(provider *GUID, field EventFieldType, buf unsafe.Pointer, size *uint32) error {
	r1, _, _ := syscall.SyscallN(tdhEnumerateProviderFieldInformation.Addr(),
		uintptr(unsafe.Pointer(provider)),
		uintptr(field),
		uintptr(buf),
		uintptr(unsafe.Pointer(size)))
	return status(r1)
}

func tdhEventInformation(rec *eventRecord, buf unsafe.Pointer, size *uint32) error {
	r1, _, _ := syscall.SyscallN(tdhGetEventInformation.Addr(),
		uintptr(unsafe.Pointer(rec)),
		0,
		0,
		uintptr(buf),
		uintptr(unsafe.Pointer(size)))
	return status(r1)
}

func tdhEventMapInformation(rec *eventRecord, mapName unsafe.Pointer, buf unsafe.Pointer, size *uint32) error {
	r1, _, _ := syscall.SyscallN(tdhGetEventMapInformation.Addr(),
		uintptr(unsafe.Pointer(rec)),
		uintptr(mapName),
		uintptr(buf),
		uintptr(unsafe.Pointer(size)))
	return status(r1)
}

func tdhPropertySize(rec *eventRecord, desc *propertyDataDescriptor, size *uint32) error {
	r1, _, _ := syscall.SyscallN(tdhGetPropertySize.Addr(),
		uintptr(unsafe.Pointer(rec)),
		0,
		0,
		1,
		uintptr(unsafe.Pointer(desc)),
		uintptr(unsafe.Pointer(size)))
	return status(r1)
}

func tdhProperty(rec *eventRecord, desc *propertyDataDescriptor, size uint32, buf unsafe.Pointer) error {
	r1, _, _ := syscall.SyscallN(tdhGetProperty.Addr(),
		uintptr(unsafe.Pointer(rec)),
		0,
		0,
		1,
		uintptr(unsafe.Pointer(desc)),
		uintptr(size),
		uintptr(buf))
	return status(r1)
}

func tdhFormat(info unsafe.Pointer, mapInfo unsafe.Pointer, pointerSize uint32,
	inType, outType, length, userDataLength uint16, userData uintptr,
	bufferSize *uint32, buffer *uint16, consumed *uint16) error {
	r1, _, _ := syscall.SyscallN(tdhFormatProperty.Addr(),
		uintptr(info),
		uintptr(mapInfo),
		uintptr(pointerSize),
		uintptr(inType),
		uintptr(outType),
		uintptr(length),
		uintptr(userDataLength),
		userData,
		uintptr(unsafe.Pointer(bufferSize)),
		uintptr(unsafe.Pointer(buffer)),
		uintptr(unsafe.Pointer(consumed)))
	return status(r1)
}
