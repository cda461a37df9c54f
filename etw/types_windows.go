//go:build windows && (amd64 || arm64)

package etw

import "unsafe"

// Win32 structures passed to advapi32 and tdh. Layouts are for 64-bit targets.

const (
	WNODE_FLAG_TRACED_GUID = 0x00020000

	PROCESS_TRACE_MODE_REAL_TIME     = 0x00000100
	PROCESS_TRACE_MODE_RAW_TIMESTAMP = 0x00001000
	PROCESS_TRACE_MODE_EVENT_RECORD  = 0x10000000

	EVENT_HEADER_FLAG_EXTENDED_INFO   = 0x0001
	EVENT_HEADER_FLAG_PRIVATE_SESSION = 0x0002
	EVENT_HEADER_FLAG_STRING_ONLY     = 0x0004
	EVENT_HEADER_FLAG_TRACE_MESSAGE   = 0x0008
	EVENT_HEADER_FLAG_NO_CPUTIME      = 0x0010
	EVENT_HEADER_FLAG_32_BIT_HEADER   = 0x0020
	EVENT_HEADER_FLAG_64_BIT_HEADER   = 0x0040
	EVENT_HEADER_FLAG_CLASSIC_HEADER  = 0x0100
	EVENT_HEADER_FLAG_PROCESSOR_INDEX = 0x0200
)

// The first event of every .etl file is written by this provider and carries
// the TRACE_LOGFILE_HEADER.
var eventTraceGUID = GUID{
	Data1: 0x68fdd900,
	Data2: 0x4a3e,
	Data3: 0x11d1,
	Data4: [8]byte{0x84, 0xf4, 0x00, 0x00, 0xf8, 0x04, 0x64, 0xe3},
}

// maxNameLength is the room reserved after EVENT_TRACE_PROPERTIES for each of
// the logger and log file names, in UTF-16 units.
const maxNameLength = 1024

// https://learn.microsoft.com/en-us/windows/win32/etw/wnode-header
type wnodeHeader struct {
	BufferSize        uint32
	ProviderId        uint32
	HistoricalContext uint64
	TimeStamp         int64
	Guid              GUID
	ClientContext     uint32
	Flags             uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-event_trace_properties
type eventTraceProperties struct {
	Wnode               wnodeHeader
	BufferSize          uint32
	MinimumBuffers      uint32
	MaximumBuffers      uint32
	MaximumFileSize     uint32
	LogFileMode         uint32
	FlushTimer          uint32
	EnableFlags         uint32
	AgeLimit            int32
	NumberOfBuffers     uint32
	FreeBuffers         uint32
	EventsLost          uint32
	BuffersWritten      uint32
	LogBuffersLost      uint32
	RealTimeBuffersLost uint32
	LoggerThreadId      uintptr
	LogFileNameOffset   uint32
	LoggerNameOffset    uint32
}

// propertiesBuffer is EVENT_TRACE_PROPERTIES followed by the space ETW
// writes the logger and log file names into.
type propertiesBuffer struct {
	eventTraceProperties
	LoggerName  [maxNameLength]uint16
	LogFileName [maxNameLength]uint16
}

func newPropertiesBuffer() *propertiesBuffer {
	b := &propertiesBuffer{}
	b.Wnode.BufferSize = uint32(unsafe.Sizeof(*b))
	b.Wnode.Flags = WNODE_FLAG_TRACED_GUID
	b.LoggerNameOffset = uint32(unsafe.Offsetof(b.LoggerName))
	b.LogFileNameOffset = uint32(unsafe.Offsetof(b.LogFileName))
	return b
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntprov/ns-evntprov-event_filter_descriptor
type eventFilterDescriptor struct {
	Ptr  uint64
	Size uint32
	Type uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-enable_trace_parameters
type enableTraceParameters struct {
	Version          uint32
	EnableProperty   uint32
	ControlFlags     uint32
	SourceId         GUID
	EnableFilterDesc *eventFilterDescriptor
	FilterDescCount  uint32
	_                uint32
}

const ENABLE_TRACE_PARAMETERS_VERSION_2 = 2

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-event_trace_header
type eventTraceHeader struct {
	Size           uint16
	FieldTypeFlags uint16
	Version        uint32
	ThreadId       uint32
	ProcessId      uint32
	TimeStamp      int64
	Guid           GUID
	ProcessorTime  uint64
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-event_trace
type eventTrace struct {
	Header           eventTraceHeader
	InstanceId       uint32
	ParentInstanceId uint32
	ParentGuid       GUID
	MofData          uintptr
	MofLength        uint32
	ClientContext    uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/timezoneapi/ns-timezoneapi-time_zone_information
type timeZoneInformation struct {
	Bias         int32
	StandardName [32]uint16
	StandardDate [8]uint16
	StandardBias int32
	DaylightName [32]uint16
	DaylightDate [8]uint16
	DaylightBias int32
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-trace_logfile_header
//
// LoggerName and LogFileName are pointers in the writer's address space and
// are never valid for a consumer.
type traceLogfileHeader struct {
	BufferSize         uint32
	VersionDetail      uint32
	ProviderVersion    uint32
	NumberOfProcessors uint32
	EndTime            int64
	TimerResolution    uint32
	MaximumFileSize    uint32
	LogFileMode        uint32
	BuffersWritten     uint32
	StartBuffers       uint32
	PointerSize        uint32
	EventsLost         uint32
	CpuSpeedInMHz      uint32
	LoggerName         uintptr
	LogFileName        uintptr
	TimeZone           timeZoneInformation
	BootTime           int64
	PerfFreq           int64
	StartTime          int64
	ReservedFlags      uint32
	BuffersLost        uint32
}

// The header written by a 32-bit logger has 4 byte name pointers.
const traceLogfileHeader32Size = 272

// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-event_trace_logfilew
type eventTraceLogfile struct {
	LogFileName         *uint16
	LoggerName          *uint16
	CurrentTime         int64
	BuffersRead         uint32
	ProcessTraceMode    uint32
	CurrentEvent        eventTrace
	LogfileHeader       traceLogfileHeader
	BufferCallback      uintptr
	BufferSize          uint32
	Filled              uint32
	EventsLost          uint32
	_                   uint32
	EventRecordCallback uintptr
	IsKernelTrace       uint32
	_                   uint32
	Context             uintptr
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntprov/ns-evntprov-event_descriptor
type eventDescriptor struct {
	Id      uint16
	Version uint8
	Channel uint8
	Level   uint8
	Opcode  uint8
	Task    uint16
	Keyword uint64
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntcons/ns-evntcons-event_header
type eventHeader struct {
	Size            uint16
	HeaderType      uint16
	Flags           uint16
	EventProperty   uint16
	ThreadId        uint32
	ProcessId       uint32
	TimeStamp       int64
	ProviderId      GUID
	EventDescriptor eventDescriptor
	ProcessorTime   uint64
	ActivityId      GUID
}

// https://learn.microsoft.com/en-us/windows/win32/api/relogger/ns-relogger-etw_buffer_context
type etwBufferContext struct {
	ProcessorNumber uint8
	Alignment       uint8
	LoggerId        uint16
}

// https://learn.microsoft.com/en-us/windows/win32/api/evntcons/ns-evntcons-event_record
type eventRecord struct {
	EventHeader       eventHeader
	BufferContext     etwBufferContext
	ExtendedDataCount uint16
	UserDataLength    uint16
	ExtendedData      uintptr
	UserData          uintptr
	UserContext       uintptr
}

func (r *eventRecord) pointerSize() uint32 {
	if r.EventHeader.Flags&EVENT_HEADER_FLAG_32_BIT_HEADER != 0 {
		return 4
	}
	return 8
}

func (r *eventRecord) processorID() uint16 {
	if r.EventHeader.Flags&EVENT_HEADER_FLAG_PROCESSOR_INDEX != 0 {
		return *(*uint16)(unsafe.Pointer(&r.BufferContext))
	}
	return uint16(r.BufferContext.ProcessorNumber)
}

func (r *eventRecord) userData() []byte {
	if r.UserData == 0 || r.UserDataLength == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r.UserData)), r.UserDataLength)
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-trace_event_info
type traceEventInfo struct {
	ProviderGuid          GUID
	EventGuid             GUID
	EventDescriptor       eventDescriptor
	DecodingSource        uint32
	ProviderNameOffset    uint32
	LevelNameOffset       uint32
	ChannelNameOffset     uint32
	KeywordsNameOffset    uint32
	TaskNameOffset        uint32
	OpcodeNameOffset      uint32
	EventMessageOffset    uint32
	ProviderMessageOffset uint32
	BinaryXMLOffset       uint32
	BinaryXMLSize         uint32
	EventNameOffset       uint32
	EventAttributesOffset uint32
	PropertyCount         uint32
	TopLevelPropertyCount uint32
	Flags                 uint32
	// EVENT_PROPERTY_INFO[PropertyCount] follows.
}

const (
	PropertyStruct           = 0x1
	PropertyParamLength      = 0x2
	PropertyParamCount       = 0x4
	PropertyWBEMXmlFragment  = 0x8
	PropertyParamFixedLength = 0x10
	PropertyParamFixedCount  = 0x20
)

const (
	TDH_INTYPE_UNICODESTRING = 1
	TDH_INTYPE_ANSISTRING    = 2
	TDH_INTYPE_BINARY        = 14
	TDH_OUTTYPE_IPV6         = 24
)

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-event_property_info
//
// InType/OutType/MapNameOffset read as StructStartIndex/NumOfStructMembers
// when Flags has PropertyStruct. Count and Length are property indexes when
// Flags has PropertyParamCount or PropertyParamLength.
type eventPropertyInfo struct {
	Flags         uint32
	NameOffset    uint32
	InType        uint16
	OutType       uint16
	MapNameOffset uint32
	Count         uint16
	Length        uint16
	Tags          uint32
}

func (p *eventPropertyInfo) structStartIndex() uint16   { return p.InType }
func (p *eventPropertyInfo) numOfStructMembers() uint16 { return p.OutType }

func (i *traceEventInfo) property(index uint32) *eventPropertyInfo {
	base := unsafe.Add(unsafe.Pointer(i), unsafe.Sizeof(*i))
	return (*eventPropertyInfo)(unsafe.Add(base, uintptr(index)*unsafe.Sizeof(eventPropertyInfo{})))
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-property_data_descriptor
type propertyDataDescriptor struct {
	PropertyName uint64
	ArrayIndex   uint32
	Reserved     uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-provider_enumeration_info
type providerEnumerationInfo struct {
	NumberOfProviders uint32
	Reserved          uint32
	// TRACE_PROVIDER_INFO[NumberOfProviders] follows.
}

type traceProviderInfo struct {
	ProviderGuid       GUID
	SchemaSource       uint32
	ProviderNameOffset uint32
}

// https://learn.microsoft.com/en-us/windows/win32/api/tdh/ns-tdh-provider_field_infoarray
type providerFieldInfoArray struct {
	NumberOfElements uint32
	FieldType        uint32
	// PROVIDER_FIELD_INFO[NumberOfElements] follows.
}

type providerFieldInfo struct {
	NameOffset        uint32
	DescriptionOffset uint32
	Value             uint64
}

// Compile time size checks, a mismatch overflows the constant.
const (
	_ = unsafe.Sizeof(wnodeHeader{}) - 48
	_ = 48 - unsafe.Sizeof(wnodeHeader{})

	_ = unsafe.Sizeof(eventTraceProperties{}) - 120
	_ = 120 - unsafe.Sizeof(eventTraceProperties{})

	_ = unsafe.Sizeof(enableTraceParameters{}) - 48
	_ = 48 - unsafe.Sizeof(enableTraceParameters{})

	_ = unsafe.Sizeof(eventFilterDescriptor{}) - 16
	_ = 16 - unsafe.Sizeof(eventFilterDescriptor{})

	_ = unsafe.Sizeof(eventTrace{}) - 88
	_ = 88 - unsafe.Sizeof(eventTrace{})

	_ = unsafe.Sizeof(traceLogfileHeader{}) - 280
	_ = 280 - unsafe.Sizeof(traceLogfileHeader{})

	_ = unsafe.Sizeof(eventTraceLogfile{}) - 448
	_ = 448 - unsafe.Sizeof(eventTraceLogfile{})

	_ = unsafe.Sizeof(eventHeader{}) - 80
	_ = 80 - unsafe.Sizeof(eventHeader{})

	_ = unsafe.Sizeof(eventRecord{}) - 112
	_ = 112 - unsafe.Sizeof(eventRecord{})

	_ = unsafe.Sizeof(traceEventInfo{}) - 112
	_ = 112 - unsafe.Sizeof(traceEventInfo{})

	_ = unsafe.Sizeof(eventPropertyInfo{}) - 24
	_ = 24 - unsafe.Sizeof(eventPropertyInfo{})

	_ = unsafe.Sizeof(traceProviderInfo{}) - 24
	_ = 24 - unsafe.Sizeof(traceProviderInfo{})

	_ = unsafe.Sizeof(providerFieldInfo{}) - 16
	_ = 16 - unsafe.Sizeof(providerFieldInfo{})
)
