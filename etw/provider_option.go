package etw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// EnableProperty flags for ProviderOptions.EnableProperties.
//
// https://learn.microsoft.com/en-us/windows/win32/api/evntrace/ns-evntrace-enable_trace_parameters
const (
	EVENT_ENABLE_PROPERTY_SID               = 0x00000001
	EVENT_ENABLE_PROPERTY_TS_ID             = 0x00000002
	EVENT_ENABLE_PROPERTY_STACK_TRACE       = 0x00000004
	EVENT_ENABLE_PROPERTY_PSM_KEY           = 0x00000008
	EVENT_ENABLE_PROPERTY_IGNORE_KEYWORD_0  = 0x00000010
	EVENT_ENABLE_PROPERTY_PROVIDER_GROUP    = 0x00000020
	EVENT_ENABLE_PROPERTY_ENABLE_KEYWORD_0  = 0x00000040
	EVENT_ENABLE_PROPERTY_PROCESS_START_KEY = 0x00000080
	EVENT_ENABLE_PROPERTY_EVENT_KEY         = 0x00000100
	EVENT_ENABLE_PROPERTY_EXCLUDE_INPRIVATE = 0x00000200
)

// Filter types accepted by EnableTraceEx2. Only one filter of each type may be
// passed per call.
const (
	EVENT_FILTER_TYPE_NONE            = 0x00000000
	EVENT_FILTER_TYPE_PID             = 0x80000004
	EVENT_FILTER_TYPE_EXECUTABLE_NAME = 0x80000008
	EVENT_FILTER_TYPE_EVENT_ID        = 0x80000200
)

// MAX_EVENT_FILTER_PID_COUNT is the limit of process IDs in a PID filter.
const MAX_EVENT_FILTER_PID_COUNT = 8

// Standard trace levels.
const (
	TRACE_LEVEL_NONE        = 0
	TRACE_LEVEL_CRITICAL    = 1
	TRACE_LEVEL_ERROR       = 2
	TRACE_LEVEL_WARNING     = 3
	TRACE_LEVEL_INFORMATION = 4
	TRACE_LEVEL_VERBOSE     = 5
	TRACE_LEVEL_ALL         = 0xFF
)

// ProviderOptions tunes how a provider is enabled on a session beyond its
// keyword mask. The session only translates it into EnableTraceEx2 arguments.
type ProviderOptions struct {
	// Level enables events of this level and all more severe ones.
	// 0xFF captures every level.
	Level uint8 `json:"level"`

	// MatchAllKeywords restricts events to those carrying all of these bits.
	// It is ignored while the provider's keyword mask is zero.
	MatchAllKeywords uint64 `json:"matchAllKeywords"`

	// ProcessIDs scopes the provider to at most 8 processes. Kernel providers
	// ignore scope filters.
	ProcessIDs []uint32 `json:"processIDs,omitempty"`

	// ExecutableNames scopes the provider to processes started from these
	// image names, e.g. "notepad.exe".
	ExecutableNames []string `json:"executableNames,omitempty"`

	// EventIDsToEnable keeps only these event IDs. When set, any ID not listed
	// is already excluded, so EventIDsToDisable only matters on its own.
	EventIDsToEnable []uint16 `json:"eventIDsToEnable,omitempty"`

	// EventIDsToDisable drops these event IDs.
	EventIDsToDisable []uint16 `json:"eventIDsToDisable,omitempty"`

	// StacksEnabled records a call stack with every event.
	StacksEnabled bool `json:"stacksEnabled"`

	// EnableProperties holds EVENT_ENABLE_PROPERTY_* flags.
	EnableProperties uint32 `json:"enableProperties"`
}

// NewProviderOption returns the default options: every level, no filters.
func NewProviderOption() ProviderOptions {
	return ProviderOptions{Level: TRACE_LEVEL_ALL}
}

// Validate reports option combinations EnableTraceEx2 would reject or that
// contradict each other.
func (o *ProviderOptions) Validate() error {
	var errs []error
	if len(o.ProcessIDs) > MAX_EVENT_FILTER_PID_COUNT {
		errs = append(errs, fmt.Errorf("%d process IDs given, at most %d are allowed",
			len(o.ProcessIDs), MAX_EVENT_FILTER_PID_COUNT))
	}
	for _, name := range o.ExecutableNames {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("empty executable name"))
			break
		}
		if strings.ContainsRune(name, ';') {
			errs = append(errs, fmt.Errorf("executable name %q contains ';'", name))
		}
	}
	for _, id := range o.EventIDsToDisable {
		if slices.Contains(o.EventIDsToEnable, id) {
			errs = append(errs, fmt.Errorf("event ID %d is both enabled and disabled", id))
		}
	}
	return errors.Join(errs...)
}

// enableProperties returns EnableProperties with the flags implied by the
// other options.
func (o *ProviderOptions) enableProperties() uint32 {
	p := o.EnableProperties
	if o.StacksEnabled {
		p |= EVENT_ENABLE_PROPERTY_STACK_TRACE
	}
	return p
}

// providerFilter is the payload of one EVENT_FILTER_DESCRIPTOR.
type providerFilter struct {
	Type uint32
	Data []byte
}

// filters builds the filter payloads in the layout EnableTraceEx2 expects.
func (o *ProviderOptions) filters() []providerFilter {
	var fs []providerFilter
	if len(o.ProcessIDs) > 0 {
		fs = append(fs, newPIDFilter(o.ProcessIDs...))
	}
	if len(o.ExecutableNames) > 0 {
		fs = append(fs, newExecutableNameFilter(o.ExecutableNames...))
	}
	switch {
	case len(o.EventIDsToEnable) > 0:
		fs = append(fs, newEventIDFilter(true, o.EventIDsToEnable...))
	case len(o.EventIDsToDisable) > 0:
		fs = append(fs, newEventIDFilter(false, o.EventIDsToDisable...))
	}
	return fs
}

// PID filter data is an array of ULONG process IDs.
func newPIDFilter(pids ...uint32) providerFilter {
	data := make([]byte, 0, 4*len(pids))
	for _, pid := range pids {
		data = binary.LittleEndian.AppendUint32(data, pid)
	}
	return providerFilter{Type: EVENT_FILTER_TYPE_PID, Data: data}
}

// Executable name filter data is one NUL terminated wide string with the
// names separated by ';'.
func newExecutableNameFilter(names ...string) providerFilter {
	u := utf16.Encode([]rune(strings.Join(names, ";")))
	data := make([]byte, 0, 2*len(u)+2)
	for _, c := range u {
		data = binary.LittleEndian.AppendUint16(data, c)
	}
	data = append(data, 0, 0)
	return providerFilter{Type: EVENT_FILTER_TYPE_EXECUTABLE_NAME, Data: data}
}

// Event ID filter data is EVENT_FILTER_EVENT_ID:
// BOOLEAN FilterIn; UCHAR Reserved; USHORT Count; USHORT Events[Count].
func newEventIDFilter(filterIn bool, ids ...uint16) providerFilter {
	data := make([]byte, 4, 4+2*len(ids))
	if filterIn {
		data[0] = 1
	}
	binary.LittleEndian.PutUint16(data[2:], uint16(len(ids)))
	for _, id := range ids {
		data = binary.LittleEndian.AppendUint16(data, id)
	}
	return providerFilter{Type: EVENT_FILTER_TYPE_EVENT_ID, Data: data}
}
