//go:build windows && (amd64 || arm64)

package etw

// Decoding follows the TdhFormatProperty sample:
// https://learn.microsoft.com/en-us/windows/win32/etw/using-tdhformatproperty-to-consume-event-data

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"unsafe"

	"github.com/tekert/eventtrace/internal/hexf"
	"github.com/tekert/eventtrace/internal/utf16f"

	"golang.org/x/sys/windows"
)

// errNoSchema is returned when TDH has no metadata for an event.
var errNoSchema = errors.New("no schema for event")

// propertyDecoder turns EVENT_RECORD payloads into EventProperty lists. It
// keeps its buffers between events and is not safe for concurrent use.
type propertyDecoder struct {
	infoBuf []byte
	mapBuf  []byte
	out     []uint16

	// per event state
	rec       *eventRecord
	info      *traceEventInfo
	data      uintptr
	remaining uint16
	ptrSize   uint32
	props     []EventProperty
}

func newPropertyDecoder() *propertyDecoder {
	return &propertyDecoder{
		infoBuf: make([]byte, 4096),
		mapBuf:  make([]byte, 1024),
		out:     make([]uint16, 256),
	}
}

// eventInfo loads the TRACE_EVENT_INFO of rec into infoBuf.
func (d *propertyDecoder) eventInfo(rec *eventRecord) (*traceEventInfo, error) {
	for {
		size := uint32(len(d.infoBuf))
		err := tdhEventInformation(rec, unsafe.Pointer(&d.infoBuf[0]), &size)
		switch {
		case errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER):
			d.infoBuf = make([]byte, size)
			continue
		case errors.Is(err, windows.ERROR_NOT_FOUND):
			return nil, errNoSchema
		case err != nil:
			return nil, fmt.Errorf("TdhGetEventInformation: %w", err)
		}
		return (*traceEventInfo)(unsafe.Pointer(&d.infoBuf[0])), nil
	}
}

// decode fills the names and properties of e. On a decoding failure the
// properties read so far are kept and the rest of the payload goes to RawData.
func (d *propertyDecoder) decode(rec *eventRecord, e *Event) error {
	defer runtime.KeepAlive(d.infoBuf)

	if rec.EventHeader.Flags&EVENT_HEADER_FLAG_STRING_ONLY != 0 {
		e.Properties = []EventProperty{{Name: "Message", Value: stringOnly(rec)}}
		return nil
	}

	info, err := d.eventInfo(rec)
	if err != nil {
		e.RawData = hexf.EncodeToStringU(rec.userData())
		return err
	}

	e.Provider.Name = wideAt(d.infoBuf, info.ProviderNameOffset)
	e.TaskName = wideAt(d.infoBuf, info.TaskNameOffset)
	e.OpcodeName = wideAt(d.infoBuf, info.OpcodeNameOffset)
	e.EventName = wideAt(d.infoBuf, info.EventNameOffset)

	d.rec = rec
	d.info = info
	d.data = rec.UserData
	d.remaining = rec.UserDataLength
	d.ptrSize = rec.pointerSize()
	d.props = make([]EventProperty, 0, info.TopLevelPropertyCount)

	err = d.properties(0, info.TopLevelPropertyCount, "")
	e.Properties = d.props
	if err != nil && d.remaining > 0 {
		rest := unsafe.Slice((*byte)(unsafe.Pointer(d.data)), d.remaining)
		e.RawData = hexf.EncodeToStringU(rest)
	}
	d.rec, d.info, d.props = nil, nil, nil
	return err
}

func stringOnly(rec *eventRecord) string {
	if rec.UserData == 0 || rec.UserDataLength < 2 {
		return ""
	}
	return utf16f.DecodeWtf8(unsafe.Slice((*uint16)(unsafe.Pointer(rec.UserData)), rec.UserDataLength/2))
}

func (d *propertyDecoder) properties(start, count uint32, prefix string) error {
	for i := start; i < start+count; i++ {
		// Some providers log fewer properties than their schema declares.
		if d.remaining == 0 {
			return nil
		}
		if err := d.property(i, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (d *propertyDecoder) property(index uint32, prefix string) error {
	epi := d.info.property(index)
	name := prefix + wideAt(d.infoBuf, epi.NameOffset)

	count, err := d.arrayCount(epi)
	if err != nil {
		return fmt.Errorf("count of %s: %w", name, err)
	}
	isArray := count > 1 || epi.Flags&(PropertyParamCount|PropertyParamFixedCount) != 0

	for k := range count {
		elem := name
		if isArray {
			elem = name + "[" + strconv.Itoa(int(k)) + "]"
		}
		if epi.Flags&PropertyStruct != 0 {
			err := d.properties(uint32(epi.structStartIndex()), uint32(epi.numOfStructMembers()), elem+".")
			if err != nil {
				return err
			}
			continue
		}
		if d.remaining == 0 {
			return nil
		}
		length, err := d.propertyLength(epi)
		if err != nil {
			return fmt.Errorf("length of %s: %w", elem, err)
		}
		value, err := d.format(epi, length)
		if err != nil {
			return fmt.Errorf("property %s: %w", elem, err)
		}
		d.props = append(d.props, EventProperty{Name: elem, Value: value})
	}
	return nil
}

func (d *propertyDecoder) arrayCount(epi *eventPropertyInfo) (uint32, error) {
	if epi.Flags&PropertyParamCount != 0 {
		return d.referencedValue(epi.Count)
	}
	if epi.Count == 0 && epi.Flags&PropertyParamFixedCount == 0 {
		return 1, nil
	}
	return uint32(epi.Count), nil
}

func (d *propertyDecoder) propertyLength(epi *eventPropertyInfo) (uint16, error) {
	if epi.Flags&PropertyParamLength != 0 {
		v, err := d.referencedValue(epi.Length)
		return uint16(v), err
	}
	// IPv6 addresses are declared as binary without a length.
	if epi.Length == 0 && epi.InType == TDH_INTYPE_BINARY && epi.OutType == TDH_OUTTYPE_IPV6 {
		return 16, nil
	}
	return epi.Length, nil
}

// referencedValue reads the integer property a length or count refers to.
func (d *propertyDecoder) referencedValue(index uint16) (uint32, error) {
	ref := d.info.property(uint32(index))
	desc := propertyDataDescriptor{
		PropertyName: uint64(uintptr(unsafe.Pointer(&d.infoBuf[ref.NameOffset]))),
		ArrayIndex:   0xFFFFFFFF,
	}
	var size uint32
	if err := tdhPropertySize(d.rec, &desc, &size); err != nil {
		return 0, fmt.Errorf("TdhGetPropertySize: %w", err)
	}
	if size > 8 {
		return 0, fmt.Errorf("referenced property has %d bytes", size)
	}
	var v uint64
	if err := tdhProperty(d.rec, &desc, size, unsafe.Pointer(&v)); err != nil {
		return 0, fmt.Errorf("TdhGetProperty: %w", err)
	}
	return uint32(v), nil
}

// eventMap returns the EVENT_MAP_INFO for a map name, or nil if TDH has none.
func (d *propertyDecoder) eventMap(nameOffset uint32) unsafe.Pointer {
	name := unsafe.Pointer(&d.infoBuf[nameOffset])
	for {
		size := uint32(len(d.mapBuf))
		err := tdhEventMapInformation(d.rec, name, unsafe.Pointer(&d.mapBuf[0]), &size)
		if errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
			d.mapBuf = make([]byte, size)
			continue
		}
		if err != nil {
			return nil
		}
		return unsafe.Pointer(&d.mapBuf[0])
	}
}

func (d *propertyDecoder) format(epi *eventPropertyInfo, length uint16) (string, error) {
	var mapInfo unsafe.Pointer
	if epi.MapNameOffset != 0 {
		mapInfo = d.eventMap(epi.MapNameOffset)
	}

	for {
		size := uint32(len(d.out) * 2)
		var consumed uint16
		err := tdhFormat(
			unsafe.Pointer(d.info),
			mapInfo,
			d.ptrSize,
			epi.InType,
			epi.OutType,
			length,
			d.remaining,
			d.data,
			&size,
			&d.out[0],
			&consumed,
		)
		switch {
		case errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER):
			d.out = make([]uint16, size/2+1)
			continue
		case errors.Is(err, windows.ERROR_EVT_INVALID_EVENT_DATA) && mapInfo != nil:
			// The value is not in the map, format it as a plain number.
			mapInfo = nil
			continue
		case err != nil:
			return "", fmt.Errorf("TdhFormatProperty: %w", err)
		}

		if consumed > d.remaining {
			return "", fmt.Errorf("consumed %d bytes with %d left", consumed, d.remaining)
		}
		d.data += uintptr(consumed)
		d.remaining -= consumed
		return utf16f.DecodeWtf8(d.out[:size/2]), nil
	}
}
