//go:build windows && (amd64 || arm64)

package etw

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/tekert/eventtrace/internal/utf16f"

	"golang.org/x/sys/windows"
)

// wideAt reads the NUL terminated UTF-16 string at offset in a TDH buffer.
func wideAt(buf []byte, offset uint32) string {
	if offset == 0 || int(offset)+2 > len(buf) {
		return ""
	}
	p := unsafe.Pointer(&buf[offset])
	return utf16f.DecodeWtf8(unsafe.Slice((*uint16)(p), (len(buf)-int(offset))/2))
}

// tdhBuffer calls a TDH function until its buffer is large enough.
func tdhBuffer(size uint32, call func(buf unsafe.Pointer, size *uint32) error) ([]byte, error) {
	for {
		buf := make([]byte, max(size, 8))
		size = uint32(len(buf))
		err := call(unsafe.Pointer(&buf[0]), &size)
		if errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf, nil
	}
}

func enumerateProviders() ([]ProviderMetadata, error) {
	buf, err := tdhBuffer(256*1024, tdhEnumProviders)
	if err != nil {
		return nil, fmt.Errorf("TdhEnumerateProviders: %w", err)
	}

	info := (*providerEnumerationInfo)(unsafe.Pointer(&buf[0]))
	entries := unsafe.Slice(
		(*traceProviderInfo)(unsafe.Add(unsafe.Pointer(info), unsafe.Sizeof(*info))),
		info.NumberOfProviders)

	providers := make([]ProviderMetadata, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		schema := SchemaManifest
		if e.SchemaSource != 0 {
			schema = SchemaMOF
		}
		providers = append(providers, ProviderMetadata{
			Name:         wideAt(buf, e.ProviderNameOffset),
			GUID:         e.ProviderGuid,
			SchemaSource: schema,
		})
	}
	return providers, nil
}

// providerFields returns nil without error when the provider has no metadata
// of this type.
func providerFields(guid *GUID, ft EventFieldType) ([]ProviderKeyword, error) {
	buf, err := tdhBuffer(4096, func(b unsafe.Pointer, size *uint32) error {
		return tdhEnumProviderFields(guid, ft, b, size)
	})
	switch {
	case errors.Is(err, windows.ERROR_NOT_FOUND),
		errors.Is(err, windows.ERROR_NOT_SUPPORTED):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("TdhEnumerateProviderFieldInformation: %w", err)
	}

	arr := (*providerFieldInfoArray)(unsafe.Pointer(&buf[0]))
	entries := unsafe.Slice(
		(*providerFieldInfo)(unsafe.Add(unsafe.Pointer(arr), unsafe.Sizeof(*arr))),
		arr.NumberOfElements)

	fields := make([]ProviderKeyword, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		fields = append(fields, ProviderKeyword{
			Name:        wideAt(buf, e.NameOffset),
			Description: wideAt(buf, e.DescriptionOffset),
			Value:       e.Value,
		})
	}
	return fields, nil
}
