package etw

import (
	"errors"
	"fmt"
)

// GUID has the memory layout of a Windows GUID so it can be handed to the
// tracing APIs as is.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

var errInvalidGUID = errors.New("invalid GUID")

// IsZero returns true if all fields of the GUID are zero.
func (g *GUID) IsZero() bool {
	return *g == GUID{}
}

// Equals reports whether g and other hold the same value.
func (g *GUID) Equals(other *GUID) bool {
	return *g == *other
}

const (
	hexLower = "0123456789abcdef"
	hexUpper = "0123456789ABCDEF"
)

func (g GUID) appendHex(b []byte, table string) []byte {
	put := func(v uint64, digits int) {
		for i := digits - 1; i >= 0; i-- {
			b = append(b, table[(v>>(uint(i)*4))&0xf])
		}
	}
	put(uint64(g.Data1), 8)
	b = append(b, '-')
	put(uint64(g.Data2), 4)
	b = append(b, '-')
	put(uint64(g.Data3), 4)
	b = append(b, '-')
	for i, v := range g.Data4 {
		if i == 2 {
			b = append(b, '-')
		}
		b = append(b, table[v>>4], table[v&0xf])
	}
	return b
}

// String returns the lower-case form without braces,
// 45d8cccd-539f-4b72-a8b7-5c683142609a.
func (g GUID) String() string {
	return string(g.appendHex(make([]byte, 0, 36), hexLower))
}

// StringU returns the upper-case form with braces, the way the registry and
// logman print provider GUIDs: {45D8CCCD-539F-4B72-A8B7-5C683142609A}.
func (g GUID) StringU() string {
	b := make([]byte, 0, 38)
	b = append(b, '{')
	b = g.appendHex(b, hexUpper)
	return string(append(b, '}'))
}

// AppendText implements encoding.TextAppender.
func (g GUID) AppendText(b []byte) ([]byte, error) {
	return g.appendHex(b, hexLower), nil
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return g.AppendText(make([]byte, 0, 36))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := ParseGUID(string(text))
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}

// MustParseGUID is like ParseGUID but panics on error.
func MustParseGUID(s string) *GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ParseGUID parses xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx, optionally enclosed
// in braces.
func ParseGUID(s string) (*GUID, error) {
	orig := s
	if len(s) == 38 {
		if s[0] != '{' || s[37] != '}' {
			return nil, fmt.Errorf("%w %q: mismatched braces", errInvalidGUID, orig)
		}
		s = s[1:37]
	}
	if len(s) != 36 {
		return nil, fmt.Errorf("%w %q: bad length", errInvalidGUID, orig)
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return nil, fmt.Errorf("%w %q: bad separators", errInvalidGUID, orig)
	}

	hexDigits := s[0:8] + s[9:13] + s[14:18] + s[19:23] + s[24:36]
	var b [16]byte
	for i := range b {
		hi, ok1 := unhex(hexDigits[2*i])
		lo, ok2 := unhex(hexDigits[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w %q: bad hex digit", errInvalidGUID, orig)
		}
		b[i] = hi<<4 | lo
	}

	g := &GUID{
		Data1: uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		Data2: uint16(b[4])<<8 | uint16(b[5]),
		Data3: uint16(b[6])<<8 | uint16(b[7]),
	}
	copy(g.Data4[:], b[8:])
	return g, nil
}
