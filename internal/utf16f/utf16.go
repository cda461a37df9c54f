// Package utf16f decodes the NUL terminated UTF-16 strings found in TDH and
// trace header buffers.
package utf16f

import (
	"unicode/utf16"
	"unicode/utf8"
)

// AppendWtf8 decodes src up to its first NUL and appends the result to dst.
// Unpaired surrogates are kept as their 3 byte WTF-8 form instead of being
// replaced, so provider names with broken strings still round trip.
func AppendWtf8(dst []byte, src []uint16) []byte {
	for i := 0; i < len(src); i++ {
		v := src[i]
		switch {
		case v == 0:
			return dst
		case v < 0x80:
			dst = append(dst, byte(v))
		case v < 0x800:
			dst = append(dst, 0xc0|byte(v>>6), 0x80|byte(v)&0x3f)
		case v >= 0xd800 && v < 0xdc00 && i+1 < len(src) && src[i+1] >= 0xdc00 && src[i+1] < 0xe000:
			dst = utf8.AppendRune(dst, utf16.DecodeRune(rune(v), rune(src[i+1])))
			i++
		default:
			dst = append(dst, 0xe0|byte(v>>12), 0x80|byte(v>>6)&0x3f, 0x80|byte(v)&0x3f)
		}
	}
	return dst
}

// DecodeWtf8 returns src up to its first NUL as a string.
func DecodeWtf8(src []uint16) string {
	if len(src) == 0 {
		return ""
	}
	return string(AppendWtf8(make([]byte, 0, len(src)), src))
}
