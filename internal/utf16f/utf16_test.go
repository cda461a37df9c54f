package utf16f

import (
	"testing"
	"unicode/utf16"
)

func TestDecodeWtf8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []uint16
		want string
	}{
		{"Empty", nil, ""},
		{"ASCII", utf16.Encode([]rune("Microsoft-Windows-Kernel-Process")), "Microsoft-Windows-Kernel-Process"},
		{"TwoAndThreeBytes", utf16.Encode([]rune("héllo €")), "héllo €"},
		{"SurrogatePair", utf16.Encode([]rune("trace 🔥")), "trace 🔥"},
		{"StopsAtNUL", append(utf16.Encode([]rune("abc")), 0, 'x'), "abc"},
		{"UnpairedSurrogate", []uint16{'a', 0xd800, 'b'}, "a\xed\xa0\x80b"},
		{"TrailingHighSurrogate", []uint16{'a', 0xdbff}, "a\xed\xaf\xbf"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeWtf8(tc.in); got != tc.want {
				t.Fatalf("DecodeWtf8 = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppendWtf8(t *testing.T) {
	t.Parallel()

	got := AppendWtf8([]byte("name="), utf16.Encode([]rune("session")))
	if string(got) != "name=session" {
		t.Fatalf("got %q", got)
	}
}
