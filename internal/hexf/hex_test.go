package hexf

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestEncodeToStringU(t *testing.T) {
	t.Parallel()

	for _, src := range [][]byte{
		nil,
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		[]byte("event payload"),
	} {
		want := strings.ToUpper(hex.EncodeToString(src))
		if got := EncodeToStringU(src); got != want {
			t.Errorf("EncodeToStringU(%x) = %q, want %q", src, got, want)
		}
	}
}

func TestNum64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n      uint64
		lower  string
		upper  string
		padded string
	}{
		{0, "0x0", "0x0", "0x0000000000000000"},
		{0x1f, "0x1f", "0x1F", "0x000000000000001F"},
		{0x8000000000000000, "0x8000000000000000", "0x8000000000000000", "0x8000000000000000"},
		{^uint64(0), "0xffffffffffffffff", "0xFFFFFFFFFFFFFFFF", "0xFFFFFFFFFFFFFFFF"},
	}
	for _, tc := range tests {
		if got := Num64(tc.n); got != tc.lower {
			t.Errorf("Num64(%d) = %q, want %q", tc.n, got, tc.lower)
		}
		if got := NUm64(tc.n); got != tc.upper {
			t.Errorf("NUm64(%d) = %q, want %q", tc.n, got, tc.upper)
		}
		if got := NUm64p(tc.n); got != tc.padded {
			t.Errorf("NUm64p(%d) = %q, want %q", tc.n, got, tc.padded)
		}
	}
}

func TestAppendUintKeepsPrefix(t *testing.T) {
	t.Parallel()

	got := string(AppendUint([]byte("mask="), 0x10, false, false))
	if got != "mask=0x10" {
		t.Fatalf("got %q", got)
	}
}
