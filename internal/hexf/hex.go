// Package hexf formats keyword masks and raw event payloads as hex without
// going through fmt.
package hexf

const (
	hexUpper = "0123456789ABCDEF"
	hexLower = "0123456789abcdef"
)

// AppendEncodeU appends the upper-case hex encoding of src to dst.
func AppendEncodeU(dst, src []byte) []byte {
	for _, v := range src {
		dst = append(dst, hexUpper[v>>4], hexUpper[v&0x0f])
	}
	return dst
}

// EncodeToStringU returns the upper-case hex encoding of src, no prefix.
func EncodeToStringU(src []byte) string {
	if len(src) == 0 {
		return ""
	}
	return string(AppendEncodeU(make([]byte, 0, len(src)*2), src))
}

// AppendUint appends n as "0x" prefixed hex. With pad the value is
// zero-padded to 16 digits, otherwise leading zeroes are trimmed.
func AppendUint(dst []byte, n uint64, upper, pad bool) []byte {
	table := hexLower
	if upper {
		table = hexUpper
	}
	var buf [16]byte
	for i := 15; i >= 0; i-- {
		buf[i] = table[n&0x0f]
		n >>= 4
	}
	digits := buf[:]
	if !pad {
		i := 0
		for i < 15 && digits[i] == '0' {
			i++
		}
		digits = digits[i:]
	}
	dst = append(dst, '0', 'x')
	return append(dst, digits...)
}

// Num64 formats n as trimmed lower-case hex, 0x1f.
func Num64(n uint64) string {
	return string(AppendUint(make([]byte, 0, 18), n, false, false))
}

// NUm64 formats n as trimmed upper-case hex, 0x1F.
func NUm64(n uint64) string {
	return string(AppendUint(make([]byte, 0, 18), n, true, false))
}

// NUm64p formats n as upper-case hex zero-padded to 16 digits, 0x000000000000001F.
func NUm64p(n uint64) string {
	return string(AppendUint(make([]byte, 0, 18), n, true, true))
}
