// Package codec implements the diff-record wire format.
package codec

// MaxVarintLen is the longest varint encoding of a uint32.
const MaxVarintLen = 4

// VarintLen returns the number of bytes PutVarint uses for v.
func VarintLen(v uint32) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

// PutVarint writes v least significant byte first using the shortest
// length that preserves it, and returns that length.
// It panics if dst is too small.
func PutVarint(dst []byte, v uint32) int {
	n := VarintLen(v)
	_ = dst[n-1]
	for i := 0; i < n; i++ {
		dst[i] = byte(v >> (8 * i))
	}
	return n
}

// AppendVarint appends the varint encoding of v to dst.
func AppendVarint(dst []byte, v uint32) []byte {
	var buf [MaxVarintLen]byte
	n := PutVarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Varint zero-extends the little-endian bytes of src (1 to 4 of them).
// Bytes past the fourth are ignored.
func Varint(src []byte) uint32 {
	var v uint32
	for i := 0; i < len(src) && i < MaxVarintLen; i++ {
		v |= uint32(src[i]) << (8 * i)
	}
	return v
}
