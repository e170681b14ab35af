// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package manchester implements the 4-bit <-> 8-bit Manchester code used over the
// body of a RAMSES on-air frame.
//
// The bitstream as a whole is big-endian, but the Manchester codes inserted into it
// are little-endian, so Encode converts a big-endian nibble to a little-endian byte
// and Decode does the inverse. Only a small subset of byte values are valid Manchester
// code, which lets the framer detect line corruption a level below the frame checksum.
package manchester

// encodeTable converts a big-endian 4 bit value to its little-endian Manchester byte.
var encodeTable = [16]byte{
	0xAA, 0xA9, 0xA6, 0xA5, 0x9A, 0x99, 0x96, 0x95,
	0x6A, 0x69, 0x66, 0x65, 0x5A, 0x59, 0x56, 0x55,
}

// decodeHalfTable converts a little-endian 4 bit half-byte to its 2 bit value, or to
// 0xF if the half-byte is not valid Manchester code.
var decodeHalfTable = [16]byte{
	0xF, 0xF, 0xF, 0xF, 0xF, 0x3, 0x2, 0xF,
	0xF, 0x1, 0x0, 0xF, 0xF, 0xF, 0xF, 0xF,
}

// invalidHalf is the sentinel decodeHalfTable entry returned for a half-byte that is
// not one of the four valid Manchester symbols.
const invalidHalf = 0xF

// Encode converts a big-endian nibble (the low 4 bits of v are used) into its
// Manchester-coded byte.
func Encode(v byte) byte {
	return encodeTable[v&0xF]
}

// Decode converts a Manchester-coded byte back into its original 4 bit nibble. ok is
// false if either half of b is not valid Manchester code, in which case the returned
// nibble is meaningless.
func Decode(b byte) (nibble byte, ok bool) {
	lo := decodeHalfTable[b&0xF]
	hi := decodeHalfTable[(b>>4)&0xF]
	if lo == invalidHalf || hi == invalidHalf {
		return 0, false
	}
	return lo | (hi << 2), true
}

// Valid reports whether b decodes to a valid Manchester nibble.
func Valid(b byte) bool {
	_, ok := Decode(b)
	return ok
}
