// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package manchester

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for v := 0; v < 16; v++ {
		enc := Encode(byte(v))
		nibble, ok := Decode(enc)
		if !ok {
			t.Fatalf("Decode(%#x) (encoding of %#x) reported invalid", enc, v)
		}
		if nibble != byte(v) {
			t.Fatalf("round trip %#x -> %#x -> %#x, want %#x", v, enc, nibble, v)
		}
		if !Valid(enc) {
			t.Fatalf("Valid(%#x) false for known-good encoding of %#x", enc, v)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	invalid := map[string]byte{
		"zero":        0x00,
		"trailer":     0x35,
		"mixed-nibbles": 0x5A ^ 0x01, // flip a bit out of an otherwise-valid code
	}
	for name, b := range invalid {
		if Valid(b) {
			t.Fatalf("%s: Valid(%#x) true, want false", name, b)
		}
		if _, ok := Decode(b); ok {
			t.Fatalf("%s: Decode(%#x) ok, want failure", name, b)
		}
	}
}

func TestValidMatchesEncodeImage(t *testing.T) {
	image := map[byte]bool{}
	for v := 0; v < 16; v++ {
		image[Encode(byte(v))] = true
	}
	for b := 0; b < 256; b++ {
		want := image[byte(b)]
		got := Valid(byte(b))
		if got != want {
			t.Fatalf("Valid(%#x) = %v, want %v (in encode image: %v)", b, got, want, want)
		}
	}
}
