// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package framer

import (
	"testing"

	"github.com/tve/ramses-gw/manchester"
	"github.com/tve/ramses-gw/message"
)

func buildTXRecord() *message.Record {
	rec := &message.Record{}
	rec.SetType(message.W)
	rec.SetAddr(0, message.Address{Class: 1, ID: 9})
	rec.SetAddr(2, message.Address{Class: 1, ID: 2})
	rec.SetParam(0, 6)
	rec.SetOpcode(0x0006)
	rec.SetPayload([]byte{0x00})
	rec.TXStart()
	return rec
}

func TestTXFrameHasPrefixMessageSuffix(t *testing.T) {
	rec := buildTXRecord()
	g := newTX()
	g.start(rec)

	var got []byte
	for {
		b, done := g.byte()
		if done {
			break
		}
		got = append(got, b)
	}
	if !g.finished() {
		t.Fatalf("generator not finished after byte() reported done")
	}

	for i, want := range txPrefix {
		if got[i] != want {
			t.Fatalf("prefix[%d] = %#02x, want %#02x", i, got[i], want)
		}
	}
	suffix := got[len(got)-len(txSuffix):]
	for i, want := range txSuffix {
		if suffix[i] != want {
			t.Fatalf("suffix[%d] = %#02x, want %#02x", i, suffix[i], want)
		}
	}

	// Everything between prefix and suffix must be valid manchester code, in pairs.
	middle := got[len(txPrefix) : len(got)-len(txSuffix)]
	if len(middle)%2 != 0 {
		t.Fatalf("middle section has odd length %d", len(middle))
	}
	for _, b := range middle {
		if !manchester.Valid(b) {
			t.Fatalf("byte %#02x in message section is not valid manchester code", b)
		}
	}
}

func TestTXFrameMessageDecodesBackToSameRecord(t *testing.T) {
	rec := buildTXRecord()
	g := newTX()
	g.start(rec)

	var frame []byte
	for {
		b, done := g.byte()
		if done {
			break
		}
		frame = append(frame, b)
	}
	middle := frame[len(txPrefix) : len(frame)-len(txSuffix)]

	got := &message.Record{}
	got.RXReset()
	var pending byte
	high := true
	for _, b := range middle {
		nibble, ok := manchester.Decode(b)
		if !ok {
			t.Fatalf("middle byte %#02x failed to decode", b)
		}
		if high {
			pending = nibble << 4
			high = false
		} else {
			pending |= nibble
			high = true
			if err := got.RXByte(pending); err != message.OK {
				t.Fatalf("RXByte error: %v", err)
			}
		}
	}
	got.RXEnd(len(middle), message.OK)

	if !got.Valid() {
		t.Fatalf("decoded record invalid: %v", got.Err)
	}
	if got.Type() != message.W {
		t.Fatalf("Type = %v, want W", got.Type())
	}
	if got.Opcode() != 0x0006 {
		t.Fatalf("Opcode = %#04x, want 0x0006", got.Opcode())
	}
	if len(got.PayloadBytes()) != 1 || got.PayloadBytes()[0] != 0x00 {
		t.Fatalf("payload = %v, want [0x00]", got.PayloadBytes())
	}
}

func TestPacerProducesFiveOctetsPerFourBytes(t *testing.T) {
	var written []byte
	write := func(b byte) int {
		written = append(written, b)
		return 15
	}

	var p pacer
	input := []byte{0x12, 0x34, 0x56, 0x78}
	for _, b := range input {
		p.pushByte(write, b)
	}
	p.flush(write)

	// 4 bytes in (32 bits) plus 1 start+stop pair per byte (8 bits) = 40 bits = 5
	// octets, plus one trailing "space" flush octet (0xFF) since bits==0 after the
	// fourth byte leaves nothing partial to flush beyond the idle line condition.
	if len(written) != 6 {
		t.Fatalf("wrote %d octets, want 6 (5 data + 1 idle-line)", len(written))
	}
	if written[len(written)-1] != 0xFF {
		t.Fatalf("last octet = %#02x, want 0xFF (idle line)", written[len(written)-1])
	}
}
