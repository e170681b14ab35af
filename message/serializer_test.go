// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package message

import "testing"

func TestTXByteRoundTripsThroughRXByte(t *testing.T) {
	tx := &Record{}
	tx.SetType(I)
	tx.SetAddr(0, Address{Class: 18, ID: 1})
	tx.SetAddr(2, Address{Class: 18, ID: 2})
	tx.SetParam(1, 7)
	tx.SetOpcode(0x1004)
	tx.SetPayload([]byte{0xAA, 0xBB, 0xCC})
	tx.TXStart()

	rx := &Record{}
	rx.RXReset()
	var (
		b    byte
		done bool
		last Error
	)
	n := 0
	for !done {
		b, done = tx.TXByte()
		if done {
			break
		}
		last = rx.RXByte(b)
		n++
	}
	if err := rx.RXEnd(n, last); err != OK {
		t.Fatalf("round trip RX error = %v, want OK", err)
	}

	if rx.Type() != I {
		t.Fatalf("Type = %v, want I", rx.Type())
	}
	if rx.Addr(0) != (Address{Class: 18, ID: 1}) {
		t.Fatalf("Addr(0) = %v", rx.Addr(0))
	}
	if rx.Addr(2) != (Address{Class: 18, ID: 2}) {
		t.Fatalf("Addr(2) = %v", rx.Addr(2))
	}
	if rx.HasAddr(1) {
		t.Fatalf("Addr(1) should be absent")
	}
	if !rx.HasParam(1) || rx.Param(1) != 7 {
		t.Fatalf("Param(1) = %v, present=%v", rx.Param(1), rx.HasParam(1))
	}
	if rx.Opcode() != 0x1004 {
		t.Fatalf("Opcode = %#04x, want 0x1004", rx.Opcode())
	}
	if string(rx.PayloadBytes()) != string([]byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("Payload = %v", rx.PayloadBytes())
	}
}

func TestTXByteSkipsAbsentOptionalFieldsInOneCall(t *testing.T) {
	tx := &Record{}
	tx.SetType(RP)
	tx.SetAddr(2, Address{Class: 1, ID: 5})
	tx.SetOpcode(0x31DA)
	tx.SetPayload([]byte{0x01})
	tx.TXStart()

	var bytes []byte
	for {
		b, done := tx.TXByte()
		if done {
			break
		}
		bytes = append(bytes, b)
	}
	// header + addr2(3) + opcode(2) + len(1) + payload(1) + checksum(1)
	want := 1 + 3 + 2 + 1 + 1 + 1
	if len(bytes) != want {
		t.Fatalf("emitted %d bytes, want %d (%v)", len(bytes), want, bytes)
	}
}

func TestRecordStringFormatsAbsentFieldsAsPlaceholders(t *testing.T) {
	r := &Record{}
	r.SetType(I)
	r.SetAddr(2, Address{Class: 18, ID: 730})
	r.rxFields = fAddr2
	r.SetOpcode(0x1060)
	r.rxFields |= fOpcode | fLen
	r.Len = 1
	r.SetPayload([]byte{0x00})

	got := r.String()
	want := "--- I --- --:------ --:------ 18:000730 1060 001 00"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
