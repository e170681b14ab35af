// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package framer

import (
	"testing"

	"github.com/tve/ramses-gw/manchester"
	"github.com/tve/ramses-gw/message"
	"github.com/tve/ramses-gw/msgpool"
)

// manchesterBytes returns the raw on-air byte sequence for a record's message bytes:
// every message byte is split into two 4 bit nibbles (high first) and each nibble is
// manchester-encoded into its own raw byte.
func manchesterBytes(msgBytes []byte) []byte {
	raw := make([]byte, 0, len(msgBytes)*2)
	for _, b := range msgBytes {
		raw = append(raw, manchester.Encode(b>>4), manchester.Encode(b&0x0F))
	}
	return raw
}

// syncBytes returns the 5 raw bytes (already on-air, not manchester-coded) the sync
// detector scans for: 0xFF, 0x00, 0x33, 0x55, 0x53.
func syncBytes() []byte {
	return []byte{0xFF, 0x00, 0x33, 0x55, 0x53}
}

func feedRX(t *testing.T, r *rx, raw []byte) (terminal bool, consumed int) {
	t.Helper()
	for i, b := range raw {
		if r.byte(b) {
			return true, i + 1
		}
	}
	return false, len(raw)
}

func TestRXAssemblesFrameAfterSync(t *testing.T) {
	pool := msgpool.New(4)
	r := newRX(pool)

	// Build the message bytes for a simple I frame: header, addr2, opcode, len=1, payload, checksum.
	rec := &message.Record{}
	rec.SetType(message.I)
	rec.SetAddr(2, message.Address{Class: 18, ID: 730})
	rec.SetOpcode(0x1060)
	rec.SetPayload([]byte{0x00})
	rec.TXStart()
	var msgBytes []byte
	for {
		b, done := rec.TXByte()
		if done {
			break
		}
		msgBytes = append(msgBytes, b)
	}

	raw := append(syncBytes(), manchesterBytes(msgBytes)...)
	raw = append(raw, trailer)

	term, _ := feedRX(t, r, raw)
	if !term {
		t.Fatalf("rx did not reach a terminal state")
	}
	if !r.terminal() {
		t.Fatalf("r.terminal() false after trailer byte")
	}

	r.finish(func() byte { return 42 })

	h := pool.GetRXReady()
	if h == msgpool.Invalid {
		t.Fatalf("no record pushed to rx-ready queue")
	}
	got := pool.Record(h)
	if !got.Valid() {
		t.Fatalf("assembled record has error %v, want OK", got.Err)
	}
	if got.Type() != message.I {
		t.Fatalf("Type = %v, want I", got.Type())
	}
	if got.Opcode() != 0x1060 {
		t.Fatalf("Opcode = %#04x, want 0x1060", got.Opcode())
	}
	if got.RSSI != 42 {
		t.Fatalf("RSSI = %d, want 42", got.RSSI)
	}
}

func TestRXPoolExhaustionDuringSyncStaysInSynch(t *testing.T) {
	pool := msgpool.New(1)
	// Exhaust the pool before the sync detector ever gets a chance to allocate.
	pool.Alloc()

	r := newRX(pool)
	for _, b := range syncBytes() {
		if r.byte(b) {
			t.Fatalf("byte() reported terminal during sync scan")
		}
	}
	if r.state != rxSynch {
		t.Fatalf("state = %v, want rxSynch (pool exhausted, no record to assemble into)", r.state)
	}
	if r.cur != msgpool.Invalid {
		t.Fatalf("cur = %v, want Invalid", r.cur)
	}
}

func TestRXManchesterErrorAborts(t *testing.T) {
	pool := msgpool.New(4)
	r := newRX(pool)

	raw := append(syncBytes(), 0x00) // 0x00 is not valid manchester code
	term, consumed := feedRX(t, r, raw)
	if !term {
		t.Fatalf("rx did not abort on invalid manchester byte")
	}
	if consumed != len(raw) {
		t.Fatalf("consumed %d bytes, want %d", consumed, len(raw))
	}

	r.finish(func() byte { return 0 })
	h := pool.GetRXReady()
	if h == msgpool.Invalid {
		t.Fatalf("no record pushed to rx-ready queue after abort")
	}
	got := pool.Record(h)
	if got.Err != message.MancErr {
		t.Fatalf("Err = %v, want MancErr", got.Err)
	}
}

func TestRXOverrunAborts(t *testing.T) {
	pool := msgpool.New(4)
	r := newRX(pool)

	raw := syncBytes()
	for _, b := range raw {
		if r.byte(b) {
			t.Fatalf("sync scan terminated early")
		}
	}

	// A complete, valid record first (RQ, addr2 only, zero address and opcode, len=1,
	// payload 0x00, checksum 0xFB): the parser ignores every byte after it, so the fill
	// below can only end the frame by overrunning the raw buffer.
	for _, b := range manchesterBytes([]byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0xFB}) {
		if r.byte(b) {
			t.Fatalf("valid record terminated the frame early")
		}
	}

	fill := manchester.Encode(0xA)
	terminal := false
	for i := 0; i < message.MaxRaw+1; i++ {
		if r.byte(fill) {
			terminal = true
			break
		}
	}
	if !terminal {
		t.Fatalf("rx did not abort once raw buffer overran MaxRaw")
	}

	r.finish(func() byte { return 0 })
	h := pool.GetRXReady()
	got := pool.Record(h)
	if got.Err != message.OverrunErr {
		t.Fatalf("Err = %v, want OverrunErr", got.Err)
	}
}

func TestRXByteErrorDuringMessageAborts(t *testing.T) {
	pool := msgpool.New(4)
	r := newRX(pool)

	for _, b := range syncBytes() {
		r.byte(b)
	}

	// Header byte with type=RQ, addr2-only, no params: 0x04, then a zero address, a zero
	// opcode and len=0. The record parser rejects len=0 with TruncErr as soon as that
	// byte arrives, so the frame aborts before the trailer is reached.
	header := manchesterBytes([]byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	raw := append(append([]byte{}, header...), trailer)

	term, _ := feedRX(t, r, raw)
	if !term {
		t.Fatalf("rx did not reach a terminal state")
	}

	r.finish(func() byte { return 0 })
	h := pool.GetRXReady()
	got := pool.Record(h)
	if got.Valid() {
		t.Fatalf("record unexpectedly valid, want a truncation/mandatory-field error")
	}
}
