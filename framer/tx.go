// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package framer

import (
	"github.com/tve/ramses-gw/manchester"
	"github.com/tve/ramses-gw/message"
)

// txPrefix is <preamble><sync word><header>, sent ahead of every frame's message bytes.
var txPrefix = [...]byte{
	0x55, 0x55, 0x55, 0x55, 0x55, // preamble
	0xFF, 0x00, // sync word
	0x33, 0x55, 0x53, // header
}

// txSuffix is <trailer><training>, sent once the message bytes have gone out.
var txSuffix = [...]byte{
	0x35,             // trailer
	0x55, 0x55, 0x55, // training
}

type txState uint8

const (
	txStateIdle txState = iota
	txStateMessage
	txStateDone
)

// tx builds the manchester-coded byte stream for one frame up front (ported from
// frame_tx_start, which fully encodes the message into a raw buffer before any byte
// leaves the state machine) and then serves it one byte at a time. Ports frame_tx_byte.
type tx struct {
	state txState
	raw   []byte // preamble+sync+header, manchester(message), trailer+training
	pos   int
}

func newTX() *tx {
	return &tx{state: txStateIdle}
}

// start encodes rec's on-air message bytes into the frame's raw byte stream and arms
// the state machine. rec must already have had TXStart called on it.
func (t *tx) start(rec *message.Record) {
	raw := make([]byte, 0, len(txPrefix)+message.MaxRaw+len(txSuffix))
	raw = append(raw, txPrefix[:]...)
	for {
		b, done := rec.TXByte()
		if done {
			break
		}
		raw = append(raw, manchester.Encode(b>>4), manchester.Encode(b&0x0F))
	}
	raw = append(raw, txSuffix[:]...)

	t.raw = raw
	t.pos = 0
	t.state = txStateMessage
}

// byte returns the next byte of the frame's raw stream, or done=true once the whole
// frame (prefix, message and suffix) has been served.
func (t *tx) byte() (b byte, done bool) {
	if t.pos >= len(t.raw) {
		t.state = txStateDone
		return 0, true
	}
	b = t.raw[t.pos]
	t.pos++
	return b, false
}

// finished reports whether byte has returned done, i.e. it was called again after the
// final byte of the frame had been served.
func (t *tx) finished() bool { return t.state == txStateDone }

// reset returns the generator to idle so it can start a new frame.
func (t *tx) reset() {
	t.state = txStateIdle
	t.raw = nil
	t.pos = 0
}

//===== bit pacer: emulates UART start/stop framing over the CC1101's synchronous FIFO

// swap4Table reverses the bit order of a 4 bit value.
var swap4Table = [16]byte{
	0x0, 0x8, 0x4, 0xC, 0x2, 0xA, 0x6, 0xE,
	0x1, 0x9, 0x5, 0xD, 0x3, 0xB, 0x7, 0xF,
}

func swap4(v byte) byte { return swap4Table[v&0xF] }

func swap8(v byte) byte { return swap4(v)<<4 | swap4(v>>4) }

// shiftRegister mirrors the firmware's "union shift_register": a 16 bit register whose
// top byte (bits) holds a bit-reversed input byte still waiting to be sent, and whose
// bottom byte (data) accumulates the octet about to be pushed to the FIFO. Shifting reg
// left moves bits out of bits and into data, one bit at a time.
type shiftRegister struct {
	reg uint16
}

func (s *shiftRegister) data() byte     { return byte(s.reg) }
func (s *shiftRegister) setData(v byte) { s.reg = s.reg&0xFF00 | uint16(v) }
func (s *shiftRegister) setBits(v byte) { s.reg = s.reg&0x00FF | uint16(v)<<8 }
func (s *shiftRegister) send(n uint)    { s.reg <<= n }

func (s *shiftRegister) insertP()  { s.setData(s.data()<<1 | 1) }
func (s *shiftRegister) insertS()  { s.setData(s.data() << 1) }
func (s *shiftRegister) insertPS() { s.insertP(); s.insertS() }

// pacer packs the framer's byte stream into asynchronous-serial-style octets suitable
// for the CC1101's TX FIFO: each input byte gets a start (1) and stop (0) bit stitched
// in, so every 4 input bytes become 5 FIFO octets. Ports tx_byte/tx_flush.
type pacer struct {
	sr   shiftRegister
	bits uint8 // number of bits of the current input byte already shifted into data
}

// pushByte runs one framer byte through the pacer, writing one completed octet (two
// when the pacer holds 4 leftover bits) to the FIFO via write (which returns the
// FIFO's remaining free space), and returns the free space reported by the last write
// this call made.
func (p *pacer) pushByte(write func(byte) int, b byte) int {
	p.sr.setBits(swap8(b))
	space := -1

	switch p.bits {
	case 0:
		p.sr.insertPS()
		p.sr.send(6)
		space = write(p.sr.data())
		p.sr.send(2)
		p.bits = 2

	case 2:
		p.sr.insertPS()
		p.sr.send(4)
		space = write(p.sr.data())
		p.sr.send(4)
		p.bits = 4

	case 4:
		p.sr.insertPS()
		p.sr.send(2)
		space = write(p.sr.data())
		p.sr.send(6)
		p.sr.insertPS()
		space = write(p.sr.data())
		p.bits = 8

	case 6:
		p.sr.insertPS()
		space = write(p.sr.data())
		p.bits = 8

	case 8:
		p.sr.send(8)
		space = write(p.sr.data())
		p.bits = 0
	}

	return space
}

// flush pushes any partial octet left in the shift register once the framer byte stream
// is exhausted, then leaves the line in its idle "space" condition. Ports tx_flush.
func (p *pacer) flush(write func(byte) int) {
	if p.bits != 0 {
		p.sr.send(uint(8 - p.bits))
		write(p.sr.data())
	}
	p.sr.setData(0xFF)
	write(p.sr.data())
	p.bits = 0
}
