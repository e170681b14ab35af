// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package framer

import (
	"github.com/tve/ramses-gw/manchester"
	"github.com/tve/ramses-gw/message"
	"github.com/tve/ramses-gw/msgpool"
)

// syncWord is the last 32 bits of <training><sync word><header> the receiver scans
// for: 0x00 (sync word) followed by 0x33, 0x55, 0x53 (header), ported from
// frame_init's construction of syncWord out of ramses_synch/ramses_hdr.
const syncWord uint32 = 0x00335553

// trailer marks the end of a frame's message body; like the sync/header bytes it is
// not valid Manchester code, which is what lets the receiver tell it apart from data.
const trailer = 0x35

type rxState uint8

const (
	rxIdle rxState = iota
	rxSynch
	rxMessage
	rxDone
	rxAbort
)

// rx assembles one RAMSES frame at a time out of raw, not-yet-manchester-decoded bytes
// coming off the air. It ports frame_rx_byte/frame_rx_done's rxFrm state machine.
type rx struct {
	state rxState

	syncBuf uint32

	pool *msgpool.Pool
	cur  msgpool.Handle // INVALID until a sync match successfully starts a record

	highNibble bool // true once the first (high) nibble of a message byte has arrived
	pending    byte
}

func newRX(pool *msgpool.Pool) *rx {
	return &rx{state: rxIdle, pool: pool, cur: msgpool.Invalid}
}

// byte feeds one raw received byte into the assembler. It returns true once the frame
// has reached a terminal state (done or aborted) and needs finish to be called before
// more bytes can be accepted.
func (r *rx) byte(b byte) (terminal bool) {
	switch r.state {
	case rxIdle, rxSynch:
		r.syncBuf = r.syncBuf<<8 | uint32(b)
		if r.syncBuf == syncWord {
			r.state = rxSynch
			if h := r.pool.Alloc(); h != msgpool.Invalid {
				r.cur = h
				rec := r.pool.Record(h)
				rec.RXReset()
				r.highNibble = false
				r.state = rxMessage
			}
			// Pool exhausted: stay in rxSynch and keep scanning for the next header.
		}
		return false

	case rxMessage:
		rec := r.pool.Record(r.cur)
		if b == trailer {
			r.state = rxDone
			return true
		}

		if rec.RawLen() >= message.MaxRaw {
			rec.RXEnd(rec.RawLen(), message.OverrunErr)
			r.state = rxAbort
			return true
		}
		rec.AppendRaw(b)

		nibble, ok := manchester.Decode(b)
		if !ok {
			rec.RXEnd(rec.RawLen(), message.MancErr)
			r.state = rxAbort
			return true
		}

		r.pending = r.pending<<4 | nibble
		r.highNibble = !r.highNibble
		if !r.highNibble { // just completed the low nibble: a full message byte is ready
			if err := rec.RXByte(r.pending); err != message.OK {
				rec.RXEnd(rec.RawLen(), err)
				r.state = rxAbort
				return true
			}
		}
		return false

	default: // rxDone, rxAbort
		return true
	}
}

// finish reads the RSSI for the just-completed frame (readRSSI is supplied by the
// caller so rx stays independent of the cc1101 package), finalizes the record and
// pushes it onto the RX-ready queue, then resets to scan for the next frame. Ports
// frame_rx_done.
func (r *rx) finish(readRSSI func() byte) {
	h := r.cur
	rec := r.pool.Record(h)

	if r.state == rxDone {
		rec.RXEnd(rec.RawLen(), message.OK)
	}
	rec.SetRSSI(readRSSI())
	r.pool.PutRXReady(h)

	r.state = rxIdle
	r.syncBuf = 0
	r.cur = msgpool.Invalid
}

// inProgress reports whether a frame is currently being assembled, i.e. it's not safe
// to pre-empt RX for a pending TX right now.
func (r *rx) inProgress() bool {
	return r.state == rxMessage
}

// terminal reports whether the last byte fed in finished (done or aborted) a frame.
func (r *rx) terminal() bool {
	return r.state == rxDone || r.state == rxAbort
}
