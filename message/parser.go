// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package message

// RXReset prepares the Record to receive a fresh frame: it clears the record and
// leaves the cursor at the header byte, exactly as msg_get leaves a pool record at
// S_START (treated identically to the header state by RXByte, below).
func (r *Record) RXReset() {
	r.Reset()
	r.state = stateStart
}

// RXByte feeds one assembled record byte (already Manchester-decoded and nibble-paired
// by the framer) into the parser. It returns the record's error as it stands after
// this byte: once an error is set it is sticky, but bytes keep accumulating into the
// checksum so a caller can keep calling RXByte through to the end of the frame.
//
// Field order on the air is HEADER, ADDR0, ADDR1, ADDR2, PARAM0, PARAM1, OPCODE, LEN,
// PAYLOAD, CHECKSUM, with fields the header doesn't promise skipped entirely.
func (r *Record) RXByte(b byte) Error {
	r.csum += b

	if r.state == stateStart {
		r.state = stateHeader
	}

	// Optional address and parameter fields the header didn't promise are skipped
	// without consuming a byte, so a single call can walk several states before it
	// lands on the one this byte actually belongs to.
	for {
		switch r.state {
		case stateHeader:
			r.fields = HeaderFlags(b)
			r.state = stateAddr0
			return r.Err

		case stateAddr0, stateAddr1, stateAddr2:
			i := int(r.state - stateAddr0)
			if !r.HasAddr(i) {
				r.state++
				continue
			}
			r.rxAddr(i, b)
			return r.Err

		case stateParam0, stateParam1:
			i := int(r.state - stateParam0)
			if !r.HasParam(i) {
				r.state++
				continue
			}
			r.rxParam(i, b)
			return r.Err

		case stateOpcode:
			r.opcode[r.count] = b
			r.count++
			if r.count == len(r.opcode) {
				r.count = 0
				r.state = stateLen
				r.rxFields |= fOpcode
			}
			return r.Err

		case stateLen:
			r.Len = b
			r.rxFields |= fLen
			r.state = statePayload
			if r.Len == 0 || r.Len > MaxPayload {
				r.setErr(TruncErr)
			}
			return r.Err

		case statePayload:
			if r.nPayload < MaxPayload {
				r.Payload[r.nPayload] = b
				r.nPayload++
			}
			r.count++
			if r.count == int(r.Len) {
				r.count = 0
				r.state = stateChecksum
			}
			return r.Err

		case stateChecksum:
			if r.csum != 0 {
				r.setErr(CsumErr)
			}
			r.state = stateComplete
			return r.Err

		default: // stateComplete, stateError, stateTrailer
			// extra bytes after completion are not expected on RX; ignore.
			return r.Err
		}
	}
}

func (r *Record) rxAddr(i int, b byte) {
	r.addr[i][r.count] = b
	r.count++
	if r.count == len(r.addr[i]) {
		r.count = 0
		r.state = stateAddr0 + state(i) + 1
		r.rxFields |= fAddr0 << uint(i)
	}
}

func (r *Record) rxParam(i int, b byte) {
	r.param[i] = b
	r.state = stateParam0 + state(i) + 1
	r.rxFields |= fParam0 << uint(i)
}

func (r *Record) setErr(e Error) {
	if r.Err == OK {
		r.Err = e
	}
}

// RXEnd finalizes a received frame once the framer has seen its trailer (or aborted
// it). nBytes is the number of raw (pre-manchester-decode) bytes captured. If err is
// OK, RXEnd additionally checks that every promised optional field arrived and that
// the payload was exactly as long as declared, turning a short frame into TruncErr —
// matching msg_rx_end in the firmware.
func (r *Record) RXEnd(nBytes int, err Error) Error {
	r.nBytes = nBytes

	if err == OK {
		if (r.rxFields&fOption) != (r.fields&fOption) ||
			(r.rxFields&fMand) != fMand ||
			int(r.Len) != r.nPayload {
			err = TruncErr
		}
	}

	if err != OK {
		r.Err = err
	} else {
		r.setErr(OK)
	}
	r.state = stateComplete
	return r.Err
}
