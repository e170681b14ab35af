// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package message

import "strings"

// TXStart prepares a fully populated Record (type, addresses, params, opcode, payload
// all set) to be serialized: it computes the checksum once up front, exactly as
// msg_tx_start does before handing the record to the framer.
func (r *Record) TXStart() {
	r.csum = Checksum(r)
	r.state = stateStart
	r.count = 0
}

// TXByte is the binary TX generator: each call returns the next on-air byte and
// reports done once the checksum byte has been produced. It walks the same field order
// as RXByte and silently skips any address or parameter field the header doesn't
// promise, so a caller that needs one byte per call never sees an idle call for an
// absent optional field. Ports msg_tx_process and its per-field helpers.
func (r *Record) TXByte() (b byte, done bool) {
	for {
		switch r.state {
		case stateStart, stateHeader:
			if r.count == 0 {
				b = EncodeHeader(r.fields)
				r.count = 1
				return b, false
			}
			r.count = 0
			r.state = stateAddr0

		case stateAddr0, stateAddr1, stateAddr2:
			i := int(r.state - stateAddr0)
			if !r.HasAddr(i) {
				r.state++
				continue
			}
			if r.count < len(r.addr[i]) {
				b = r.addr[i][r.count]
				r.count++
				return b, false
			}
			r.count = 0
			r.state++

		case stateParam0, stateParam1:
			i := int(r.state - stateParam0)
			if !r.HasParam(i) {
				r.state++
				continue
			}
			if r.count == 0 {
				b = r.param[i]
				r.count = 1
				return b, false
			}
			r.count = 0
			r.state++

		case stateOpcode:
			if r.count < len(r.opcode) {
				b = r.opcode[r.count]
				r.count++
				return b, false
			}
			r.count = 0
			r.state = stateLen

		case stateLen:
			if r.count == 0 {
				b = r.Len
				r.count = 1
				return b, false
			}
			r.count = 0
			r.state = statePayload

		case statePayload:
			if r.count < int(r.Len) {
				b = r.Payload[r.count]
				r.count++
				return b, false
			}
			r.count = 0
			r.state = stateChecksum

		case stateChecksum:
			if r.count == 0 {
				b = r.csum
				r.count = 1
				return b, false
			}
			r.state = stateComplete
			return 0, true

		default: // stateComplete, stateError, stateTrailer
			return 0, true
		}
	}
}

// SetRSSI records the RSSI the radio measured for this frame, marking it present in
// the printed form. The framer calls this once per received frame, after the fact,
// which is why RSSI isn't part of the RXByte/RXEnd field walk itself.
func (r *Record) SetRSSI(rssi byte) {
	r.RSSI = rssi
	r.rxFields |= fRSSI
}

// String renders the record in the textual form msg_print_field produces: RSSI TYPE
// PARAM0 ADDR0 ADDR1 ADDR2 OPCODE LEN PAYLOAD, trailed by the error name if the record
// didn't come out clean. ScanByte's input form has no RSSI column or error name, so
// String's output is not fed back to ScanByte as is.
func (r *Record) String() string {
	var b strings.Builder

	if r.rxFields&fRSSI != 0 {
		writePad3(&b, int(r.RSSI))
	} else {
		b.WriteString("---")
	}
	b.WriteByte(' ')

	b.WriteString(r.Type().String())
	b.WriteByte(' ')

	if r.rxFields&fParam0 != 0 {
		writePad3(&b, int(r.param[0]))
	} else {
		b.WriteString("---")
	}
	b.WriteByte(' ')

	for i := 0; i < 3; i++ {
		if r.rxFields&(fAddr0<<uint(i)) != 0 {
			b.WriteString(r.Addr(i).String())
		} else {
			b.WriteString("--:------")
		}
		b.WriteByte(' ')
	}

	if r.rxFields&fOpcode != 0 {
		writeHex2(&b, r.opcode[0])
		writeHex2(&b, r.opcode[1])
	} else {
		b.WriteString("????")
	}
	b.WriteByte(' ')

	if r.rxFields&fLen != 0 {
		writePad3(&b, int(r.Len))
	} else {
		b.WriteString("???")
	}

	for i := 0; i < r.nPayload; i++ {
		if i == 0 {
			b.WriteByte(' ')
		}
		writeHex2(&b, r.Payload[i])
	}

	if r.Err != OK {
		b.WriteByte(' ')
		b.WriteString(r.Err.String())
	}

	return b.String()
}

const hexDigits = "0123456789ABCDEF"

func writeHex2(b *strings.Builder, v byte) {
	b.WriteByte(hexDigits[v>>4])
	b.WriteByte(hexDigits[v&0xF])
}

func writePad3(b *strings.Builder, v int) {
	if v > 999 {
		v = 999
	}
	b.WriteByte('0' + byte(v/100))
	b.WriteByte('0' + byte((v/10)%10))
	b.WriteByte('0' + byte(v%10))
}
