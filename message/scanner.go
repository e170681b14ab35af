// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package message

import (
	"strconv"
	"strings"
)

// field order for the textual form: TYPE PARAM0 ADDR0 ADDR1 ADDR2 OPCODE LEN PAYLOAD...
// CHECKSUM. This differs from the on-air binary order (which puts the addresses before
// the parameters) because it's the order ported directly from msg_scan/msg_print_field;
// only param[0] ever appears in the textual form, param[1] has no textual representation.

// ScanReset prepares the Record to scan a fresh textual TX line.
func (r *Record) ScanReset() {
	r.Reset()
	r.state = stateStart
}

// ScanByte feeds one byte of a textual TX command line (as typically read over a serial
// or MQTT "raw" input) into the scanner. It returns true once the line is fully
// consumed: either a well formed line completed at CHECKSUM (r.Err == OK) or a
// malformed line was discarded at a CR (r.Err == BadTX). A blank line (a CR with
// nothing scanned) returns false and leaves r.state at stateStart and Err at OK.
//
// ScanByte ports msg_scan byte-by-byte, field-by-field.
func (r *Record) ScanByte(b byte) (done bool) {
	if b == '\n' {
		return false
	}

	if b == '\r' {
		if r.state == stateStart && r.scanChars == 0 {
			return false // ignore a blank line
		}
		if r.state != stateChecksum {
			r.scanChars = 0
			r.rxFields |= r.fields
			r.Err = BadTX
			return true
		}
		b = 0
	}

	if r.nBytes < MaxRaw {
		r.Raw[r.nBytes] = b
		r.nBytes++
	}

	if r.state == stateError {
		return false // discard to end of line
	}

	if b == ' ' {
		if r.scanChars == 0 {
			return false // discard leading spaces
		}
		b = 0
	}

	if r.scanChars < len(r.scanField) {
		r.scanField[r.scanChars] = b
		r.scanChars++
	}

	// Payload hex pairs pack two characters per byte with no separating space.
	if b != 0 && r.state == statePayload {
		if r.scanChars == 2 {
			ok := r.scanPayload(r.scanField[:2])
			r.scanChars = 0
			if ok && r.nPayload == int(r.Len) {
				r.state = stateChecksum
			}
			if !ok {
				r.state = stateError
			}
			return false
		}
		return false // wait for the second hex digit
	}

	if b == 0 {
		field := string(r.scanField[:r.scanChars-1]) // drop the terminator
		ok := true

		switch r.state {
		case stateStart, stateHeader:
			ok = r.scanHeader(field)
			r.state = stateParam0
		case stateParam0:
			ok = r.scanParam(0, field)
			r.state = stateAddr0
		case stateAddr0:
			ok = r.scanAddr(0, field)
			r.state = stateAddr1
		case stateAddr1:
			ok = r.scanAddr(1, field)
			r.state = stateAddr2
		case stateAddr2:
			ok = r.scanAddr(2, field)
			r.state = stateOpcode
		case stateOpcode:
			ok = r.scanOpcode(field)
			r.state = stateLen
		case stateLen:
			ok = r.scanLen(field)
			r.state = statePayload
		case statePayload:
			r.state = stateError
		case stateChecksum:
			if r.scanChars != 1 {
				r.state = stateError
			} else {
				r.state = stateComplete
			}
		}
		r.scanChars = 0

		if !ok {
			r.state = stateError
		}
	}

	if r.state == statePayload && (r.rxFields&fMand) != fMand {
		r.state = stateError
	}

	if r.state == stateComplete {
		r.rxFields |= r.fields
		return true
	}
	return false
}

func (r *Record) scanHeader(field string) bool {
	up := strings.ToUpper(field)
	for t, name := range typeNames {
		if up == name {
			r.fields = byte(t)
			return true
		}
	}
	return false
}

func (r *Record) scanAddr(i int, field string) bool {
	if len(field) > 0 && field[0] == '-' {
		return true
	}
	if len(field) >= 10 {
		return false
	}
	class, id, ok := parseAddrField(field)
	if !ok {
		return false
	}
	EncodeAddress(r.addr[i][:], class, id)
	r.fields |= fAddr0 << uint(i)
	return true
}

func parseAddrField(field string) (class byte, id uint32, ok bool) {
	c, rest, found := strings.Cut(field, ":")
	if !found {
		return 0, 0, false
	}
	cv, err := strconv.ParseUint(c, 10, 8)
	if err != nil {
		return 0, 0, false
	}
	iv, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return byte(cv), uint32(iv), true
}

func (r *Record) scanParam(i int, field string) bool {
	if len(field) > 0 && field[0] == '-' {
		return true
	}
	if len(field) >= 4 {
		return false
	}
	v, err := strconv.ParseUint(field, 10, 8)
	if err != nil {
		return false
	}
	r.param[i] = byte(v)
	r.fields |= fParam0 << uint(i)
	return true
}

func (r *Record) scanOpcode(field string) bool {
	if len(field) != 4 {
		return false
	}
	v, err := strconv.ParseUint(field, 16, 16)
	if err != nil {
		return false
	}
	r.opcode[0] = byte(v >> 8)
	r.opcode[1] = byte(v)
	r.rxFields |= fOpcode
	return true
}

func (r *Record) scanLen(field string) bool {
	if len(field) >= 4 {
		return false
	}
	v, err := strconv.ParseUint(field, 10, 8)
	if err != nil || v == 0 || v > MaxPayload {
		return false
	}
	r.Len = uint8(v)
	r.rxFields |= fLen
	return true
}

func (r *Record) scanPayload(hex []byte) bool {
	v, err := strconv.ParseUint(string(hex), 16, 8)
	if err != nil || r.nPayload >= MaxPayload {
		return false
	}
	r.Payload[r.nPayload] = byte(v)
	r.nPayload++
	return true
}

// RewriteGatewayAddress rewrites every address field on the record that matches
// (class, id) to (myClass, myID), so a message addressed to the far end's gateway can
// be re-addressed to this gateway before being placed on the TX queue. It ports
// msg_change_addr's compatibility rewrite.
func RewriteGatewayAddress(r *Record, class byte, id uint32, myClass byte, myID uint32) {
	for i := 0; i < 3; i++ {
		if !r.HasAddr(i) {
			continue
		}
		addr := r.Addr(i)
		if addr.Class == class && addr.ID == id {
			r.SetAddr(i, Address{Class: myClass, ID: myID})
		}
	}
}
