// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package message implements the RAMSES message record: the data model shared by the
// RX byte parser, the textual TX scanner, and the binary/textual serializers, plus the
// address and header codecs and checksum they all rely on.
//
// A Record is ported field-for-field from the firmware's struct message (msg.h): no
// field is heap allocated, so a Record can live in a msgpool.Pool slot for its whole
// life without ever being individually freed.
package message

import (
	"fmt"
	"time"
)

// MaxPayload is the largest payload a Record can carry.
const MaxPayload = 64

// MaxRaw is the capacity of the raw on-air byte buffer used while assembling an RX
// frame, or to capture the manchester-encoded bytes produced for TX.
const MaxRaw = 162

// state is the parser/scanner/serializer cursor. The same enum drives all three: the
// byte-by-byte RX parser, the textual TX scanner and the TX/print generators all walk
// the same field order and so share one state space.
type state uint8

const (
	stateStart state = iota
	stateHeader
	stateAddr0
	stateAddr1
	stateAddr2
	stateParam0
	stateParam1
	stateOpcode
	stateLen
	statePayload
	stateChecksum
	stateTrailer
	stateComplete
	stateError
)

// Type is the RAMSES message type carried in bits 5..4 of the header byte.
type Type uint8

const (
	RQ Type = 0
	I  Type = 1
	W  Type = 2
	RP Type = 3
)

var typeNames = [4]string{"RQ", "I", "W", "RP"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "??"
}

// Field bits, promised by the header (fields) or actually seen on RX (rxFields).
const (
	fTypeMask = 0x03
	fParam0   = 0x04
	fParam1   = 0x08
	fAddr0    = 0x10
	fAddr1    = 0x20
	fAddr2    = 0x40
	fRSSI     = 0x80

	// Only meaningful in rxFields: fields confirmed present on RX that aren't part
	// of the header's own promise.
	fOpcode = 0x01
	fLen    = 0x02

	fOption = fAddr0 | fAddr1 | fAddr2 | fParam0 | fParam1
	fMand   = fOpcode | fLen
)

// addressFlags maps the header's 2-bit address pattern index to the set of address
// fields it promises, per spec.md's header byte layout.
var addressFlags = [4]byte{
	fAddr0 | fAddr1 | fAddr2, // 0: all three
	fAddr2,                   // 1: addr2 only
	fAddr0 | fAddr2,          // 2: addr0, addr2
	fAddr0 | fAddr1,          // 3: addr0, addr1
}

const (
	hdrTypeShift  = 4
	hdrAddrShift  = 2
	hdrAddrMask   = 0x0C
	hdrParam0Bit  = 0x02
	hdrParam1Bit  = 0x01
)

// Error is the per-frame error recorded on a Record. The first error encountered is
// sticky: later bytes still accumulate into the checksum but never overwrite it.
type Error uint8

const (
	OK Error = iota
	MancErr
	CsumErr
	OverrunErr
	TruncErr
	CollisionErr
	SyncErr
	BadTX
)

var errorNames = [...]string{
	OK:           "OK",
	MancErr:      "MANC_ERR",
	CsumErr:      "CSUM_ERR",
	OverrunErr:   "OVERRUN_ERR",
	TruncErr:     "TRUNC_ERR",
	CollisionErr: "COLLISION_ERR",
	SyncErr:      "SYNC_ERR",
	BadTX:        "BAD_TX",
}

func (e Error) String() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return "UNKNOWN"
}

// Address is a decoded RAMSES address: a 6 bit class and an 18 bit id.
type Address struct {
	Class byte
	ID    uint32
}

// Record is one RAMSES message, RX or TX, living in exactly one of: the free pool, the
// RX assembly slot, the RX-ready queue, the TX-ready queue, or the TX transmit slot.
type Record struct {
	state state
	count int

	fields   byte // fields promised by the header
	rxFields byte // fields actually present/valid on this record
	Err      Error

	addr  [3][3]byte
	param [2]byte

	opcode [2]byte
	Len    uint8

	csum byte
	RSSI byte

	nPayload int
	Payload  [MaxPayload]byte

	nBytes int
	Raw    [MaxRaw]byte
	rawCap int // not set or read: RX assembly checks RawLen against MaxRaw, so the
	// capacity is never stored in Raw[0] the way the firmware overloads it before
	// assembly starts (see DESIGN.md's note on the flagged open question).

	// IsEcho marks a record pushed to the RX-ready queue as a transmit confirmation
	// echo rather than a genuine reception; downstream code must not rely on
	// RSSI == 0 alone to recognize an echo (see DESIGN.md).
	IsEcho bool

	Timestamp time.Time

	// scanField/scanChars accumulate the current whitespace-delimited field while
	// ScanByte walks a textual TX line; they stand in for msg_scan's function-static
	// field buffer, scoped to the Record instead of the whole process.
	scanField [17]byte
	scanChars int
}

// Reset clears a Record back to its zero value so it can be reused from the pool.
func (r *Record) Reset() {
	*r = Record{}
}

// Type returns the message type carried in the header.
func (r *Record) Type() Type {
	return Type(r.fields & fTypeMask)
}

// HasAddr reports whether address slot i (0..2) is promised by the header.
func (r *Record) HasAddr(i int) bool {
	return r.fields&(fAddr0<<uint(i)) != 0
}

// HasParam reports whether parameter slot i (0 or 1) is promised by the header.
func (r *Record) HasParam(i int) bool {
	return r.fields&(fParam0<<uint(i)) != 0
}

// Addr returns the decoded address in slot i.
func (r *Record) Addr(i int) Address {
	return DecodeAddress(r.addr[i][:])
}

// SetAddr encodes addr into slot i and marks it present in the header fields.
func (r *Record) SetAddr(i int, addr Address) {
	EncodeAddress(r.addr[i][:], addr.Class, addr.ID)
	r.fields |= fAddr0 << uint(i)
}

// Param returns parameter slot i.
func (r *Record) Param(i int) byte { return r.param[i] }

// SetParam sets parameter slot i and marks it present.
func (r *Record) SetParam(i int, v byte) {
	r.param[i] = v
	r.fields |= fParam0 << uint(i)
}

// Opcode returns the 16 bit opcode as it appears on the air (big-endian).
func (r *Record) Opcode() uint16 {
	return uint16(r.opcode[0])<<8 | uint16(r.opcode[1])
}

// SetOpcode sets the opcode from its big-endian on-air representation.
func (r *Record) SetOpcode(op uint16) {
	r.opcode[0] = byte(op >> 8)
	r.opcode[1] = byte(op)
}

// SetType sets the message type.
func (r *Record) SetType(t Type) {
	r.fields = (r.fields &^ fTypeMask) | byte(t)&fTypeMask
}

// PayloadBytes returns the payload actually stored (nPayload bytes).
func (r *Record) PayloadBytes() []byte {
	return r.Payload[:r.nPayload]
}

// SetPayload copies p into the payload, up to MaxPayload bytes, and sets Len to len(p).
func (r *Record) SetPayload(p []byte) {
	n := copy(r.Payload[:], p)
	r.nPayload = n
	r.Len = uint8(n)
}

// Valid reports whether the record is a cleanly received or cleanly built message.
func (r *Record) Valid() bool { return r.Err == OK }

// RawLen returns the number of raw (pre-Manchester-decode) bytes captured so far while
// assembling an RX frame.
func (r *Record) RawLen() int { return r.nBytes }

// AppendRaw appends one raw received byte to Raw, if there is still room.
func (r *Record) AppendRaw(b byte) {
	if r.nBytes < len(r.Raw) {
		r.Raw[r.nBytes] = b
		r.nBytes++
	}
}

// EncodeAddress packs a 6 bit class and 18 bit id into 3 on-air bytes, per spec.md's
// address encoding: byte0 = (class<<2)|(id>>16), byte1 = (id>>8)&0xFF, byte2 = id&0xFF.
func EncodeAddress(addr []byte, class byte, id uint32) {
	addr[0] = (class<<2)&0xFC | byte(id>>16)&0x03
	addr[1] = byte(id >> 8)
	addr[2] = byte(id)
}

// DecodeAddress unpacks a 3 byte on-air address into its class and id.
func DecodeAddress(addr []byte) Address {
	class := (addr[0] & 0xFC) >> 2
	id := uint32(addr[0]&0x03)<<16 | uint32(addr[1])<<8 | uint32(addr[2])
	return Address{Class: class, ID: id}
}

// String renders an address the way the textual message form does: "CC:IIIIII".
func (a Address) String() string {
	return fmt.Sprintf("%02d:%06d", a.Class, a.ID)
}

// EncodeHeader builds the on-air header byte for a set of fields, choosing the address
// pattern index whose promised address set matches fields' address bits exactly.
// It returns 0xFF (an otherwise-unused, invalid-Manchester-safe sentinel is not needed
// here since the header is never manchester-checked on its own) if no pattern matches.
func EncodeHeader(fields byte) byte {
	addrBits := fields & fOption &^ (fParam0 | fParam1)
	for i, want := range addressFlags {
		if addrBits == want {
			hdr := byte(i) << hdrAddrShift
			hdr |= (fields & fTypeMask) << hdrTypeShift
			if fields&fParam0 != 0 {
				hdr |= hdrParam0Bit
			}
			if fields&fParam1 != 0 {
				hdr |= hdrParam1Bit
			}
			return hdr
		}
	}
	return 0xFF
}

// HeaderFlags decodes an on-air header byte into the fields bitmask it promises.
func HeaderFlags(header byte) byte {
	flags := (header & 0x30) >> hdrTypeShift
	flags |= addressFlags[(header&hdrAddrMask)>>hdrAddrShift]
	if header&hdrParam0Bit != 0 {
		flags |= fParam0
	}
	if header&hdrParam1Bit != 0 {
		flags |= fParam1
	}
	return flags
}

// Checksum computes the running byte-sum checksum over the mandatory and optional
// fields a Record promises, such that appending the returned byte makes the total sum
// to zero mod 256. Missing optional fields contribute their zero value, matching the
// firmware's unconditional summation in msg_checksum.
func Checksum(r *Record) byte {
	var sum byte
	sum = EncodeHeader(r.fields)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += r.addr[i][j]
		}
	}
	sum += r.param[0]
	sum += r.param[1]
	sum += r.opcode[0]
	sum += r.opcode[1]
	sum += r.Len
	for i := 0; i < r.nPayload; i++ {
		sum += r.Payload[i]
	}
	return -sum
}
