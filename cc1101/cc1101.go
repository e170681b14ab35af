// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package cc1101 drives a TI CC1101 radio over SPI in the asynchronous serial mode the
// RAMSES framer needs: GDO0 carries the raw demodulated bitstream on RX; on TX the
// framer writes the paced bitstream into the TX FIFO and GDO0 signals the FIFO
// threshold (and then FIFO empty) for flow control.
//
// This mirrors the firmware's cc1101.c: the register map, mode transitions and RSSI
// conversion are ported directly, while the byte-pacing and Manchester framing that
// sit on top belong to the framer package, same as in the firmware's split between
// cc1101.c and frame.c.
package cc1101

import (
	"fmt"
	"sync"

	"github.com/tve/ramses-gw/internal/devices"
)

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// Mode is the radio's operating mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRX
	ModeTX
)

// Radio represents a CC1101 transceiver wired for RAMSES's 868.3MHz asynchronous
// serial mode.
type Radio struct {
	spi  devices.SPI
	gdo0 devices.GPIO

	mu   sync.Mutex
	mode Mode
	log  LogPrintf
}

// New resets and configures a CC1101 radio, loads the default 868.3MHz register bank
// and PA table, and leaves the radio in RX mode. gdo0 is the pin carrying the raw
// demodulated bitstream on RX and, on TX, the FIFO threshold/empty interrupt the
// framer uses for flow control.
func New(spi devices.SPI, gdo0 devices.GPIO, log LogPrintf) (*Radio, error) {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	r := &Radio{spi: spi, gdo0: gdo0, mode: ModeIdle, log: log}

	if err := spi.Speed(4 * 1000 * 1000); err != nil {
		return nil, fmt.Errorf("cc1101: cannot set speed: %w", err)
	}
	if err := spi.Configure(devices.SPIMode0, 8); err != nil {
		return nil, fmt.Errorf("cc1101: cannot set mode: %w", err)
	}

	r.strobe(CC_SRES)

	for i, v := range defaultConfig {
		r.writeReg(byte(i), v)
	}
	for _, v := range defaultPA {
		r.writeReg(CC_PATABLE, v)
	}
	fifothr := r.readReg(REG_FIFOTHR)
	r.writeReg(REG_FIFOTHR, (fifothr&0xF0)+fifoThreshold)

	partNum := r.readReg(REG_PARTNUM | ccBurstBit | ccReadBit)
	version := r.readReg(REG_VERSION | ccBurstBit | ccReadBit)
	r.log("part %#02x version %#02x", partNum, version)

	r.EnterRX()

	return r, nil
}

// readReg reads one register.
func (r *Radio) readReg(addr byte) byte {
	var rx [2]byte
	r.spi.Tx([]byte{addr | ccReadBit, 0}, rx[:])
	return rx[1]
}

// writeReg writes one register.
func (r *Radio) writeReg(addr byte, v byte) {
	var rx [2]byte
	r.spi.Tx([]byte{addr, v}, rx[:])
}

// strobe sends a command strobe and returns the chip's status byte.
func (r *Radio) strobe(cmd byte) byte {
	var rx [1]byte
	r.spi.Tx([]byte{cmd}, rx[:])
	return rx[0]
}

// waitState strobes cmd repeatedly until the chip reports it has reached want.
func (r *Radio) waitState(cmd byte, want ccState) {
	for stateOf(r.strobe(cmd)) != want {
	}
}

// EnterIdle strobes the radio out of RX/TX back to idle.
func (r *Radio) EnterIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waitState(CC_SIDLE, ccStateIdle)
	r.mode = ModeIdle
}

// EnterRX configures GDO0 for raw RX data and FIFOs for infinite asynchronous packets,
// then enters RX. Ports cc_enter_rx_mode.
func (r *Radio) EnterRX() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitState(CC_SIDLE, ccStateIdle)
	r.writeReg(REG_IOCFG0, 0x0D) // GDO0 - serial data output (raw RX data)
	r.writeReg(REG_PKTCTRL0, 0x32) // asynchronous serial, infinite packet

	r.strobe(CC_SFRX)
	r.waitState(CC_SRX, ccStateRX)
	r.mode = ModeRX
}

// EnterTX configures GDO0 to signal the TX FIFO threshold with a falling edge, then
// enters TX. Ports cc_enter_tx_mode.
func (r *Radio) EnterTX() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitState(CC_SIDLE, ccStateIdle)
	r.writeReg(REG_PKTCTRL0, 0x02)  // FIFO mode, infinite packet
	r.writeReg(REG_IOCFG0, 0x02)    // falling edge, TX FIFO below threshold

	r.strobe(CC_SFTX)
	r.waitState(CC_STX, ccStateTX)
	r.mode = ModeTX
}

// FIFOEnd switches GDO0 to a rising edge on TX FIFO empty, signalling that the last
// byte pushed into the FIFO has gone out over the air. Ports cc_fifo_end, called once
// the framer has pushed the final bytes of a frame.
func (r *Radio) FIFOEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeReg(REG_IOCFG0, 0x05)
}

// WriteFIFO pushes one byte into the TX FIFO and returns the FIFO's remaining free
// space (0..15), straight from the low nibble of the chip's status byte. Ports
// cc_write_fifo.
func (r *Radio) WriteFIFO(b byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rx [2]byte
	r.spi.Tx([]byte{CC_FIFO, b}, rx[:])
	return int(rx[1] & 0x0F)
}

// ReadRSSI reads and converts the RSSI register per the CC1101 datasheet's section
// 17.3 formula, returning a value in 10..138 where lower means a stronger signal
// (mirrors cc_read_rssi, which negates the dBm value to keep it in a uint8).
func (r *Radio) ReadRSSI() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw := int8(r.readReg(REG_RSSI | ccBurstBit | ccReadBit))
	dbm := int(raw)/2 - 74
	return byte(-dbm)
}

// GDO0 returns the GPIO pin carrying RX data on RX and the TX FIFO threshold/empty
// interrupt on TX, for the framer to drive directly.
func (r *Radio) GDO0() devices.GPIO { return r.gdo0 }

// Mode reports the radio's last commanded mode.
func (r *Radio) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}
