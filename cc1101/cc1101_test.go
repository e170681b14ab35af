// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package cc1101

import (
	"testing"
	"time"
)

// fakeSPI is a minimal CC1101 emulator: enough register and strobe state to let New,
// EnterRX, EnterTX and EnterIdle converge, plus a FIFO/RSSI byte a test can set.
type fakeSPI struct {
	regs     map[byte]byte
	state    ccState
	fifoFree byte
	rssiRaw  byte
}

func newFakeSPI() *fakeSPI {
	return &fakeSPI{regs: map[byte]byte{}, state: ccStateIdle, fifoFree: 0x0F}
}

func (f *fakeSPI) Speed(hz int64) error            { return nil }
func (f *fakeSPI) Configure(mode, bits int) error   { return nil }
func (f *fakeSPI) Close() error                     { return nil }

func (f *fakeSPI) Tx(w, r []byte) error {
	addr := w[0]
	switch {
	case len(w) == 1: // strobe
		switch addr {
		case CC_SIDLE:
			f.state = ccStateIdle
		case CC_SRX:
			f.state = ccStateRX
		case CC_STX:
			f.state = ccStateTX
		}
		r[0] = byte(f.state) << 4

	case addr == CC_FIFO && len(w) == 2: // FIFO write
		r[0] = byte(f.state) << 4
		r[1] = f.fifoFree

	case addr&ccReadBit != 0: // register (or status) read
		reg := addr &^ (ccReadBit | ccBurstBit)
		if reg == REG_RSSI {
			r[1] = f.rssiRaw
		} else {
			r[1] = f.regs[reg]
		}

	default: // register write
		f.regs[addr] = w[1]
		r[1] = byte(f.state) << 4
	}
	return nil
}

type fakeGPIO struct{}

func (fakeGPIO) In(edge int) error                      { return nil }
func (fakeGPIO) Read() int                              { return 0 }
func (fakeGPIO) WaitForEdge(time.Duration) bool         { return false }
func (fakeGPIO) Out(level int)                          {}
func (fakeGPIO) Number() int                             { return 0 }

func TestNewConfiguresAndEntersRX(t *testing.T) {
	spi := newFakeSPI()
	r, err := New(spi, fakeGPIO{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Mode() != ModeRX {
		t.Fatalf("Mode = %v, want ModeRX", r.Mode())
	}
	if spi.regs[REG_FREQ2] != defaultConfig[REG_FREQ2] {
		t.Fatalf("FREQ2 = %#02x, want %#02x", spi.regs[REG_FREQ2], defaultConfig[REG_FREQ2])
	}
}

func TestEnterTXAndIdle(t *testing.T) {
	spi := newFakeSPI()
	r, err := New(spi, fakeGPIO{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	r.EnterTX()
	if r.Mode() != ModeTX {
		t.Fatalf("Mode = %v, want ModeTX", r.Mode())
	}
	if spi.regs[REG_IOCFG0] != 0x02 {
		t.Fatalf("IOCFG0 = %#02x, want 0x02 (falling edge, FIFO threshold)", spi.regs[REG_IOCFG0])
	}

	r.FIFOEnd()
	if spi.regs[REG_IOCFG0] != 0x05 {
		t.Fatalf("IOCFG0 after FIFOEnd = %#02x, want 0x05 (rising edge, FIFO empty)", spi.regs[REG_IOCFG0])
	}

	r.EnterIdle()
	if r.Mode() != ModeIdle {
		t.Fatalf("Mode = %v, want ModeIdle", r.Mode())
	}
}

func TestReadRSSI(t *testing.T) {
	spi := newFakeSPI()
	r, err := New(spi, fakeGPIO{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// raw=0 -> dBm = 0/2-74 = -74 -> returned as 74.
	spi.rssiRaw = 0
	if got := r.ReadRSSI(); got != 74 {
		t.Fatalf("ReadRSSI(raw=0) = %d, want 74", got)
	}

	// raw=-128 (0x80) -> dBm = -64-74 = -138 -> returned as 138.
	spi.rssiRaw = 0x80
	if got := r.ReadRSSI(); got != 138 {
		t.Fatalf("ReadRSSI(raw=0x80) = %d, want 138", got)
	}
}

func TestWriteFIFOReturnsFreeSpace(t *testing.T) {
	spi := newFakeSPI()
	r, err := New(spi, fakeGPIO{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	spi.fifoFree = 0x0A
	if got := r.WriteFIFO(0x42); got != 0x0A {
		t.Fatalf("WriteFIFO free space = %d, want 10", got)
	}
}
