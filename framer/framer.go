// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package framer assembles and emits RAMSES frames over a cc1101.Radio: RX bytes
// arriving off the air are decoded into message.Records and queued for the gateway;
// records queued for transmit are Manchester-encoded, paced through the CC1101's FIFO
// and sent. It plays the role the firmware splits across frame.c and uart.c, minus the
// hardware UART itself (an io.Reader stands in for the peripheral that turns GDO0's
// raw bitstream into bytes - see DESIGN.md).
package framer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tve/ramses-gw/cc1101"
	"github.com/tve/ramses-gw/internal/devices"
	"github.com/tve/ramses-gw/internal/thread"
	"github.com/tve/ramses-gw/msgpool"
)

// LogPrintf is a function used by the framer to print logging info.
type LogPrintf func(format string, v ...interface{})

// Framer owns one radio and the pool of records flowing through it. Run drives it;
// everything else (MQTT bridging, CLI, config) lives in the gateway command.
type Framer struct {
	radio *cc1101.Radio
	pool  *msgpool.Pool
	log   LogPrintf
}

// New creates a Framer around an already-initialized radio and record pool.
func New(radio *cc1101.Radio, pool *msgpool.Pool, log LogPrintf) *Framer {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Framer{radio: radio, pool: pool, log: log}
}

// Run drives the framer until ctx is canceled or rxSource returns an error. rxSource
// delivers the radio's raw, not-yet-manchester-decoded RX bytes (the role played by the
// firmware's UART peripheral capturing GDO0's bitstream). Decoded frames are pushed to
// the pool's RX-ready queue as they complete; records pushed to the TX-ready queue are
// picked up, encoded and sent, with an in-progress RX frame always given priority over
// a pending transmit (mirrors frame_work's "only switch to TX if rxFrm.state isn't
// mid-message" check).
func (f *Framer) Run(ctx context.Context, rxSource io.Reader) error {
	if err := thread.Realtime(); err != nil {
		f.log("framer: cannot make goroutine realtime: %s", err)
	}

	txNotify := make(chan struct{}, 1)
	f.pool.OnTXReady(func() {
		select {
		case txNotify <- struct{}{}:
		default:
		}
	})

	rxBytes := make(chan byte, 64)
	rxErrs := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := rxSource.Read(buf)
			for i := 0; i < n; i++ {
				select {
				case rxBytes <- buf[i]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case rxErrs <- err:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	assembler := newRX(f.pool)
	f.radio.EnterRX()

	pendingTX := true // also pick up records queued before OnTXReady was registered
	for {
		if pendingTX && !assembler.inProgress() {
			pendingTX = false
			if err := f.drainTX(ctx); err != nil {
				return err
			}
			f.radio.EnterRX()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-rxErrs:
			// The reader queued every byte it got before the error; process them first.
			for len(rxBytes) > 0 {
				if assembler.byte(<-rxBytes) {
					assembler.finish(f.radio.ReadRSSI)
				}
			}
			return fmt.Errorf("framer: rx source: %w", err)

		case <-txNotify:
			pendingTX = true

		case b := <-rxBytes:
			if assembler.byte(b) {
				assembler.finish(f.radio.ReadRSSI)
			}
		}
	}
}

// drainTX sends every record currently queued for transmit, in order, before returning
// control to the caller (which re-enters RX). The firmware sends one message per TX
// session and leans on frame_work's next tick to notice a still-full queue; draining
// here avoids depending on a second wakeup to flush a burst of queued transmits.
func (f *Framer) drainTX(ctx context.Context) error {
	for {
		h := f.pool.GetTXReady()
		if h == msgpool.Invalid {
			return nil
		}
		if err := f.transmitOne(ctx, h); err != nil {
			return err
		}
	}
}

// transmitOne Manchester-encodes and sends one queued record, pacing it through the
// CC1101 TX FIFO via GDO0's threshold/empty interrupt the same way tx_fifo_prime,
// tx_fifo_fill and tx_fifo_wait do. Once sent, the record is echoed back through the
// RX-ready queue with RSSI 0 as a transmit confirmation, same as the firmware pushing
// a freshly transmitted message onto the RX-ready list instead of freeing it outright.
func (f *Framer) transmitOne(ctx context.Context, h msgpool.Handle) error {
	rec := f.pool.Record(h)

	rec.TXStart()
	gen := newTX()
	gen.start(rec)

	f.radio.EnterTX()
	gdo0 := f.radio.GDO0()
	write := func(b byte) int { return f.radio.WriteFIFO(b) }

	var p pacer

	// Not clear why but the radio needs a leading zero byte to start TX correctly,
	// followed by a literal break condition, before the real bitstream goes out.
	write(0x00)
	write(0xFF)
	write(0x00)
	write(0x00)

	// Fill the FIFO above its threshold before relying on the falling-edge interrupt
	// to keep it topped up, same as tx_fifo_prime's busy loop on GDO0's level.
	for gdo0.Read() == devices.GpioLow {
		if f.sendBlock(&p, gen, write) {
			break
		}
	}

	for !gen.finished() {
		if ctx.Err() != nil {
			f.pool.Free(h)
			return ctx.Err()
		}
		if !gdo0.WaitForEdge(time.Second) {
			continue
		}
		f.sendBlock(&p, gen, write)
	}

	p.flush(write)
	f.radio.FIFOEnd()

	for gdo0.Read() != devices.GpioHigh {
		if ctx.Err() != nil {
			f.pool.Free(h)
			return ctx.Err()
		}
		gdo0.WaitForEdge(time.Second)
	}

	rec.SetRSSI(0)
	rec.IsEcho = true
	f.pool.PutRXReady(h)
	return nil
}

// sendBlock pushes up to 4 framer bytes through the pacer, stopping early once the FIFO
// is nearly full (free space <= 4) or the generator runs out of bytes. It reports
// whether the generator has now produced its entire frame. Ports tx_fifo_send_block.
func (f *Framer) sendBlock(p *pacer, gen *tx, write func(byte) int) (done bool) {
	for i := 0; i < 4; i++ {
		b, d := gen.byte()
		if d {
			return true
		}
		if space := p.pushByte(write, b); space <= 4 {
			break
		}
	}
	return gen.finished()
}
