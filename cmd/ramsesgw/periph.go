// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"

	"github.com/tve/ramses-gw/internal/devices"
)

// periphSPI adapts a periph.io spi.PortCloser, opened the same way raw.go's startRadio
// opens a radio's bus (spireg.Open), to the internal/devices.SPI interface cc1101.New
// expects. The connection is (re-)established lazily since periph.io bundles speed and
// mode into one Connect call instead of exposing them as separate knobs.
type periphSPI struct {
	port spi.PortCloser
	conn spi.Conn
	hz   int64
	mode spi.Mode
	bits int
}

func newPeriphSPI(port spi.PortCloser) *periphSPI {
	return &periphSPI{port: port, hz: 4_000_000, mode: spi.Mode0, bits: 8}
}

func (s *periphSPI) Speed(hz int64) error {
	s.hz = hz
	s.conn = nil
	return nil
}

func (s *periphSPI) Configure(mode int, bits int) error {
	m, err := periphMode(mode)
	if err != nil {
		return err
	}
	s.mode = m
	s.bits = bits
	s.conn = nil
	return nil
}

func (s *periphSPI) connect() (spi.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	c, err := s.port.Connect(physic.Frequency(s.hz)*physic.Hertz, s.mode, s.bits)
	if err != nil {
		return nil, err
	}
	s.conn = c
	return c, nil
}

func (s *periphSPI) Tx(w, r []byte) error {
	c, err := s.connect()
	if err != nil {
		return err
	}
	return c.Tx(w, r)
}

func (s *periphSPI) Close() error { return s.port.Close() }

func periphMode(mode int) (spi.Mode, error) {
	switch mode {
	case devices.SPIMode0:
		return spi.Mode0, nil
	case devices.SPIMode1:
		return spi.Mode1, nil
	case devices.SPIMode2:
		return spi.Mode2, nil
	case devices.SPIMode3:
		return spi.Mode3, nil
	default:
		return 0, fmt.Errorf("periph: unsupported SPI mode %d", mode)
	}
}

// periphEdges maps a devices.Gpio*Edge constant to the periph.io edge it requests.
var periphEdges = [...]gpio.Edge{
	devices.GpioNoEdge:     gpio.NoEdge,
	devices.GpioRisingEdge: gpio.RisingEdge,
	devices.GpioFallingEdge: gpio.FallingEdge,
}

// periphGPIO adapts a periph.io gpio.PinIO, opened via gpioreg.ByName exactly as
// raw.go opens a radio's interrupt pin, to the internal/devices.GPIO interface
// cc1101.Radio uses for GDO0.
type periphGPIO struct {
	pin gpio.PinIO
}

func newPeriphGPIO(pin gpio.PinIO) *periphGPIO {
	return &periphGPIO{pin: pin}
}

func (g *periphGPIO) In(edge int) error {
	if edge < 0 || edge >= len(periphEdges) {
		return fmt.Errorf("periph: unsupported edge %d", edge)
	}
	return g.pin.In(gpio.Float, periphEdges[edge])
}

func (g *periphGPIO) Read() int {
	if g.pin.Read() == gpio.High {
		return devices.GpioHigh
	}
	return devices.GpioLow
}

func (g *periphGPIO) WaitForEdge(timeout time.Duration) bool {
	return g.pin.WaitForEdge(timeout)
}

func (g *periphGPIO) Out(level int) {
	l := gpio.Low
	if level == devices.GpioHigh {
		l = gpio.High
	}
	g.pin.Out(l)
}

func (g *periphGPIO) Number() int { return g.pin.Number() }
