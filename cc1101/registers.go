// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package cc1101

// Configuration register addresses, in register bank order.
const (
	REG_IOCFG2   = 0x00
	REG_IOCFG1   = 0x01
	REG_IOCFG0   = 0x02
	REG_FIFOTHR  = 0x03
	REG_SYNC1    = 0x04
	REG_SYNC0    = 0x05
	REG_PKTLEN   = 0x06
	REG_PKTCTRL1 = 0x07
	REG_PKTCTRL0 = 0x08
	REG_ADDR     = 0x09
	REG_CHANNR   = 0x0A
	REG_FSCTRL1  = 0x0B
	REG_FSCTRL0  = 0x0C
	REG_FREQ2    = 0x0D
	REG_FREQ1    = 0x0E
	REG_FREQ0    = 0x0F
	REG_MDMCFG4  = 0x10
	REG_MDMCFG3  = 0x11
	REG_MDMCFG2  = 0x12
	REG_MDMCFG1  = 0x13
	REG_MDMCFG0  = 0x14
	REG_DEVIATN  = 0x15
	REG_MCSM2    = 0x16
	REG_MCSM1    = 0x17
	REG_MCSM0    = 0x18
	REG_FOCCFG   = 0x19
	REG_BSCFG    = 0x1A
	REG_AGCCTRL2 = 0x1B
	REG_AGCCTRL1 = 0x1C
	REG_AGCCTRL0 = 0x1D
	REG_WOREVT1  = 0x1E
	REG_WOREVT0  = 0x1F
	REG_WORCTRL  = 0x20
	REG_FREND1   = 0x21
	REG_FREND0   = 0x22
	REG_FSCAL3   = 0x23
	REG_FSCAL2   = 0x24
	REG_FSCAL1   = 0x25
	REG_FSCAL0   = 0x26
	REG_RCCTRL1  = 0x27
	REG_RCCTRL0  = 0x28
	REG_FSTEST   = 0x29
	REG_PTEST    = 0x2A
	REG_AGCTEST  = 0x2B
	REG_TEST2    = 0x2C
	REG_TEST1    = 0x2D
	REG_TEST0    = 0x2E
)

// Status register addresses, read with the burst bit set.
const (
	REG_PARTNUM    = 0x30
	REG_VERSION    = 0x31
	REG_MARCSTATE  = 0x35
	REG_RSSI       = 0x34
	REG_PKTSTATUS  = 0x38
	REG_TXBYTES    = 0x3A
	REG_RXBYTES    = 0x3B
)

// Strobe command addresses.
const (
	CC_SRES    = 0x30 // reset
	CC_SFSTXON = 0x31 // enable and calibrate frequency synthesizer
	CC_SXOFF   = 0x32 // turn off crystal oscillator
	CC_SCAL    = 0x33 // calibrate frequency synthesizer
	CC_SRX     = 0x34 // enable RX
	CC_STX     = 0x35 // enable TX
	CC_SIDLE   = 0x36 // exit RX/TX, turn off frequency synthesizer
	CC_SWOR    = 0x38 // start wake-on-radio
	CC_SPWD    = 0x39 // enter power down
	CC_SFRX    = 0x3A // flush the RX FIFO
	CC_SFTX    = 0x3B // flush the TX FIFO
	CC_SNOP    = 0x3D // no operation
)

// FIFO and PA table addresses.
const (
	CC_FIFO    = 0x3F
	CC_PATABLE = 0x3E
)

// Read/burst access bits ORed into an address byte.
const (
	ccReadBit  = 0x80
	ccBurstBit = 0x40
)

// Chip state, decoded from the top 3 bits (after the 1 status bit) of any strobe
// command's returned status byte.
type ccState byte

const (
	ccStateIdle            ccState = 0
	ccStateRX              ccState = 1
	ccStateTX              ccState = 2
	ccStateFSTXON          ccState = 3
	ccStateCalibrate       ccState = 4
	ccStateSettling        ccState = 5
	ccStateRXFIFOOverflow  ccState = 6
	ccStateTXFIFOUnderflow ccState = 7
)

func stateOf(status byte) ccState {
	return ccState((status >> 4) & 0x07)
}

// defaultConfig is the 47 byte configuration register bank (REG_IOCFG2..REG_TEST0)
// that cc_cfg_get returns in the firmware, tuned for 868.3MHz asynchronous serial
// mode at 38.4kbps.
var defaultConfig = [...]byte{
	0x0D, // IOCFG2   GDO2 - RX data
	0x2E, // IOCFG1   GDO1 - not used
	0x2E, // IOCFG0   GDO0 - TX data
	0x07, // FIFOTHR  default (rewritten below for a threshold of 5)
	0xD3, // SYNC1
	0x91, // SYNC0
	0xFF, // PKTLEN
	0x04, // PKTCTRL1
	0x31, // PKTCTRL0 asynchronous serial, TX on GDO0, RX on GDOx
	0x00, // ADDR
	0x00, // CHANNR
	0x0F, // FSCTRL1
	0x00, // FSCTRL0
	0x21, // FREQ2  \
	0x65, // FREQ1   > 868.3 MHz
	0x6A, // FREQ0  /
	0x6A, // MDMCFG4
	0x83, // MDMCFG3  DRATE_M=131, data rate 38,383.48 baud
	0x10, // MDMCFG2  GFSK, no sync word
	0x22, // MDMCFG1  FEC off, 4 byte preamble, CHANSPC_E=2
	0xF8, // MDMCFG0  channel spacing 199.951 kHz
	0x50, // DEVIATN
	0x07, // MCSM2
	0x30, // MCSM1
	0x18, // MCSM0    auto-calibrate idle-to-RX/TX, 149-155us power on timeout
	0x16, // FOCCFG
	0x6C, // BSCFG
	0x43, // AGCCTRL2
	0x40, // AGCCTRL1
	0x91, // AGCCTRL0
	0x87, // WOREVT1
	0x6B, // WOREVT0
	0xF8, // WORCTRL
	0x56, // FREND1
	0x10, // FREND0
	0xE9, // FSCAL3
	0x21, // FSCAL2
	0x00, // FSCAL1
	0x1F, // FSCAL0
	0x41, // RCCTRL1
	0x00, // RCCTRL0
	0x59, // FSTEST
	0x7F, // PTEST
	0x3F, // AGCTEST
	0x81, // TEST2
	0x35, // TEST1
	0x09, // TEST0
}

// defaultPA is the power ramp (PATABLE) the firmware loads alongside defaultConfig.
var defaultPA = [...]byte{0xC3, 0, 0, 0, 0, 0, 0, 0}

// fifoThreshold is written into the low nibble of FIFOTHR after the config bank is
// loaded, giving a TX FIFO threshold of 5 bytes (cc_init writes FIFOTHR&0xF0 + 14,
// which selects TX threshold 5 / RX threshold 61 per the datasheet's FIFOTHR table).
const fifoThreshold = 14
