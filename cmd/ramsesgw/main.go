// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"

	"github.com/tve/ramses-gw/cc1101"
	"github.com/tve/ramses-gw/framer"
	"github.com/tve/ramses-gw/internal/devices"
	"github.com/tve/ramses-gw/msgpool"
)

// version is stamped into the "info/version" MQTT message; there's no build tooling in
// this repo to set it from a tag, so it's just a constant.
var version = "0.1.0"

type LogPrintf func(format string, v ...interface{})

// Config is the gateway's TOML configuration, following cmd/mqttradio's Config shape.
type Config struct {
	Debug   bool
	Help    bool
	Mqtt    MqttConfig
	Gateway GatewayConfig
}

type MqttConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// GatewayConfig describes the CC1101 wiring and the gateway's own RAMSES identity.
type GatewayConfig struct {
	Prefix string // MQTT topic prefix, e.g. "ramses"

	// Backend selects the SPI/GPIO implementation: "periph" (default, periph.io) or
	// "embd" (github.com/kidoman/embd), kept around from the days this repo ran on
	// boards embd supported and periph.io didn't have drivers for yet.
	Backend string `toml:"backend"`

	SpiBus int    `toml:"spi_bus"`
	SpiCS  int    `toml:"spi_cs"`
	GDO0   string `toml:"gdo0_pin"`
	Uart   string `toml:"uart_device"` // raw RX bitstream source, see DESIGN.md (framer)

	PoolSize int `toml:"n_msg"`

	Class byte   // this gateway's own address class, usually 18
	ID    uint32 // 0 means "derive from the host's MAC address"

	CompatClass byte // legacy bridge address to rewrite to our own, class
	CompatID    uint32
}

func main() {
	help := flag.Bool("help", false, "print usage help")
	configFile := flag.String("config", "ramsesgw.toml", "path to config file")
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := &Config{}
	rawConfig, err := ioutil.ReadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot access config file: %s\n", err)
		os.Exit(1)
	}
	if err := toml.Unmarshal(rawConfig, config); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config file: %s\n", err)
		os.Exit(1)
	}

	logger := LogPrintf(func(string, ...interface{}) {})
	if config.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		logger = log.Printf
	}

	if config.Gateway.Class == 0 {
		config.Gateway.Class = 18
	}
	if config.Gateway.ID == 0 {
		id, err := deriveID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot derive gateway id from MAC address: %s\n", err)
			os.Exit(1)
		}
		config.Gateway.ID = id
	}
	if config.Gateway.CompatClass == 0 && config.Gateway.CompatID == 0 {
		config.Gateway.CompatClass = 18
		config.Gateway.CompatID = 730
	}
	if config.Gateway.PoolSize == 0 {
		config.Gateway.PoolSize = 8
	}

	self := gatewayIdentity{
		class:       config.Gateway.Class,
		id:          config.Gateway.ID,
		compatClass: config.Gateway.CompatClass,
		compatID:    config.Gateway.CompatID,
	}
	root := fmt.Sprintf("%s/%02d:%06d", config.Gateway.Prefix, self.class, self.id)

	mqc, err := newMQ(config.Mqtt, root, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT broker: %s\n", err)
		os.Exit(2)
	}

	log.Printf("Configuring radio")
	radio, rxSource, err := openRadio(config.Gateway, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open radio: %s\n", err)
		os.Exit(1)
	}

	pool := msgpool.New(config.Gateway.PoolSize)
	fr := framer.New(radio, pool, framer.LogPrintf(logger))

	ctx, cancel := signalContext()
	defer cancel()

	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	go runGateway(pool, mqc, root, self, stop, logger)

	log.Printf("Gateway is ready")
	if err := fr.Run(ctx, rxSource); err != nil {
		fmt.Fprintf(os.Stderr, "Framer exited: %s\n", err)
		os.Exit(1)
	}
}

// openRadio opens the CC1101's SPI bus and GDO0 interrupt pin, then opens the raw RX
// bitstream source (see the note on the UART boundary in DESIGN.md's framer section).
// conf.Backend picks which library does the SPI/GPIO work; periph.io is the default
// and the one pinned to match go.mod, embd is kept for older boards.
func openRadio(conf GatewayConfig, debug LogPrintf) (*cc1101.Radio, *os.File, error) {
	var spi devices.SPI
	var gdo0 devices.GPIO

	switch conf.Backend {
	case "", "periph":
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("periph.io host init: %w", err)
		}
		port, err := spireg.Open(fmt.Sprintf("SPI%d.%d", conf.SpiBus, conf.SpiCS))
		if err != nil {
			return nil, nil, err
		}
		spi = newPeriphSPI(port)

		pin := gpioreg.ByName(conf.GDO0)
		if pin == nil {
			return nil, nil, fmt.Errorf("cannot open pin %s", conf.GDO0)
		}
		gdo0 = newPeriphGPIO(pin)

	case "embd":
		spi = devices.NewSPI()
		gdo0 = devices.NewGPIO(conf.GDO0)
		if gdo0 == nil {
			return nil, nil, fmt.Errorf("cannot open pin %s", conf.GDO0)
		}

	default:
		return nil, nil, fmt.Errorf("unknown radio backend %q", conf.Backend)
	}

	radio, err := cc1101.New(spi, gdo0, cc1101.LogPrintf(debug))
	if err != nil {
		return nil, nil, err
	}

	rxSource, err := os.Open(conf.Uart)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open RX bitstream source %s: %w", conf.Uart, err)
	}

	return radio, rxSource, nil
}

// deriveID turns the host's first hardware MAC address into an 18 bit RAMSES id, the
// way spec.md's §4.D calls for.
func deriveID() (uint32, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		mac := iface.HardwareAddr
		id := uint32(mac[3])<<16 | uint32(mac[4])<<8 | uint32(mac[5])
		return id & 0x3FFFF, nil
	}
	return 0, fmt.Errorf("no network interface with a hardware address found")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so the framer and
// gateway goroutines get a chance to leave the radio idle before the process exits.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx, cancel
}
