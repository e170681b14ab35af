// Package devices provides the low level SPI and GPIO abstractions shared by the
// cc1101 driver and the ramsesgw command. It uses embd for the concrete pin and bus
// access; periph.io is used directly by cmd/ramsesgw where its richer registry of
// named pins is more convenient, so this shim only needs to cover what the cc1101
// package itself touches.
package devices
