// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/tve/ramses-gw/message"
	"github.com/tve/ramses-gw/msgpool"
)

// RxPayload is the JSON structure published on "<root>/rx" for every cleanly decoded
// frame. Msg is the frame's textual form as Record.String renders it (an RSSI column
// followed by the fields in the order ScanByte reads them).
type RxPayload struct {
	Ts  time.Time `json:"ts"`
	Msg string    `json:"msg"`
}

// TxMessage is the JSON structure subscribed to on "<root>/tx": a caller-supplied
// textual frame to transmit.
type TxMessage struct {
	Topic   string
	Payload TxPayload
}

type TxPayload struct {
	Msg string `json:"msg"`
}

// gatewayIdentity is this gateway's own RAMSES address, used both to rewrite messages
// addressed to a legacy bridge (compatClass/compatID) and to tag command replies.
type gatewayIdentity struct {
	class byte
	id    uint32

	compatClass byte
	compatID    uint32
}

// runGateway bridges pool's RX-ready/TX-ready queues to mq, publishing decoded frames
// and taking transmit requests, until the caller closes stop.
func runGateway(pool *msgpool.Pool, mqc *mq, root string, self gatewayIdentity, stop <-chan struct{}, debug LogPrintf) {
	mqc.Publish(root+"/info/firmware", "ramses-gw")
	mqc.Publish(root+"/info/version", version)

	rxNotify := make(chan struct{}, 1)
	pool.OnRXReady(func() {
		select {
		case rxNotify <- struct{}{}:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-rxNotify:
				drainRX(pool, mqc, root, debug)
			}
		}
	}()

	txChan := make(chan TxMessage, 8)
	if err := mqc.Subscribe(root+"/tx", txChan); err != nil {
		log.Printf("gateway: cannot subscribe to %s: %s", root+"/tx", err)
	}

	if err := mqc.SubscribeRaw(root+"/cmd/cmd", func(line string) {
		result := runCommand(pool, self, line, debug)
		mqc.Publish(root+"/cmd/result", result)
	}); err != nil {
		log.Printf("gateway: cannot subscribe to %s: %s", root+"/cmd/cmd", err)
	}

	for {
		select {
		case <-stop:
			return
		case m := <-txChan:
			queueTX(pool, self, m.Payload.Msg, debug)
		}
	}
}

// drainRX moves every record currently on the RX-ready queue onto mq. A record that
// didn't decode cleanly is dropped (per the error handling design: invalid frames go
// to the debug log, not to MQTT). A record marked IsEcho is a transmit confirmation,
// not a genuine reception, but it still gets published on "rx": that's how a sender
// watching the topic learns its own message actually went out over the air.
func drainRX(pool *msgpool.Pool, mqc *mq, root string, debug LogPrintf) {
	for {
		h := pool.GetRXReady()
		if h == msgpool.Invalid {
			return
		}
		rec := pool.Record(h)
		if !rec.Valid() {
			if debug != nil {
				debug("gateway: dropping %s", rec)
			}
			pool.Free(h)
			continue
		}
		if debug != nil && rec.IsEcho {
			debug("gateway: TX confirmed %s", rec)
		}
		mqc.Publish(root+"/rx", &RxPayload{Ts: rec.Timestamp, Msg: rec.String()})
		pool.Free(h)
	}
}

// queueTX scans a textual frame line, rewrites any address aimed at the legacy
// compat gateway to this gateway's own address, and pushes the result onto the
// TX-ready queue. Malformed lines and pool exhaustion are silently dropped, per the
// error handling design's scanner-failure and backpressure rules.
func queueTX(pool *msgpool.Pool, self gatewayIdentity, line string, debug LogPrintf) {
	h := pool.Alloc()
	if h == msgpool.Invalid {
		if debug != nil {
			debug("gateway: pool exhausted, dropping TX %q", line)
		}
		return
	}
	rec := pool.Record(h)
	rec.ScanReset()
	for i := 0; i < len(line); i++ {
		if rec.ScanByte(line[i]) {
			break
		}
	}
	rec.ScanByte('\r')

	if rec.Err != message.OK {
		if debug != nil {
			debug("gateway: rejecting TX %q: %s", line, rec.Err)
		}
		pool.Free(h)
		return
	}

	message.RewriteGatewayAddress(rec, self.compatClass, self.compatID, self.class, self.id)
	pool.PutTXReady(h)
}

// runCommand behaves exactly like queueTX except that it reports OK/failure back to
// the caller instead of staying silent, per the cmd/cmd - cmd/result pairing.
func runCommand(pool *msgpool.Pool, self gatewayIdentity, line string, debug LogPrintf) string {
	h := pool.Alloc()
	if h == msgpool.Invalid {
		return "ERR pool exhausted"
	}
	rec := pool.Record(h)
	rec.ScanReset()
	for i := 0; i < len(line); i++ {
		if rec.ScanByte(line[i]) {
			break
		}
	}
	rec.ScanByte('\r')

	if rec.Err != message.OK {
		pool.Free(h)
		return fmt.Sprintf("ERR %s", rec.Err)
	}

	message.RewriteGatewayAddress(rec, self.compatClass, self.compatID, self.class, self.id)
	pool.PutTXReady(h)
	return "OK"
}
