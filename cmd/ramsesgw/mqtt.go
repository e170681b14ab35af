// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
)

// mq is a handle onto a MQTT broker connection.
type mq struct {
	conn     mqtt.Client          // broker connection
	subHooks []subHook            // subscription hooks
	dedupMu  sync.Mutex           // protects dedup
	dedup    map[uint64]time.Time // de-dup of messages we sent
}

// subHook is a subscription hook: a hook to subscribe to messages internally so they get
// forwarded locally instead of traveling all the way to the broker and back.
type subHook struct {
	topic  string
	ch     reflect.Value
	chElem reflect.Type
}

// newMQ connects to a broker and returns a new mq object. The connection re-establishes
// itself on disconnect; a last-will message publishes "offline" on the topic root so
// other clients can tell the gateway went away uncleanly.
func newMQ(conf MqttConfig, root string, debug LogPrintf) (*mq, error) {
	if debug != nil {
		debug("Configuring MQTT: %+v", conf)
	}
	mqtt.ERROR = log.New(os.Stderr, "", 0)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.ClientID = "ramsesgw"
	opts.Username = conf.User
	opts.Password = conf.Password
	opts.SetWill(root, "offline", 1, true)

	mqConn := mqtt.NewClient(opts)
	token := mqConn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to %s:%d", conf.Host, conf.Port)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	mq := &mq{conn: mqConn, dedup: make(map[uint64]time.Time)}
	go mq.gc()

	mqConn.Publish(root, 1, true, "online")

	log.Printf("MQTT connected")
	return mq, nil
}

// gc removes message de-duplication IDs older than a few minutes: evidently ones for
// which we don't have a subscription.
func (mq *mq) gc() {
	for {
		time.Sleep(time.Minute)
		mq.dedupMu.Lock()
		if mq.dedup == nil {
			return
		}
		tooOld := time.Now().Add(-10 * time.Minute)
		for h, t := range mq.dedup {
			if t.Before(tooOld) {
				delete(mq.dedup, h)
			}
		}
		mq.dedupMu.Unlock()
	}
}

// Publish publishes a message and handles immediate forwarding to any internal
// subscriptions for the same topic.
func (mq *mq) Publish(topic string, payload interface{}) {
	payVal := reflect.Indirect(reflect.ValueOf(payload))
	for _, hook := range mq.subHooks {
		if topic == hook.topic {
			chanMsg := reflect.Indirect(reflect.New(hook.chElem))
			chanMsg.FieldByName("Topic").SetString(topic)
			chanMsg.FieldByName("Payload").Set(payVal)
			hook.ch.Send(chanMsg)
		}
	}
	runtime.Gosched()

	jsonPayload, _ := json.Marshal(payload)
	mq.conn.Publish(topic, 1, false, jsonPayload)
	mq.dedupMu.Lock()
	hash := hashMessage(topic, string(jsonPayload))
	mq.dedup[hash] = time.Now()
	mq.dedupMu.Unlock()
}

// Subscribe subscribes to an MQTT topic and ensures internal forwarding happens too.
func (mq *mq) Subscribe(topic string, subChan interface{}) error {
	chanType := reflect.TypeOf(subChan)
	if chanType.Kind() != reflect.Chan {
		panic("subChan must be a channel")
	}
	chanElemType := chanType.Elem()
	if chanElemType.Kind() != reflect.Struct {
		panic("subChan element must be struct")
	}
	chanValue := reflect.ValueOf(subChan)

	mq.subHooks = append(mq.subHooks, subHook{topic, chanValue, chanElemType})

	handler := func(c mqtt.Client, m mqtt.Message) {
		payload := string(m.Payload())
		hash := hashMessage(topic, payload)
		mq.dedupMu.Lock()
		_, dup := mq.dedup[hash]
		delete(mq.dedup, hash)
		mq.dedupMu.Unlock()
		if dup {
			return
		}

		msg := reflect.New(chanElemType)
		jsonMsg := fmt.Sprintf(`{"Topic":%q, "Payload":%s}`, m.Topic(), payload)
		if err := json.Unmarshal([]byte(jsonMsg), msg.Interface()); err != nil {
			log.Printf("cannot json decode payload for %s: %s", m.Topic(), err)
		} else {
			chanValue.Send(reflect.Indirect(msg))
		}
	}

	if token := mq.conn.Subscribe(topic, 1, handler); !token.WaitTimeout(2 * time.Second) {
		return token.Error()
	}
	return nil
}

// SubscribeRaw subscribes to topic and calls handler with the message's payload as a
// plain string, bypassing the JSON decode Subscribe does: used for "cmd/cmd", whose
// payload is a raw textual frame line rather than a JSON object.
func (mq *mq) SubscribeRaw(topic string, handler func(payload string)) error {
	token := mq.conn.Subscribe(topic, 1, func(c mqtt.Client, m mqtt.Message) {
		handler(string(m.Payload()))
	})
	if !token.WaitTimeout(2 * time.Second) {
		return token.Error()
	}
	return nil
}

func hashMessage(s ...string) uint64 {
	key := strings.Join(s, "ǂ")
	h := fnv.New64()
	h.Write([]byte(key))
	return h.Sum64()
}
