// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package msgpool implements the fixed-size message.Record pool and the RX-ready /
// TX-ready FIFO queues that sit between the framer and the gateway command.
//
// The firmware keeps every struct message in one static array and threads a pool
// free-list and two ready-lists through intrusive next/prev pointers embedded in the
// struct itself, so nothing is ever heap allocated after start-up. Go has no pointer
// arithmetic to borrow for that trick, so Pool keeps the records in a slice and the
// next/prev links in parallel index slices: a Handle is the stable array index that
// plays the role of the firmware's struct message pointer.
package msgpool

import (
	"sync"
	"time"

	"github.com/tve/ramses-gw/message"
)

// Handle identifies a Record slot: an index from 0 to Len()-1. Use Invalid to test for
// "no record".
type Handle int32

// Invalid is the handle returned in place of a record when a queue is empty or the
// pool is exhausted.
const Invalid Handle = -1

type fifo struct {
	head, tail Handle
}

// Pool is a fixed capacity set of message.Record slots plus three FIFOs (free,
// RX-ready, TX-ready) linked through the slots themselves. The zero value is not
// usable; create one with New.
type Pool struct {
	mu      sync.Mutex
	records []message.Record
	next    []Handle
	prev    []Handle

	free    fifo
	rxReady fifo
	txReady fifo

	onTXReady func()
	onRXReady func()
}

// New creates a pool of n records, all initially free.
func New(n int) *Pool {
	p := &Pool{
		records: make([]message.Record, n),
		next:    make([]Handle, n),
		prev:    make([]Handle, n),
		free:    fifo{head: Invalid, tail: Invalid},
		rxReady: fifo{head: Invalid, tail: Invalid},
		txReady: fifo{head: Invalid, tail: Invalid},
	}
	for i := 0; i < n; i++ {
		p.pushBack(&p.free, Handle(i))
	}
	return p
}

// Len reports the pool's total capacity.
func (p *Pool) Len() int { return len(p.records) }

// Record returns the record stored at h. The caller owns h exclusively (it came from
// Alloc, GetRXReady or GetTXReady and hasn't been returned yet), so no further
// synchronization is needed to read or write through the returned pointer.
func (p *Pool) Record(h Handle) *message.Record {
	return &p.records[h]
}

// Alloc removes a record from the free pool and returns its handle, or Invalid if the
// pool is exhausted (mirrors msg_alloc returning NULL).
func (p *Pool) Alloc() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popFront(&p.free)
}

// Free resets the record at h and returns it to the free pool (mirrors msg_free, which
// calls msg_put with reset=1).
func (p *Pool) Free(h Handle) {
	if h == Invalid {
		return
	}
	p.records[h].Reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushBack(&p.free, h)
}

// PutRXReady stamps the record's arrival time and appends it to the RX-ready queue,
// then calls the OnRXReady hook if one is registered (mirrors msg_rx_ready's direct
// gateway_radio_rx callback, realized here as a wakeup instead of an inline call so
// the gateway command can read the record at its own pace).
func (p *Pool) PutRXReady(h Handle) {
	p.records[h].Timestamp = time.Now()
	p.mu.Lock()
	p.pushBack(&p.rxReady, h)
	notify := p.onRXReady
	p.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// OnRXReady registers fn to be called every time a record is pushed to the RX-ready
// queue. There is room for only one subscriber; the gateway command calls this once
// to learn about newly received frames without having to poll the queue.
func (p *Pool) OnRXReady(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRXReady = fn
}

// GetRXReady removes and returns the oldest RX-ready record's handle, or Invalid if
// the queue is empty.
func (p *Pool) GetRXReady() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popFront(&p.rxReady)
}

// PutTXReady appends a record to the TX-ready queue without resetting it (mirrors
// msg_tx_ready, which calls msg_put with reset=0: the caller has already filled the
// record in). If OnTXReady has been set, it is called after the record is queued, so a
// framer blocked waiting for work can be woken up.
func (p *Pool) PutTXReady(h Handle) {
	p.mu.Lock()
	p.pushBack(&p.txReady, h)
	notify := p.onTXReady
	p.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// OnTXReady registers fn to be called every time a record is pushed to the TX-ready
// queue. There is room for only one subscriber; a framer's Run calls this once to learn
// about transmit requests without having to poll the queue.
func (p *Pool) OnTXReady(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTXReady = fn
}

// GetTXReady removes and returns the oldest TX-ready record's handle, or Invalid if
// the queue is empty.
func (p *Pool) GetTXReady() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popFront(&p.txReady)
}

// pushBack appends h to the tail of l. Caller holds p.mu.
func (p *Pool) pushBack(l *fifo, h Handle) {
	p.next[h] = Invalid
	p.prev[h] = l.tail
	if l.tail != Invalid {
		p.next[l.tail] = h
	}
	l.tail = h
	if l.head == Invalid {
		l.head = h
	}
}

// popFront removes and returns the head of l, or Invalid if l is empty. Caller holds
// p.mu.
func (p *Pool) popFront(l *fifo) Handle {
	h := l.head
	if h == Invalid {
		return Invalid
	}
	l.head = p.next[h]
	if l.head == Invalid {
		l.tail = Invalid
	} else {
		p.prev[l.head] = Invalid
	}
	p.next[h] = Invalid
	p.prev[h] = Invalid
	return h
}
