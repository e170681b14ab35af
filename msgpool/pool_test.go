// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package msgpool

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	// One slot, so the only handle Alloc can return after Free is the freed one (the
	// free list is FIFO: in a larger pool the freed handle goes to the back).
	p := New(1)
	h := p.Alloc()
	if h == Invalid {
		t.Fatalf("Alloc on a fresh pool returned Invalid")
	}
	p.Record(h).SetOpcode(0x1234)
	p.Free(h)

	h2 := p.Alloc()
	if h2 != h {
		t.Fatalf("Alloc after Free returned %v, want the freed handle %v", h2, h)
	}
	if got := p.Record(h2).Opcode(); got != 0 {
		t.Fatalf("Free did not reset the record, Opcode = %#04x", got)
	}
}

func TestPoolExhaustion(t *testing.T) {
	const n = 3
	p := New(n)
	var handles []Handle
	for i := 0; i < n; i++ {
		h := p.Alloc()
		if h == Invalid {
			t.Fatalf("Alloc %d/%d returned Invalid before exhaustion", i, n)
		}
		handles = append(handles, h)
	}

	if h := p.Alloc(); h != Invalid {
		t.Fatalf("Alloc on an exhausted pool returned %v, want Invalid", h)
	}

	p.Free(handles[1])
	if h := p.Alloc(); h != handles[1] {
		t.Fatalf("Alloc after Free returned %v, want %v", h, handles[1])
	}
	if h := p.Alloc(); h != Invalid {
		t.Fatalf("pool should be exhausted again, got %v", h)
	}
}

func TestRXReadyFIFOOrder(t *testing.T) {
	p := New(4)
	var order []Handle
	for i := 0; i < 3; i++ {
		h := p.Alloc()
		order = append(order, h)
		p.PutRXReady(h)
	}
	for _, want := range order {
		got := p.GetRXReady()
		if got != want {
			t.Fatalf("GetRXReady = %v, want %v (FIFO order)", got, want)
		}
	}
	if h := p.GetRXReady(); h != Invalid {
		t.Fatalf("GetRXReady on an empty queue returned %v, want Invalid", h)
	}
}

func TestOnRXReadyNotifiesOnPut(t *testing.T) {
	p := New(2)
	notified := 0
	p.OnRXReady(func() { notified++ })

	h := p.Alloc()
	p.PutRXReady(h)
	p.PutRXReady(p.Alloc())

	if notified != 2 {
		t.Fatalf("notified = %d, want 2", notified)
	}
}

func TestOnTXReadyNotifiesOnPut(t *testing.T) {
	p := New(2)
	notified := 0
	p.OnTXReady(func() { notified++ })

	p.PutTXReady(p.Alloc())

	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
}

func TestTXReadyDoesNotResetRecord(t *testing.T) {
	p := New(2)
	h := p.Alloc()
	p.Record(h).SetOpcode(0xABCD)
	p.PutTXReady(h)

	got := p.GetTXReady()
	if got != h {
		t.Fatalf("GetTXReady = %v, want %v", got, h)
	}
	if op := p.Record(got).Opcode(); op != 0xABCD {
		t.Fatalf("PutTXReady/GetTXReady should not reset the record, Opcode = %#04x", op)
	}
}
