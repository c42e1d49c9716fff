package directory

import (
	"container/list"

	"github.com/sarchlab/dirctrl/directory/event"
)

// mshrEntry is one (baseAddr, event) tuple queued in the MSHR.
type mshrEntry struct {
	baseAddr uint64
	ev       *event.Event
}

// mshr is the per-address ordered queue of pending events spec.md §4.2
// describes. Each address's bucket is a FIFO (the head is the request
// currently being serviced; tail entries strictly wait); total capacity
// across all buckets is bounded by size (unboundedSize disables the
// bound), mirroring the original's HUGE_MSHR sentinel for
// mshr_num_entries == -1.
//
// Buckets are container/list instances, the same structure the original
// uses (std::list) for its MSHR bucket and the directory-entry LRU.
type mshr struct {
	buckets map[uint64]*list.List
	size    int // -1 means unbounded
	count   int
}

const unboundedSize = -1

func newMSHR(size int) *mshr {
	return &mshr{
		buckets: make(map[uint64]*list.List),
		size:    size,
	}
}

// full reports whether the MSHR is at capacity.
func (m *mshr) full() bool {
	return m.size != unboundedSize && m.count >= m.size
}

// insert appends ev to addr's bucket. It returns false (rejecting the
// insert) if the MSHR is at capacity; the caller must NACK the sender.
func (m *mshr) insert(addr uint64, ev *event.Event) bool {
	if m.full() {
		return false
	}
	b, ok := m.buckets[addr]
	if !ok {
		b = list.New()
		m.buckets[addr] = b
	}
	b.PushBack(&mshrEntry{baseAddr: addr, ev: ev})
	m.count++
	return true
}

// elementIsHit reports whether ev is already queued for addr (identity
// membership, not equality).
func (m *mshr) elementIsHit(addr uint64, ev *event.Event) bool {
	b, ok := m.buckets[addr]
	if !ok {
		return false
	}
	for el := b.Front(); el != nil; el = el.Next() {
		if el.Value.(*mshrEntry).ev == ev {
			return true
		}
	}
	return false
}

// isHit reports whether addr has any pending events at all.
func (m *mshr) isHit(addr uint64) bool {
	b, ok := m.buckets[addr]
	return ok && b.Len() > 0
}

// lookupFront returns the event at the head of addr's bucket, or nil.
func (m *mshr) lookupFront(addr uint64) *event.Event {
	b, ok := m.buckets[addr]
	if !ok || b.Front() == nil {
		return nil
	}
	return b.Front().Value.(*mshrEntry).ev
}

// removeFront pops and returns the head of addr's bucket.
func (m *mshr) removeFront(addr uint64) *event.Event {
	b, ok := m.buckets[addr]
	if !ok || b.Front() == nil {
		return nil
	}
	front := b.Remove(b.Front()).(*mshrEntry)
	m.count--
	if b.Len() == 0 {
		delete(m.buckets, addr)
	}
	return front.ev
}

// removeElement removes a specific queued event (used when a PutS
// arrives both as an invalidation-ack and as a queued MSHR entry for
// the same address).
func (m *mshr) removeElement(addr uint64, ev *event.Event) {
	b, ok := m.buckets[addr]
	if !ok {
		return
	}
	for el := b.Front(); el != nil; el = el.Next() {
		if el.Value.(*mshrEntry).ev == ev {
			b.Remove(el)
			m.count--
			break
		}
	}
	if b.Len() == 0 {
		delete(m.buckets, addr)
	}
}

// removeAll empties addr's bucket and returns its contents in original
// (oldest-first) order.
func (m *mshr) removeAll(addr uint64) []*event.Event {
	b, ok := m.buckets[addr]
	if !ok {
		return nil
	}
	out := make([]*event.Event, 0, b.Len())
	for el := b.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*mshrEntry).ev)
	}
	m.count -= b.Len()
	delete(m.buckets, addr)
	return out
}
