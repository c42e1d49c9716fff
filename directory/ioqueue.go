package directory

import (
	"container/heap"

	"github.com/sarchlab/dirctrl/directory/event"
)

// deliveryItem is one queued outbound event, ordered by delivery time
// and, for ties, by insertion sequence -- the IOGateway (spec.md §4.4)
// guarantees a minimum latency but never reorders same-time messages.
type deliveryItem struct {
	ev           *event.Event
	deliveryTime uint64
	seq          uint64
}

// deliveryQueue is a time-indexed priority queue, grounded the way
// github.com/joeycumines/go-utilpkg's eventloop.timerHeap uses
// container/heap for its timer queue: a slice implementing
// heap.Interface, ordered by (deliveryTime, seq).
type deliveryQueue []*deliveryItem

func (q deliveryQueue) Len() int { return len(q) }
func (q deliveryQueue) Less(i, j int) bool {
	if q[i].deliveryTime != q[j].deliveryTime {
		return q[i].deliveryTime < q[j].deliveryTime
	}
	return q[i].seq < q[j].seq
}
func (q deliveryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *deliveryQueue) Push(x any)   { *q = append(*q, x.(*deliveryItem)) }
func (q *deliveryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// ioGateway holds the two scheduled send queues (to the network of
// sibling caches, and to memory) a directory controller drains once per
// tick.
type ioGateway struct {
	netQueue deliveryQueue
	memQueue deliveryQueue
	seq      uint64

	sendNet func(*event.Event)
	sendMem func(*event.Event)
}

func newIOGateway(sendNet, sendMem func(*event.Event)) *ioGateway {
	return &ioGateway{sendNet: sendNet, sendMem: sendMem}
}

// scheduleNet enqueues ev for delivery to the network no earlier than
// deliveryTime.
func (g *ioGateway) scheduleNet(ev *event.Event, deliveryTime uint64) {
	ev.DeliveryTime = deliveryTime
	g.seq++
	heap.Push(&g.netQueue, &deliveryItem{ev: ev, deliveryTime: deliveryTime, seq: g.seq})
}

// scheduleMem enqueues ev for delivery to memory no earlier than
// deliveryTime.
func (g *ioGateway) scheduleMem(ev *event.Event, deliveryTime uint64) {
	ev.DeliveryTime = deliveryTime
	g.seq++
	heap.Push(&g.memQueue, &deliveryItem{ev: ev, deliveryTime: deliveryTime, seq: g.seq})
}

// drain transmits every queued event whose delivery time has arrived,
// in (deliveryTime, insertion order). Called once per tick.
func (g *ioGateway) drain(timestamp uint64) {
	for g.netQueue.Len() > 0 && g.netQueue[0].deliveryTime <= timestamp {
		item := heap.Pop(&g.netQueue).(*deliveryItem)
		g.sendNet(item.ev)
	}
	for g.memQueue.Len() > 0 && g.memQueue[0].deliveryTime <= timestamp {
		item := heap.Pop(&g.memQueue).(*deliveryItem)
		g.sendMem(item.ev)
	}
}
