// Package directory implements a cache-coherence directory controller:
// the single point of serialization for MSI/MESI coherence operations
// over a contiguous slice of the global physical address space
// (spec.md §1-§2).
package directory

import (
	"container/list"
	"fmt"
	"io"

	"github.com/sarchlab/dirctrl/addrspace"
	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/nodeid"
)

// Collaborators is the capability set the controller consumes from its
// host simulator, reduced (per spec.md's Design Notes) from
// "inheritance from a simulator base class" to three functions: send an
// event to the network of sibling caches, send one to memory, and read
// the nanosecond clock latency accounting needs. The cycle count is not
// a collaborator; it arrives as Tick's argument.
type Collaborators struct {
	SendNet  func(*event.Event)
	SendMem  func(*event.Event)
	NowNanos func() uint64
}

// Controller is one directory controller instance: it owns the address
// range described by its addrspace.Map and serializes every coherence
// operation on the blocks within it. Distinct controllers own disjoint
// ranges and share no mutable state (spec.md §5); nothing here is safe
// for concurrent use by more than one goroutine; Akita-style
// simulators are expected to drive it from a single goroutine per tick,
// as the original's single-threaded, cooperative model requires.
type Controller struct {
	cfg     *Config
	addr    *addrspace.Map
	nodes   *nodeid.Registry
	entries *dirMap
	mshr    *mshr
	io      *ioGateway
	ids     *event.Minter
	collab  Collaborators

	timestamp uint64

	workQueue *list.List
	curElem   *list.Element // the queue element currently being processed, for replay insertion

	memReqs      map[event.ID]uint64
	dirEntryMiss map[event.ID]uint64
	noncache     map[event.ID]addrPair

	entrySize int

	Stats Stats

	debug io.Writer
}

type addrPair struct {
	baseAddr uint64
	addr     uint64
	src      string
}

// New creates a Controller over the address range described by cfg,
// using collab to reach the network and memory.
func New(cfg *Config, collab Collaborators) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addr, err := addrspace.New(cfg.AddrRangeStart, cfg.AddrRangeEnd, cfg.InterleaveSizeKiB*1024, cfg.InterleaveStepKiB*1024)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:          cfg,
		addr:         addr,
		nodes:        nodeid.New(),
		mshr:         newMSHR(cfg.MSHRNumEntries),
		ids:          event.NewMinter(),
		collab:       collab,
		workQueue:    list.New(),
		memReqs:      make(map[event.ID]uint64),
		dirEntryMiss: make(map[event.ID]uint64),
		noncache:     make(map[event.ID]addrPair),
		entrySize:    1,
	}
	c.entries = newDirMap(cfg.EntryCacheSize, c.mshrBusy)
	c.io = newIOGateway(collab.SendNet, collab.SendMem)
	return c, nil
}

// SetDebugOutput directs the controller's trace output (gated by
// cfg.DebugLevel) to w; nil disables it.
func (c *Controller) SetDebugOutput(w io.Writer) {
	c.debug = w
}

func (c *Controller) debugf(level int, format string, args ...any) {
	if c.debug == nil || level > c.cfg.DebugLevel {
		return
	}
	fmt.Fprintf(c.debug, format, args...)
}

func (c *Controller) mshrBusy(addr uint64) bool {
	return c.mshr.isHit(addr)
}

// RegisterPeer records a sibling cache discovered during setup, the way
// the original's setup() walks network peer info and checks that every
// cache agrees on block size.
func (c *Controller) RegisterPeer(name string, blockSize int) error {
	if err := c.nodes.RegisterPeer(name, blockSize); err != nil {
		return err
	}
	c.entrySize = (c.nodes.Count()+1)/8 + 1
	return nil
}

// OnEvent is the transport's inbound callback (spec.md §5): it
// classifies ev and either handles it inline (memory data responses,
// noncacheable passthrough) or enqueues it for the next Tick. It never
// blocks. A memory response runs the protocol handlers before OnEvent
// returns: a data response completes the waiting request, and an
// entry-fetch response replays the MSHR head through process.
func (c *Controller) OnEvent(ev *event.Event) error {
	switch ev.Cmd {
	case event.GetSResp, event.GetXResp:
		return c.handleMemoryResponse(ev)
	default:
	}

	if ev.Noncacheable() {
		return c.handleNoncacheable(ev)
	}

	c.workQueue.PushBack(ev)
	return nil
}

// Tick advances the controller by one cycle: drain scheduled outbound
// queues, then drain the work queue built up since the last tick.
// Replays triggered mid-drain are spliced in immediately after the
// event currently being processed, so they run before anything that
// was already queued behind it but after anything ahead of it --
// matching spec.md §4.1's "reinsert into the front of the work queue".
func (c *Controller) Tick(cycle uint64) error {
	c.timestamp = cycle
	c.io.drain(c.timestamp)

	for c.workQueue.Len() > 0 {
		front := c.workQueue.Front()
		ev := front.Value.(*event.Event)
		c.curElem = front
		if err := c.process(ev); err != nil {
			c.curElem = nil
			return err
		}
		c.curElem = nil
		c.workQueue.Remove(front)
	}
	return nil
}

// process dispatches one dequeued event to its handler (spec.md §4.1).
func (c *Controller) process(ev *event.Event) error {
	if !c.addr.Valid(ev.BaseAddr) {
		return protocolErrorf("process", ev.BaseAddr, "request address is not valid (cmd=%s, src=%s)", ev.Cmd, ev.Src)
	}

	switch ev.Cmd {
	case event.GetS:
		return c.handleGetS(ev)
	case event.GetX, event.GetSEx:
		return c.handleGetX(ev)
	case event.NACK:
		return c.handleNACK(ev)
	case event.PutS:
		return c.handlePutS(ev)
	case event.PutX:
		return c.handlePutX(ev)
	case event.PutE:
		return c.handlePutE(ev)
	case event.PutM:
		return c.handlePutM(ev)
	case event.FetchResp:
		return c.handleFetchResp(ev)
	case event.FetchXResp:
		return c.handleFetchXResp(ev)
	default:
		return protocolErrorf("process", ev.BaseAddr, "unrecognized request %s from %s", ev.Cmd, ev.Src)
	}
}

// DebugStatus writes a snapshot of the work queue, mirroring
// DirectoryController::printStatus.
func (c *Controller) DebugStatus(w io.Writer) {
	fmt.Fprintf(w, "directory.Controller: %d entries cached, %d requests in queue\n", c.entries.lru.Len(), c.workQueue.Len())
	for el := c.workQueue.Front(); el != nil; el = el.Next() {
		ev := el.Value.(*event.Event)
		fmt.Fprintf(w, "\t(%s, seq=%d)\n", ev.ID.Epoch, ev.ID.Seq)
	}
}

// SharerNames returns the peer names currently sharing baseAddr's
// block, in no particular order, or nil if the block has no directory
// entry. A spilled entry's sharers are reported too. Intended for debugging and test assertions, the
// same role DirectoryController::printStatus's sharer dump plays in
// the original.
func (c *Controller) SharerNames(baseAddr uint64) []string {
	entry := c.entries.get(baseAddr)
	if entry == nil {
		return nil
	}
	names := make([]string, 0, entry.SharerCount())
	for _, id := range entry.SharersSlice() {
		names = append(names, c.nodes.Name(id))
	}
	return names
}

// InitWrite is an address/payload pair delivered during simulator
// init, before the main run starts (spec.md's restored init-time
// forwarding, see SPEC_FULL.md).
type InitWrite struct {
	Addr    uint64
	Payload []byte
}

// ForwardInit forwards every write whose address falls in this
// controller's owned range to memory, after converting to local
// addressing; writes outside the range are silently dropped, matching
// DirectoryController::init.
func (c *Controller) ForwardInit(writes []InitWrite) {
	for _, w := range writes {
		if !c.addr.Valid(w.Addr) {
			continue
		}
		local := c.addr.ToLocal(w.Addr)
		ev := &event.Event{
			ID:       c.ids.Next(),
			Cmd:      event.PutM,
			BaseAddr: local,
			Addr:     local,
			Payload:  w.Payload,
			Size:     len(w.Payload),
		}
		c.collab.SendMem(ev)
	}
}
