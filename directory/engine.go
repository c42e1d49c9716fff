package directory

import (
	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/nodeid"
)

// This file is the ProtocolEngine (spec.md §4.1): one handler per
// inbound command, driving DirectoryEntry through its MSI/MESI state
// machine and emitting outbound events via the IOGateway.

// admitForGet runs the shared preamble for GetS/GetX/GetSEx: locate or
// lazily create the entry, queue behind anything else pending on this
// address (stalling if this request is not at the head), and fetch the
// entry from the backing store first if it isn't cache-resident.
// Returns proceed=false whenever the caller should simply return (the
// event was NACKed, stalled, or parked awaiting an entry fetch).
func (c *Controller) admitForGet(ev *event.Event) (entry *Entry, proceed bool, err error) {
	entry = c.entries.get(ev.BaseAddr)
	if entry == nil {
		entry = c.entries.create(ev.BaseAddr, ev.Addr, ev.Size)
	}

	if !c.mshr.elementIsHit(ev.BaseAddr, ev) {
		conflict := c.mshr.isHit(ev.BaseAddr)
		if !c.mshr.insert(ev.BaseAddr, ev) {
			c.nack(ev)
			return entry, false, nil
		}
		if conflict {
			return entry, false, nil
		}
		c.Stats.recvRequest(ev.Cmd, entry.Cached)
	}

	if !entry.Cached {
		c.getDirEntryFromMemory(entry)
		return entry, false, nil
	}
	return entry, true, nil
}

// admitForPut runs the preamble PutE/PutM/PutX share: the entry must
// already exist (the sender holds the block, so the directory already
// tracks it), and the only reason to park one in the MSHR is to
// wait for the entry itself to be fetched from the backing store --
// unlike GetS/GetX, a Put is never stalled behind other pending work on
// the same address, because it may be the very response that in-flight
// work is waiting on (original_source/.../directoryController.cc resolves this;
// see DESIGN.md).
func (c *Controller) admitForPut(ev *event.Event) (entry *Entry, proceed bool, err error) {
	entry = c.entries.get(ev.BaseAddr)
	if entry == nil {
		return nil, false, protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "directory entry does not exist")
	}
	if !entry.Cached {
		if !c.mshr.elementIsHit(ev.BaseAddr, ev) {
			c.Stats.MSHRHits++
			if !c.mshr.insert(ev.BaseAddr, ev) {
				c.nack(ev)
				return entry, false, nil
			}
		}
		c.getDirEntryFromMemory(entry)
		return entry, false, nil
	}
	return entry, true, nil
}

// requireOwner checks that ev was sent by the entry's current owner,
// the way every Put*/Fetch*Resp handler does before trusting the
// payload: a writeback from a non-owner is a protocol violation.
func (c *Controller) requireOwner(ev *event.Event, entry *Entry) error {
	srcID := c.nodes.Lookup(ev.Src)
	if entry.Owner() != srcID {
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "received from %s, which does not own the block", ev.Src)
	}
	return nil
}

func (c *Controller) handleGetS(ev *event.Event) error {
	entry, proceed, err := c.admitForGet(ev)
	if err != nil || !proceed {
		return err
	}

	switch entry.State {
	case I:
		entry.State = IS
		c.issueMemoryRequest(ev, entry)
	case S:
		entry.State = S_D
		c.issueMemoryRequest(ev, entry)
	case M:
		entry.State = M_InvX
		c.issueFetch(ev, entry, event.FetchInvX)
	default:
		return protocolErrorf("GetS", ev.BaseAddr, "received GetS but state is %s", entry.State)
	}
	return nil
}

func (c *Controller) handleGetX(ev *event.Event) error {
	entry, proceed, err := c.admitForGet(ev)
	if err != nil || !proceed {
		return err
	}

	switch entry.State {
	case I:
		entry.State = IM
		c.issueMemoryRequest(ev, entry)
	case S:
		reqID := c.nodes.Lookup(ev.Src)
		if entry.SharerCount() == 1 && entry.IsSharer(reqID) {
			entry.State = SM
			c.issueMemoryRequest(ev, entry)
		} else {
			entry.State = S_Inv
			c.issueInvalidates(ev, entry)
		}
	case M:
		entry.State = M_Inv
		c.issueFetch(ev, entry, event.FetchInv)
	default:
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "received %s but state is %s", ev.Cmd, entry.State)
	}
	return nil
}

// issueInvalidates broadcasts Inv to every current sharer other than
// the requester, and arms waitingAcks so their PutS acks can be
// counted down to zero (spec.md §4.1 "GetX/GetSEx ... S (other
// sharers)").
func (c *Controller) issueInvalidates(ev *event.Event, entry *Entry) {
	reqID := c.nodes.Lookup(ev.Src)
	for i := 0; i < c.nodes.Count(); i++ {
		id := nodeid.ID(i)
		if id == reqID {
			continue
		}
		if entry.IsSharer(id) {
			c.sendInvalidate(id, ev, entry)
			entry.IncrementWaitingAcks()
		}
	}
	entry.LastRequest = event.ID{}
}

func (c *Controller) sendInvalidate(target nodeid.ID, ev *event.Event, entry *Entry) {
	inv := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      event.Inv,
		BaseAddr: entry.BaseAddr,
		Addr:     entry.BaseAddr,
		Size:     c.cfg.CacheLineSize,
		Src:      ev.Dst,
		Dst:      c.nodes.Name(target),
		Flag:     event.AckNeeded,
	}
	c.Stats.sentToMemOrCache(inv, 0)
	c.sendEventToCaches(inv, c.timestamp+c.cfg.AccessLatencyCycles)
}

// issueFetch sends FetchInv/FetchInvX to the current owner.
func (c *Controller) issueFetch(ev *event.Event, entry *Entry, cmd event.Command) {
	fetch := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      cmd,
		BaseAddr: ev.BaseAddr,
		Addr:     ev.Addr,
		Size:     c.cfg.CacheLineSize,
		Src:      ev.Dst,
		Dst:      c.nodes.Name(entry.Owner()),
	}
	entry.LastRequest = fetch.ID
	c.Stats.sentToMemOrCache(fetch, ev.Addr)
	c.sendEventToCaches(fetch, c.timestamp+c.cfg.AccessLatencyCycles)
}

// issueMemoryRequest sends ev's command (GetS or GetX) on to memory in
// local addressing, recording the pending request so the eventual
// response can be matched back to a global base address.
func (c *Controller) issueMemoryRequest(ev *event.Event, entry *Entry) {
	localAddr := c.addr.ToLocal(ev.Addr)
	localBase := c.addr.ToLocal(ev.BaseAddr)
	reqEv := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      ev.Cmd,
		BaseAddr: localBase,
		Addr:     localAddr,
		Size:     c.cfg.CacheLineSize,
	}
	c.memReqs[reqEv.ID] = ev.BaseAddr
	entry.LastRequest = reqEv.ID
	c.Stats.sentToMemOrCache(reqEv, localAddr)

	deliveryTime := c.timestamp + c.cfg.AccessLatencyCycles
	if c.cfg.DirectMemLink {
		c.io.scheduleMem(reqEv, deliveryTime)
	} else {
		reqEv.Dst = c.cfg.NetMemoryName
		c.io.scheduleNet(reqEv, deliveryTime)
	}
}

func (c *Controller) handleNACK(ev *event.Event) error {
	orig := ev.NACKedEvent
	if orig == nil {
		return protocolErrorf("NACK", ev.BaseAddr, "NACK carries no original event")
	}
	c.Stats.recvResponse(event.NACK)

	entry := c.entries.get(orig.BaseAddr)
	if entry == nil {
		return protocolErrorf("NACK", orig.BaseAddr, "directory entry does not exist")
	}

	if ev.ResponseTo == entry.LastRequest || orig.Cmd == event.Inv {
		c.sendEventToCaches(orig, c.timestamp+c.cfg.MSHRLatencyCycles)
	}
	return nil
}

// handlePutS always accepts the sharer drop, cached or not: there is no
// AckPut message in this protocol, so NACKing or stalling a PutS would
// race (spec.md §4.1).
func (c *Controller) handlePutS(ev *event.Event) error {
	entry := c.entries.get(ev.BaseAddr)
	if entry == nil {
		return protocolErrorf("PutS", ev.BaseAddr, "directory entry does not exist")
	}

	srcID := c.nodes.Lookup(ev.Src)
	entry.RemoveSharer(srcID)
	if c.mshr.elementIsHit(ev.BaseAddr, ev) {
		c.mshr.removeElement(ev.BaseAddr, ev)
	}

	switch entry.State {
	case S:
		c.Stats.recvRequest(event.PutS, entry.Cached)
		if entry.SharerCount() == 0 {
			entry.State = I
		}
		c.postRequestProcessing(ev, entry)
		c.applyUpdateCache(entry)
	case S_D:
		c.Stats.recvRequest(event.PutS, entry.Cached)
		c.postRequestProcessing(ev, entry)
	case S_Inv:
		c.Stats.recvResponse(event.PutS)
		entry.DecrementWaitingAcks()
		if entry.WaitingAcks == 0 {
			entry.State = I
			c.replayWaitingEvents(entry.BaseAddr)
		}
	default:
		return protocolErrorf("PutS", ev.BaseAddr, "received PutS but state is %s", entry.State)
	}
	return nil
}

// handlePutX is a voluntary M->S downgrade: the owner keeps a shared
// copy after writing its data back.
func (c *Controller) handlePutX(ev *event.Event) error {
	entry, proceed, err := c.admitForPut(ev)
	if err != nil || !proceed {
		return err
	}
	if err := c.requireOwner(ev, entry); err != nil {
		return err
	}

	switch entry.State {
	case M:
		if err := c.writebackData(ev); err != nil {
			return err
		}
		entry.ClearOwner()
		entry.AddSharer(c.nodes.Lookup(ev.Src))
		entry.State = S
		c.postRequestProcessing(ev, entry)
		c.applyUpdateCache(entry)
	case M_InvX:
		return c.handleFetchXResp(ev)
	default:
		return protocolErrorf("PutX", ev.BaseAddr, "received PutX but state is %s", entry.State)
	}
	return nil
}

// handlePutE is a clean exclusive eviction: no payload, just clear
// ownership.
func (c *Controller) handlePutE(ev *event.Event) error {
	entry, proceed, err := c.admitForPut(ev)
	if err != nil || !proceed {
		return err
	}
	if err := c.requireOwner(ev, entry); err != nil {
		return err
	}
	c.Stats.recvRequest(event.PutE, entry.Cached)
	entry.ClearOwner()

	switch entry.State {
	case M:
		entry.State = I
		c.postRequestProcessing(ev, entry)
		c.applyUpdateCache(entry)
	case M_Inv:
		// The eviction raced with FetchInv: the owner has no dirty
		// data, so restart the stalled GetX with a fresh memory read.
		reqEv := c.mshr.lookupFront(ev.BaseAddr)
		if reqEv == nil {
			return protocolErrorf("PutE", ev.BaseAddr, "no stalled request to restart in state M_Inv")
		}
		entry.State = IM
		c.issueMemoryRequest(reqEv, entry)
		c.postRequestProcessing(ev, entry)
	case M_InvX:
		reqEv := c.mshr.lookupFront(ev.BaseAddr)
		if reqEv == nil {
			return protocolErrorf("PutE", ev.BaseAddr, "no stalled request to restart in state M_InvX")
		}
		entry.State = IS
		c.issueMemoryRequest(reqEv, entry)
		c.postRequestProcessing(ev, entry)
	default:
		return protocolErrorf("PutE", ev.BaseAddr, "received PutE but state is %s", entry.State)
	}
	return nil
}

// handlePutM is a dirty eviction: writeback payload, then clear
// ownership, unless it's actually the fetch response M_Inv/M_InvX were
// waiting for.
func (c *Controller) handlePutM(ev *event.Event) error {
	entry, proceed, err := c.admitForPut(ev)
	if err != nil || !proceed {
		return err
	}
	if err := c.requireOwner(ev, entry); err != nil {
		return err
	}

	switch entry.State {
	case M:
		c.Stats.recvRequest(event.PutM, entry.Cached)
		if err := c.writebackData(ev); err != nil {
			return err
		}
		entry.ClearOwner()
		entry.State = I
		c.postRequestProcessing(ev, entry)
		c.applyUpdateCache(entry)
	case M_Inv, M_InvX:
		return c.handleFetchResp(ev)
	default:
		return protocolErrorf("PutM", ev.BaseAddr, "received PutM but state is %s", entry.State)
	}
	return nil
}

// handleFetchResp closes an M_Inv (GetX) or M_InvX (GetS, MESI
// exclusive-eligible) fetch: the owner supplied data, directly or via a
// PutM carrying the same payload.
func (c *Controller) handleFetchResp(ev *event.Event) error {
	entry := c.entries.get(ev.BaseAddr)
	if entry == nil {
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "directory entry does not exist")
	}
	reqEv := c.mshr.removeFront(ev.BaseAddr)
	if reqEv == nil {
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "no request waiting on this fetch response")
	}
	if err := c.requireOwner(ev, entry); err != nil {
		return err
	}
	c.Stats.recvResponse(ev.Cmd)

	entry.ClearOwner()
	if reqEv.Cmd != event.GetX {
		if err := c.writebackData(ev); err != nil {
			return err
		}
	}

	var respEv *event.Event
	switch entry.State {
	case M_Inv:
		entry.SetOwner(c.nodes.Lookup(reqEv.Src))
		respEv = reqEv.MakeResponse(event.GrantModified)
		entry.State = M
	case M_InvX:
		if c.cfg.CoherenceProtocol == MESI && entry.SharerCount() == 0 {
			entry.SetOwner(c.nodes.Lookup(reqEv.Src))
			respEv = reqEv.MakeResponse(event.GrantExclusive)
			entry.State = M
		} else {
			entry.AddSharer(c.nodes.Lookup(reqEv.Src))
			respEv = reqEv.MakeResponse(event.GrantShared)
			entry.State = S
		}
	default:
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "received %s but state is %s", ev.Cmd, entry.State)
	}

	respEv.ID = c.ids.Next()
	respEv.ResponseTo = reqEv.ID
	respEv.Payload = ev.Payload
	c.Stats.sentResponse(respEv)
	c.sendEventToCaches(respEv, c.timestamp+c.cfg.MSHRLatencyCycles)

	c.postRequestProcessing(reqEv, entry)
	c.replayWaitingEvents(entry.BaseAddr)
	c.applyUpdateCache(entry)
	return nil
}

// handleFetchXResp closes an M_InvX downgrade where the owner keeps a
// shared copy (answering FetchInvX, or a voluntary PutX).
func (c *Controller) handleFetchXResp(ev *event.Event) error {
	entry := c.entries.get(ev.BaseAddr)
	if entry == nil {
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "directory entry does not exist")
	}
	reqEv := c.mshr.removeFront(ev.BaseAddr)
	if reqEv == nil {
		return protocolErrorf(ev.Cmd.String(), ev.BaseAddr, "no request waiting on this fetch response")
	}
	if err := c.requireOwner(ev, entry); err != nil {
		return err
	}
	c.Stats.recvResponse(ev.Cmd)

	entry.ClearOwner()
	entry.AddSharer(c.nodes.Lookup(ev.Src))
	entry.State = S
	if err := c.writebackData(ev); err != nil {
		return err
	}

	respEv := reqEv.MakeResponse(event.GrantShared)
	entry.AddSharer(c.nodes.Lookup(reqEv.Src))
	respEv.ID = c.ids.Next()
	respEv.ResponseTo = reqEv.ID
	respEv.Payload = ev.Payload
	c.Stats.sentResponse(respEv)
	c.sendEventToCaches(respEv, c.timestamp+c.cfg.MSHRLatencyCycles)

	c.postRequestProcessing(reqEv, entry)
	c.replayWaitingEvents(entry.BaseAddr)
	c.applyUpdateCache(entry)
	return nil
}

// handleDataResponse closes an IS/S_D (GetS-family) or IM/SM
// (GetX-family) fetch once memory returns the block.
func (c *Controller) handleDataResponse(ev *event.Event) error {
	entry := c.entries.get(ev.BaseAddr)
	if entry == nil {
		return protocolErrorf("dataResponse", ev.BaseAddr, "directory entry does not exist")
	}
	reqEv := c.mshr.removeFront(ev.BaseAddr)
	if reqEv == nil {
		return protocolErrorf("dataResponse", ev.BaseAddr, "no request waiting on this memory response")
	}

	var respEv *event.Event
	switch entry.State {
	case IS, S_D:
		if c.cfg.CoherenceProtocol == MESI && entry.SharerCount() == 0 {
			respEv = reqEv.MakeResponse(event.GrantExclusive)
			entry.State = M
			entry.SetOwner(c.nodes.Lookup(reqEv.Src))
		} else {
			respEv = reqEv.MakeResponse(event.GrantShared)
			entry.State = S
			entry.AddSharer(c.nodes.Lookup(reqEv.Src))
		}
	case IM, SM:
		respEv = reqEv.MakeResponse(event.GrantModified)
		entry.State = M
		entry.SetOwner(c.nodes.Lookup(reqEv.Src))
		entry.ClearSharers()
	default:
		return protocolErrorf("dataResponse", ev.BaseAddr, "received data response but state is %s", entry.State)
	}

	respEv.ID = c.ids.Next()
	respEv.ResponseTo = reqEv.ID
	respEv.Size = c.cfg.CacheLineSize
	respEv.Payload = ev.Payload
	c.Stats.sentResponse(respEv)
	c.sendEventToCaches(respEv, c.timestamp+c.cfg.MSHRLatencyCycles)

	c.postRequestProcessing(reqEv, entry)
	c.replayWaitingEvents(entry.BaseAddr)
	c.applyUpdateCache(entry)
	return nil
}

// handleMemoryResponse routes a response arriving from memory: it is
// either a noncacheable passthrough answer, a directory-entry fetch
// answer, or a data fetch answer.
func (c *Controller) handleMemoryResponse(ev *event.Event) error {
	if ev.Noncacheable() {
		pair, ok := c.noncache[ev.ResponseTo]
		if !ok {
			return protocolErrorf("memoryResponse", ev.BaseAddr, "unexpected noncacheable response from memory")
		}
		delete(c.noncache, ev.ResponseTo)
		ev.BaseAddr = pair.baseAddr
		ev.Addr = pair.addr
		ev.Dst = pair.src
		c.Stats.sentResponse(ev)
		c.collab.SendNet(ev)
		return nil
	}

	if baseAddr, ok := c.dirEntryMiss[ev.ResponseTo]; ok {
		delete(c.dirEntryMiss, ev.ResponseTo)
		return c.handleDirEntryMemoryResponse(baseAddr)
	}

	if baseAddr, ok := c.memReqs[ev.ResponseTo]; ok {
		delete(c.memReqs, ev.ResponseTo)
		ev.BaseAddr = baseAddr
		return c.handleDataResponse(ev)
	}

	return protocolErrorf("memoryResponse", ev.BaseAddr, "unexpected response from memory, no matching request")
}

// handleNoncacheable forwards a noncacheable request straight to
// memory, bypassing the protocol entirely (spec.md §7), recording
// enough to restore global addressing on the way back.
func (c *Controller) handleNoncacheable(ev *event.Event) error {
	c.noncache[ev.ID] = addrPair{baseAddr: ev.BaseAddr, addr: ev.Addr, src: ev.Src}

	localAddr := c.addr.ToLocal(ev.Addr)
	localBase := c.addr.ToLocal(ev.BaseAddr)
	fwd := *ev
	fwd.BaseAddr = localBase
	fwd.Addr = localAddr

	c.Stats.sentToMemOrCache(&fwd, localAddr)
	if c.cfg.DirectMemLink {
		c.collab.SendMem(&fwd)
	} else {
		fwd.Dst = c.cfg.NetMemoryName
		c.collab.SendNet(&fwd)
	}
	return nil
}

// getDirEntryFromMemory requests the entry itself from the backing
// store, transitioning it into the matching `_d` state.
func (c *Controller) getDirEntryFromMemory(entry *Entry) {
	if !c.entries.beginFetch(entry) {
		return
	}
	dummy := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      event.GetS,
		BaseAddr: 0,
		Addr:     0,
		Size:     c.entrySize,
	}
	c.dirEntryMiss[dummy.ID] = entry.BaseAddr
	c.Stats.sentToMemOrCache(dummy, 0)

	deliveryTime := c.timestamp + c.cfg.AccessLatencyCycles
	if c.cfg.DirectMemLink {
		c.io.scheduleMem(dummy, deliveryTime)
	} else {
		dummy.Dst = c.cfg.NetMemoryName
		c.io.scheduleNet(dummy, deliveryTime)
	}
}

// handleDirEntryMemoryResponse restores the entry's stable state and
// replays its MSHR head through the engine (spec.md's Design Notes:
// I<->I_d, S<->S_d, M<->M_d).
func (c *Controller) handleDirEntryMemoryResponse(baseAddr uint64) error {
	entry := c.entries.get(baseAddr)
	if entry == nil {
		return protocolErrorf("dirEntryFetch", baseAddr, "directory entry does not exist")
	}
	if !c.entries.completeFetch(entry) {
		return protocolErrorf("dirEntryFetch", baseAddr, "entry fetch response received but state is %s", entry.State)
	}
	reqEv := c.mshr.lookupFront(baseAddr)
	if reqEv == nil {
		return protocolErrorf("dirEntryFetch", baseAddr, "no request waiting on this entry fetch")
	}
	return c.process(reqEv)
}

// sendEntryToMemory spills an evicted directory entry, writing a dummy
// stub to local address 0 (memory discards PutE writebacks, so this is
// safe even though no real payload is carried).
func (c *Controller) sendEntryToMemory(entry *Entry) {
	ev := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      event.PutE,
		BaseAddr: 0,
		Addr:     0,
		Size:     c.entrySize,
	}
	deliveryTime := c.timestamp + c.cfg.AccessLatencyCycles
	if c.cfg.DirectMemLink {
		c.io.scheduleMem(ev, deliveryTime)
	} else {
		ev.Dst = c.cfg.NetMemoryName
		c.io.scheduleNet(ev, deliveryTime)
	}
}

// writebackData sends a dirty block's payload (carried by dataEvent, a
// FetchResp/FetchXResp/PutM/PutX) on to memory as a PutM.
func (c *Controller) writebackData(dataEvent *event.Event) error {
	if len(dataEvent.Payload) != c.cfg.CacheLineSize {
		return protocolErrorf("writeback", dataEvent.BaseAddr, "payload size %d does not match cache line size %d", len(dataEvent.Payload), c.cfg.CacheLineSize)
	}
	localBase := c.addr.ToLocal(dataEvent.BaseAddr)
	wb := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      event.PutM,
		BaseAddr: localBase,
		Addr:     localBase,
		Size:     len(dataEvent.Payload),
		Payload:  dataEvent.Payload,
	}
	c.Stats.sentToMemOrCache(wb, localBase)

	deliveryTime := c.timestamp + c.cfg.AccessLatencyCycles
	if c.cfg.DirectMemLink {
		c.io.scheduleMem(wb, deliveryTime)
	} else {
		wb.Dst = c.cfg.NetMemoryName
		c.io.scheduleNet(wb, deliveryTime)
	}
	return nil
}

// nack refuses ev, telling its sender to retry.
func (c *Controller) nack(ev *event.Event) {
	nackEv := ev.MakeNACK()
	nackEv.ID = c.ids.Next()
	c.Stats.sentResponse(nackEv)
	c.sendEventToCaches(nackEv, c.timestamp+1)
}

// postRequestProcessing folds completion stats and clears the entry's
// last-request marker (the original's DirEntry::setToSteadyState).
func (c *Controller) postRequestProcessing(ev *event.Event, entry *Entry) {
	now := uint64(0)
	if c.collab.NowNanos != nil {
		now = c.collab.NowNanos()
	}
	c.Stats.recordCompletion(ev.Cmd, ev.DeliveryTime, now)
	entry.LastRequest = event.ID{}
}

// replayWaitingEvents reinserts every MSHR-queued event for addr into
// the work queue, immediately after the event currently being
// processed and in their original (oldest-first) order, so reprocessing
// may find the conflict that stalled them resolved (spec.md §4.1).
func (c *Controller) replayWaitingEvents(addr uint64) {
	if !c.mshr.isHit(addr) {
		return
	}
	queued := c.mshr.removeAll(addr)
	if c.curElem == nil {
		for i := len(queued) - 1; i >= 0; i-- {
			c.workQueue.PushFront(queued[i])
		}
		return
	}
	for i := len(queued) - 1; i >= 0; i-- {
		c.workQueue.InsertAfter(queued[i], c.curElem)
	}
}

// applyUpdateCache re-files entry in the directory-entry LRU and issues
// a spill write for anything it evicted.
func (c *Controller) applyUpdateCache(entry *Entry) {
	res := c.entries.updateCache(entry)
	for _, spilled := range res.spilled {
		c.sendEntryToMemory(spilled)
	}
}

// sendEventToCaches schedules ev for delivery to the network of
// sibling caches no earlier than deliveryTime.
func (c *Controller) sendEventToCaches(ev *event.Event, deliveryTime uint64) {
	c.io.scheduleNet(ev, deliveryTime)
}
