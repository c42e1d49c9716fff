// Package peercache provides a coherence-protocol-aware sibling cache:
// an Akita-tag-managed cache line store that keeps itself in sync with
// a directory.Controller instead of talking to a private backing store
// directly (spec.md §2's "Cache" peer). It is adapted from
// timing/cache.Cache, trading its synchronous BackingStore interface
// for an asynchronous, OnEvent-driven exchange with the directory
// controller.
package peercache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/dirctrl/directory/event"
)

// Config holds a peer cache's configuration.
type Config struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes (cache line size); must match every other peer
	// and the owning directory controller's CacheLineSize.
	BlockSize int
	// HitLatency in cycles.
	HitLatency uint64

	// Name is this cache's identity on the network: every event it
	// sends carries it as Src, and every event the directory sends it
	// carries it as Dst.
	Name string
	// DirectoryName addresses the directory controller owning this
	// cache's address range.
	DirectoryName string
}

// DefaultConfig returns a modestly sized per-core L1 configuration
// suitable for exercising the coherence protocol in tests: small enough
// that sharing and eviction races are easy to provoke.
func DefaultConfig(name, directoryName string) Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    1,
		Name:          name,
		DirectoryName: directoryName,
	}
}

// lineState is the coherence state of one cache-resident line, from
// this peer's point of view (spec.md's Glossary: every peer implicitly
// tracks Invalid/Shared/Exclusive/Modified for its own resident lines,
// even though only the directory is authoritative).
type lineState int

const (
	lineInvalid lineState = iota
	lineShared
	lineExclusive
	lineModified
)

// AccessResult reports the outcome of a completed Read/Write.
type AccessResult struct {
	Hit     bool
	Latency uint64
	Data    uint64
}

// Statistics holds cache performance counters.
type Statistics struct {
	Reads       uint64
	Writes      uint64
	Hits        uint64
	Misses      uint64
	Invalidated uint64
	Downgraded  uint64
	Evictions   uint64
}

// Collaborators is the capability set Cache consumes from its host: send
// an event to the owning directory controller, and be told when a
// previously issued access finally completes.
type Collaborators struct {
	SendToDirectory func(*event.Event)
	OnComplete      func(reqID event.ID, result AccessResult)
}

// pendingAccess tracks one outstanding miss or upgrade, matching its
// eventual GetSResp/GetXResp back to the access that triggered it.
type pendingAccess struct {
	reqID     event.ID
	blockAddr uint64
	offset    uint64
	size      int
	isWrite   bool
	writeData uint64
}

// Cache is one sibling cache of a directory.Controller: it holds
// Akita-tag-managed lines and a protocol state per line, issuing
// GetS/GetX on a miss and answering Inv/FetchInv/FetchInvX as
// they arrive.
type Cache struct {
	cfg Config

	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	lineState []lineState

	collab Collaborators
	ids    *event.Minter

	pending map[uint64]*pendingAccess // keyed by blockAddr; one in flight per line

	stats Statistics
}

// New creates a Cache with cfg's shape, ready to issue requests to
// collab.SendToDirectory and report completions via collab.OnComplete.
func New(cfg Config, collab Collaborators) *Cache {
	numSets := cfg.Size / (cfg.Associativity * cfg.BlockSize)
	totalBlocks := numSets * cfg.Associativity

	dataStore := make([][]byte, totalBlocks)
	lineState := make([]lineState, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, cfg.BlockSize)
	}

	return &Cache{
		cfg: cfg,
		directory: akitacache.NewDirectory(
			numSets,
			cfg.Associativity,
			cfg.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		lineState: lineState,
		collab:    collab,
		ids:       event.NewMinter(),
		pending:   make(map[uint64]*pendingAccess),
	}
}

// Stats returns the cache's performance counters.
func (c *Cache) Stats() Statistics { return c.stats }

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.cfg.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.cfg.BlockSize)) * uint64(c.cfg.BlockSize)
}

func (c *Cache) lineIndex(blockAddr uint64) (int, bool) {
	block := c.directory.Lookup(0, blockAddr)
	if block == nil || !block.IsValid {
		return 0, false
	}
	return c.blockIndex(block), true
}

// Read looks up addr. On a hit, it completes immediately and returns
// true. On a miss, it issues a GetS to the directory and returns
// false; the eventual completion arrives via collab.OnComplete.
func (c *Cache) Read(addr uint64, size int) (AccessResult, bool) {
	c.stats.Reads++
	blockAddr := c.blockAddr(addr)

	if idx, ok := c.lineIndex(blockAddr); ok {
		c.stats.Hits++
		block := c.directory.Lookup(0, blockAddr)
		c.directory.Visit(block)
		offset := addr % uint64(c.cfg.BlockSize)
		return AccessResult{Hit: true, Latency: c.cfg.HitLatency, Data: extractData(c.dataStore[idx], offset, size)}, true
	}

	c.stats.Misses++
	c.issueMiss(blockAddr, addr%uint64(c.cfg.BlockSize), size, false, 0)
	return AccessResult{}, false
}

// Write looks up addr. On a hit with a writable (Exclusive/Modified)
// line, it completes immediately. Otherwise it issues GetX (upgrading a
// Shared hit, or fetching a missing line) and returns false.
func (c *Cache) Write(addr uint64, size int, data uint64) (AccessResult, bool) {
	c.stats.Writes++
	blockAddr := c.blockAddr(addr)
	offset := addr % uint64(c.cfg.BlockSize)

	if idx, ok := c.lineIndex(blockAddr); ok {
		if c.lineState[idx] == lineExclusive || c.lineState[idx] == lineModified {
			c.stats.Hits++
			block := c.directory.Lookup(0, blockAddr)
			c.directory.Visit(block)
			storeData(c.dataStore[idx], offset, size, data)
			c.lineState[idx] = lineModified
			return AccessResult{Hit: true, Latency: c.cfg.HitLatency}, true
		}
	}

	c.stats.Misses++
	c.issueMiss(blockAddr, offset, size, true, data)
	return AccessResult{}, false
}

func (c *Cache) issueMiss(blockAddr, offset uint64, size int, isWrite bool, data uint64) {
	if _, inFlight := c.pending[blockAddr]; inFlight {
		return
	}

	cmd := event.GetS
	if isWrite {
		cmd = event.GetX
	}
	req := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      cmd,
		BaseAddr: blockAddr,
		Addr:     blockAddr + offset,
		Size:     c.cfg.BlockSize,
		Src:      c.cfg.Name,
		Dst:      c.cfg.DirectoryName,
	}
	c.pending[blockAddr] = &pendingAccess{
		reqID:     req.ID,
		blockAddr: blockAddr,
		offset:    offset,
		size:      size,
		isWrite:   isWrite,
		writeData: data,
	}
	c.collab.SendToDirectory(req)
}

// OnEvent handles a message arriving from the directory: a grant
// (GetSResp/GetXResp) completing a pending miss, a NACK requiring a
// retry, or a coherence downgrade/invalidation this cache must answer.
func (c *Cache) OnEvent(ev *event.Event) error {
	switch ev.Cmd {
	case event.GetSResp, event.GetXResp:
		return c.handleGrant(ev)
	case event.NACK:
		return c.handleNACK(ev)
	case event.Inv:
		return c.handleInv(ev)
	case event.FetchInv:
		return c.handleFetchInv(ev)
	case event.FetchInvX:
		return c.handleFetchInvX(ev)
	default:
		return nil
	}
}

func (c *Cache) handleGrant(ev *event.Event) error {
	pa, ok := c.pending[ev.BaseAddr]
	if !ok {
		return nil
	}
	delete(c.pending, ev.BaseAddr)

	block := c.directory.Lookup(0, ev.BaseAddr)
	if block == nil {
		block = c.directory.FindVictim(ev.BaseAddr)
	}
	idx := c.blockIndex(block)

	if block.IsValid && block.IsDirty && block.Tag != ev.BaseAddr {
		c.stats.Evictions++
		evictAddr := block.Tag
		evictData := append([]byte(nil), c.dataStore[idx]...)
		c.writebackEviction(evictAddr, evictData)
	}

	if block.Tag != ev.BaseAddr || !block.IsValid {
		copy(c.dataStore[idx], ev.Payload)
	}
	block.Tag = ev.BaseAddr
	block.IsValid = true
	block.IsDirty = false
	c.directory.Visit(block)

	switch ev.Granted {
	case event.GrantShared:
		c.lineState[idx] = lineShared
	case event.GrantExclusive:
		c.lineState[idx] = lineExclusive
	case event.GrantModified:
		c.lineState[idx] = lineModified
		block.IsDirty = true
	}

	if pa.isWrite {
		storeData(c.dataStore[idx], pa.offset, pa.size, pa.writeData)
		c.lineState[idx] = lineModified
		block.IsDirty = true
	}

	result := AccessResult{Hit: false, Latency: 0, Data: extractData(c.dataStore[idx], pa.offset, pa.size)}
	if c.collab.OnComplete != nil {
		c.collab.OnComplete(pa.reqID, result)
	}
	return nil
}

func (c *Cache) handleNACK(ev *event.Event) error {
	orig := ev.NACKedEvent
	if orig == nil {
		return nil
	}
	pa, ok := c.pending[orig.BaseAddr]
	if !ok || pa.reqID != orig.ID {
		return nil
	}
	c.collab.SendToDirectory(orig)
	return nil
}

// handleInv drops a shared copy and acknowledges with PutS.
func (c *Cache) handleInv(ev *event.Event) error {
	idx, ok := c.lineIndex(ev.BaseAddr)
	if ok {
		c.stats.Invalidated++
		block := c.directory.Lookup(0, ev.BaseAddr)
		block.IsValid = false
		c.lineState[idx] = lineInvalid
	}
	if ev.NeedsAck() {
		c.sendToDirectory(event.PutS, ev.BaseAddr, ev.BaseAddr, nil)
	}
	return nil
}

// handleFetchInv gives up the line entirely, returning its data.
func (c *Cache) handleFetchInv(ev *event.Event) error {
	idx, ok := c.lineIndex(ev.BaseAddr)
	if !ok {
		return nil
	}
	block := c.directory.Lookup(0, ev.BaseAddr)
	payload := append([]byte(nil), c.dataStore[idx]...)
	dirty := c.lineState[idx] == lineModified
	block.IsValid = false
	c.lineState[idx] = lineInvalid
	c.stats.Invalidated++

	cmd := event.FetchResp
	if dirty {
		cmd = event.PutM
	}
	c.sendToDirectory(cmd, ev.BaseAddr, ev.BaseAddr, payload)
	return nil
}

// handleFetchInvX downgrades the line to Shared, returning its data.
func (c *Cache) handleFetchInvX(ev *event.Event) error {
	idx, ok := c.lineIndex(ev.BaseAddr)
	if !ok {
		return nil
	}
	block := c.directory.Lookup(0, ev.BaseAddr)
	payload := append([]byte(nil), c.dataStore[idx]...)
	dirty := c.lineState[idx] == lineModified
	c.lineState[idx] = lineShared
	block.IsDirty = false
	c.stats.Downgraded++

	cmd := event.FetchXResp
	if dirty {
		cmd = event.PutX
	}
	c.sendToDirectory(cmd, ev.BaseAddr, ev.BaseAddr, payload)
	return nil
}

func (c *Cache) sendToDirectory(cmd event.Command, baseAddr, addr uint64, payload []byte) {
	ev := &event.Event{
		ID:       c.ids.Next(),
		Cmd:      cmd,
		BaseAddr: baseAddr,
		Addr:     addr,
		Size:     c.cfg.BlockSize,
		Payload:  payload,
		Src:      c.cfg.Name,
		Dst:      c.cfg.DirectoryName,
	}
	c.collab.SendToDirectory(ev)
}

// writebackEviction spills a dirty line being replaced by an incoming
// grant, the way a real cache's write-allocate eviction would.
func (c *Cache) writebackEviction(addr uint64, data []byte) {
	c.sendToDirectory(event.PutM, addr, addr, data)
}

// Evict voluntarily releases addr's line with PutS, PutE or PutM, the
// way a cache replacement policy would choose to give up a line it no
// longer needs, independent of directory pressure.
func (c *Cache) Evict(addr uint64) {
	idx, ok := c.lineIndex(addr)
	if !ok {
		return
	}
	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)
	state := c.lineState[idx]
	block.IsValid = false
	c.lineState[idx] = lineInvalid

	switch state {
	case lineShared:
		c.sendToDirectory(event.PutS, blockAddr, blockAddr, nil)
	case lineExclusive:
		c.sendToDirectory(event.PutE, blockAddr, blockAddr, nil)
	case lineModified:
		payload := append([]byte(nil), c.dataStore[idx]...)
		c.sendToDirectory(event.PutM, blockAddr, blockAddr, payload)
	}
}

func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
