package directory

import "container/list"

// dirMap is the primary baseAddr -> Entry mapping plus the bounded LRU
// of entries currently resident without a memory round-trip (spec.md
// §4.3). It mirrors the original's `map<Addr, DirEntry*> directory` and
// `list<DirEntry*> entryCache` pair exactly, including the iterator
// token each entry carries (here, a *list.Element instead of a raw STL
// iterator, per spec.md's Design Notes on cyclic references).
type dirMap struct {
	entries map[uint64]*Entry
	lru     *list.List
	iters   map[uint64]*list.Element
	maxSize int

	// busy reports whether addr has outstanding MSHR traffic; pinning
	// logic in updateCache consults it before evicting a tail entry.
	busy func(addr uint64) bool
}

func newDirMap(maxSize int, busy func(addr uint64) bool) *dirMap {
	return &dirMap{
		entries: make(map[uint64]*Entry),
		lru:     list.New(),
		iters:   make(map[uint64]*list.Element),
		maxSize: maxSize,
		busy:    busy,
	}
}

// get returns the entry for addr, or nil if none exists.
func (d *dirMap) get(addr uint64) *Entry {
	return d.entries[addr]
}

// create allocates and registers a new entry for addr. Per spec.md's
// Design Notes, it is born cached (not yet in the LRU list -- it joins
// on the first updateCache call, same as the original).
func (d *dirMap) create(baseAddr, addr uint64, size int) *Entry {
	e := newEntry(baseAddr, addr, size)
	d.entries[baseAddr] = e
	return e
}

// updateCacheResult reports what updateCache had to do so the caller
// (the protocol engine) can issue the matching IO: a dummy write per
// spilled entry.
type updateCacheResult struct {
	purged  bool
	spilled []*Entry
}

// updateCache implements spec.md §4.3: after every state transition,
// the entry is re-filed in the LRU (or deleted outright if it settled
// back to I), evicting from the tail while oversized unless the tail
// has outstanding MSHR traffic, in which case eviction stops for this
// call (the cache may stay over maxSize until that entry's work
// drains).
func (d *dirMap) updateCache(e *Entry) updateCacheResult {
	if d.maxSize == 0 {
		e.Cached = false
		return updateCacheResult{spilled: []*Entry{e}}
	}

	if el, ok := d.iters[e.BaseAddr]; ok {
		d.lru.Remove(el)
		delete(d.iters, e.BaseAddr)
	}

	if e.State == I {
		delete(d.entries, e.BaseAddr)
		return updateCacheResult{purged: true}
	}

	d.iters[e.BaseAddr] = d.lru.PushFront(e.BaseAddr)
	e.Cached = true

	var spilled []*Entry
	for d.lru.Len() > d.maxSize {
		tailEl := d.lru.Back()
		tailAddr := tailEl.Value.(uint64)
		if d.busy(tailAddr) {
			break
		}
		d.lru.Remove(tailEl)
		delete(d.iters, tailAddr)
		if tailEntry, ok := d.entries[tailAddr]; ok {
			tailEntry.Cached = false
			spilled = append(spilled, tailEntry)
		}
	}
	return updateCacheResult{spilled: spilled}
}

// beginFetch transitions e into its `_d` fetch state, matching
// getDirEntryFromMemory: only called when e.Cached is false.
func (d *dirMap) beginFetch(e *Entry) bool {
	next, ok := toFetchFromSteady(e.State)
	if !ok {
		return false
	}
	e.State = next
	return true
}

// completeFetch restores e's stable state after its entry-fetch
// response arrives, matching handleDirEntryMemoryResponse.
func (d *dirMap) completeFetch(e *Entry) bool {
	next, ok := toSteadyFromFetch(e.State)
	if !ok {
		return false
	}
	e.State = next
	e.Cached = true
	return true
}
