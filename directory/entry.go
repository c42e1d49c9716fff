package directory

import (
	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/nodeid"
)

// Entry is the per-block directory state spec.md §3 describes: owner or
// sharer set (never both), transient bookkeeping for in-flight
// transactions, and the directory-entry-cache residency bit.
//
// At most one of owner/sharers is populated at any stable state; that
// invariant is maintained by the protocol engine, not enforced here --
// Entry is a plain data holder, like the original's DirEntry struct.
type Entry struct {
	BaseAddr uint64
	Addr     uint64
	Size     int
	State    State

	owner   nodeid.ID
	sharers map[nodeid.ID]struct{}

	WaitingAcks int

	// LastRequest disambiguates late NACKs from stale attempts (spec.md
	// §4.1 "NACK"): a NACK is honored only if it answers the entry's
	// most recently emitted protocol message.
	LastRequest event.ID

	// Cached is true iff this entry is resident in the directory-entry
	// cache; false iff it has been spilled to the backing store.
	Cached bool
}

// newEntry creates an entry for baseAddr. Per spec.md's Design Notes,
// new entries are born cached unconditionally -- the original's
// "cheatin'" setCached(true) on creation is preserved deliberately.
func newEntry(baseAddr, addr uint64, size int) *Entry {
	return &Entry{
		BaseAddr: baseAddr,
		Addr:     addr,
		Size:     size,
		State:    I,
		owner:    nodeid.None,
		sharers:  make(map[nodeid.ID]struct{}),
		Cached:   true,
	}
}

// Owner returns the current owner, or nodeid.None if unset.
func (e *Entry) Owner() nodeid.ID { return e.owner }

// SetOwner assigns the owner.
func (e *Entry) SetOwner(id nodeid.ID) { e.owner = id }

// ClearOwner unsets the owner.
func (e *Entry) ClearOwner() { e.owner = nodeid.None }

// IsSharer reports whether id currently holds a shared copy.
func (e *Entry) IsSharer(id nodeid.ID) bool {
	_, ok := e.sharers[id]
	return ok
}

// AddSharer adds id to the sharer set.
func (e *Entry) AddSharer(id nodeid.ID) {
	e.sharers[id] = struct{}{}
}

// RemoveSharer removes id from the sharer set.
func (e *Entry) RemoveSharer(id nodeid.ID) {
	delete(e.sharers, id)
}

// ClearSharers empties the sharer set.
func (e *Entry) ClearSharers() {
	e.sharers = make(map[nodeid.ID]struct{})
}

// SharerCount returns the number of current sharers.
func (e *Entry) SharerCount() int {
	return len(e.sharers)
}

// SharersSlice returns the current sharer ids. The caller must not retain a
// reference to iterate while the entry is mutated concurrently -- there
// is only ever one goroutine touching an Entry (spec.md §5), so this is
// safe to range over directly.
func (e *Entry) SharersSlice() []nodeid.ID {
	ids := make([]nodeid.ID, 0, len(e.sharers))
	for id := range e.sharers {
		ids = append(ids, id)
	}
	return ids
}

// IncrementWaitingAcks bumps the outstanding-invalidation-ack counter.
func (e *Entry) IncrementWaitingAcks() { e.WaitingAcks++ }

// DecrementWaitingAcks decrements the outstanding-invalidation-ack
// counter.
func (e *Entry) DecrementWaitingAcks() { e.WaitingAcks-- }
