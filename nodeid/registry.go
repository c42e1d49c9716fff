// Package nodeid maps peer cache names to compact integer ids and back,
// the way spec.md §4.4 (NodeRegistry) requires: every sharer-set bit and
// every `owner` field is a small int, never a string, once a peer has
// been seen once.
package nodeid

import "fmt"

// ID is a compact identifier for a peer cache. Values are assigned in
// first-seen order starting at 0.
type ID int

// None is the sentinel "no owner" value.
const None ID = -1

// Registry is the bidirectional name<->ID mapping plus the peer count
// and block-size agreement check the original's setup() performs.
type Registry struct {
	byName    map[string]ID
	byID      []string
	blockSize int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]ID)}
}

// Lookup returns the ID for name, assigning a new one on first sight.
func (r *Registry) Lookup(name string) ID {
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := ID(len(r.byID))
	r.byName[name] = id
	r.byID = append(r.byID, name)
	return id
}

// LookupExisting returns the ID for a name that must already be known,
// erroring otherwise (mirrors node_name_to_id's fatal-on-miss behavior,
// but as an error since this is a peer bookkeeping lookup, not a
// protocol-state impossibility).
func (r *Registry) LookupExisting(name string) (ID, error) {
	id, ok := r.byName[name]
	if !ok {
		return None, fmt.Errorf("nodeid: unknown peer %q", name)
	}
	return id, nil
}

// Name returns the peer name for id.
func (r *Registry) Name(id ID) string {
	if id < 0 || int(id) >= len(r.byID) {
		return ""
	}
	return r.byID[id]
}

// Count returns the number of distinct peers registered so far.
func (r *Registry) Count() int {
	return len(r.byID)
}

// RegisterPeer records a peer discovered during setup along with its
// cache-line size, and verifies it agrees with every other peer seen so
// far -- the original's setup() treats a mismatch as fatal.
func (r *Registry) RegisterPeer(name string, blockSize int) error {
	r.Lookup(name)
	if r.blockSize == 0 {
		r.blockSize = blockSize
		return nil
	}
	if r.blockSize != blockSize {
		return fmt.Errorf("nodeid: block size mismatch: peer %q reports %d, expected %d", name, blockSize, r.blockSize)
	}
	return nil
}

// BlockSize returns the agreed-upon cache-line size across registered
// peers, or 0 if no peer has registered yet.
func (r *Registry) BlockSize() int {
	return r.blockSize
}
