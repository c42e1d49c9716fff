// Package event defines the wire format exchanged between a directory
// controller, its sibling caches, and the backing memory controller.
package event

import "github.com/rs/xid"

// Command names a coherence message.
type Command int

// The command set a directory controller must handle, grouped the way
// spec.md §6 groups them: requests from caches, directory-to-cache
// pushes, cache-to-directory responses, and directory-to-memory traffic.
const (
	// GetS is a shared (read) request.
	GetS Command = iota
	// GetX is an exclusive (write) request.
	GetX
	// GetSEx is a read-with-intent-to-write request; handled like GetX.
	GetSEx
	// PutS reports a clean sharer drop.
	PutS
	// PutE reports a clean exclusive eviction.
	PutE
	// PutM reports a dirty eviction and carries a writeback payload.
	PutM
	// PutX reports a voluntary M->S downgrade.
	PutX
	// Inv asks a sharer to invalidate its copy.
	Inv
	// FetchInv asks the owner to invalidate and return data.
	FetchInv
	// FetchInvX asks the owner to downgrade to shared and return data.
	FetchInvX
	// GetSResp grants shared (or exclusive, under MESI) access.
	GetSResp
	// GetXResp grants exclusive access.
	GetXResp
	// NACK is a transient refusal; the sender must retry.
	NACK
	// FetchResp answers FetchInv.
	FetchResp
	// FetchXResp answers FetchInvX.
	FetchXResp
)

//go:generate stringer -type=Command

func (c Command) String() string {
	switch c {
	case GetS:
		return "GetS"
	case GetX:
		return "GetX"
	case GetSEx:
		return "GetSEx"
	case PutS:
		return "PutS"
	case PutE:
		return "PutE"
	case PutM:
		return "PutM"
	case PutX:
		return "PutX"
	case Inv:
		return "Inv"
	case FetchInv:
		return "FetchInv"
	case FetchInvX:
		return "FetchInvX"
	case GetSResp:
		return "GetSResp"
	case GetXResp:
		return "GetXResp"
	case NACK:
		return "NACK"
	case FetchResp:
		return "FetchResp"
	case FetchXResp:
		return "FetchXResp"
	default:
		return "Unknown"
	}
}

// IsRequest reports whether c is one of the cache-originated requests
// that allocates (or touches) a directory entry.
func (c Command) IsRequest() bool {
	switch c {
	case GetS, GetX, GetSEx, PutS, PutE, PutM, PutX:
		return true
	default:
		return false
	}
}

// GrantedState names the coherence state a GetSResp/GetXResp grants to
// the requester. Plain GetS/GetX responses grant Shared/Modified; under
// MESI an uncontended GetS may instead grant Exclusive.
type GrantedState int

const (
	// GrantShared grants a read-only copy.
	GrantShared GrantedState = iota
	// GrantExclusive grants a clean, writable copy (MESI only).
	GrantExclusive
	// GrantModified grants a writable copy.
	GrantModified
)

// Flags carries out-of-band bits attached to an event.
type Flags uint32

// NonCacheable marks a request that bypasses the coherence protocol
// entirely and is passed through to memory (spec.md §7).
const NonCacheable Flags = 1 << 0

// AckNeeded marks an Inv that requires an explicit PutS acknowledgement.
const AckNeeded Flags = 1 << 1

// ID uniquely identifies an event. Epoch is assigned once per Minter
// from a global, sortable, collision-free source (xid.ID, the same
// identifier Akita's components use internally) and Seq disambiguates
// events minted within the same epoch, mirroring the original
// (uint64, int) pair-id.
type ID struct {
	Epoch xid.ID
	Seq   uint64
}

// IsZero reports whether id is the zero ID (used as a "no previous
// request" sentinel, mirroring DirEntry::NO_LAST_REQUEST).
func (id ID) IsZero() bool {
	return id.Epoch.IsZero() && id.Seq == 0
}

// Minter hands out unique event IDs for one controller's lifetime.
type Minter struct {
	epoch xid.ID
	next  uint64
}

// NewMinter creates a Minter with a fresh epoch.
func NewMinter() *Minter {
	return &Minter{epoch: xid.New()}
}

// Next returns the next unused ID from m.
func (m *Minter) Next() ID {
	m.next++
	return ID{Epoch: m.epoch, Seq: m.next}
}

// Event is the message exchanged between the directory controller, its
// sibling caches, and memory. A shared header (ID, addresses, command,
// source/destination, delivery time) is common to every command; fields
// only some commands use (Payload, NACKedEvent, ResponseTo) are left at
// their zero value otherwise, following the "tagged variant over the
// command set" shape spec.md's Design Notes call for.
type Event struct {
	ID   ID
	Cmd  Command
	Flag Flags

	// BaseAddr is the cache-line-aligned block address this event
	// concerns; Addr is the (possibly unaligned) byte address of the
	// original access. Size is the access width for noncacheable
	// traffic; for cacheable traffic the payload is always one block.
	BaseAddr uint64
	Addr     uint64
	Size     int

	// Payload carries block data; it is exactly BlockSize bytes for any
	// cacheable data-carrying command (GetSResp/GetXResp/PutM/FetchResp/
	// FetchXResp), and Size bytes for noncacheable traffic.
	Payload []byte

	Src string
	Dst string

	// DeliveryTime is the cycle at which this event is eligible for
	// delivery to Dst; the sender sets it when enqueueing, and the
	// receiving queue never lets it leave before that cycle.
	DeliveryTime uint64

	// ResponseTo names the request this event answers, when it answers
	// one (a data response or a NACK).
	ResponseTo ID

	// NACKedEvent is the original event a NACK refuses; present only on
	// NACK commands.
	NACKedEvent *Event

	// Granted records which state a response grants; meaningful only on
	// GetSResp/GetXResp/FetchResp/FetchXResp.
	Granted GrantedState
}

// Noncacheable reports whether ev bypasses the coherence protocol.
func (ev *Event) Noncacheable() bool {
	return ev.Flag&NonCacheable != 0
}

// NeedsAck reports whether ev (an Inv) requires an explicit ack.
func (ev *Event) NeedsAck() bool {
	return ev.Flag&AckNeeded != 0
}

// MakeResponse builds a GetSResp (GetXResp when ev is a GetX or GetSEx)
// event answering ev, addressed back to ev's source, granting the given
// state. The caller still must attach ResponseTo, Payload and send it.
func (ev *Event) MakeResponse(granted GrantedState) *Event {
	cmd := GetSResp
	if ev.Cmd == GetX || ev.Cmd == GetSEx {
		cmd = GetXResp
	}
	return &Event{
		Cmd:      cmd,
		BaseAddr: ev.BaseAddr,
		Addr:     ev.Addr,
		Size:     ev.Size,
		Src:      ev.Dst,
		Dst:      ev.Src,
		Granted:  granted,
	}
}

// MakeNACK builds a NACK response to ev, addressed back to ev's source.
func (ev *Event) MakeNACK() *Event {
	return &Event{
		Cmd:         NACK,
		BaseAddr:    ev.BaseAddr,
		Addr:        ev.Addr,
		Src:         ev.Dst,
		Dst:         ev.Src,
		ResponseTo:  ev.ID,
		NACKedEvent: ev,
	}
}
