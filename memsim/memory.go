// Package memsim implements the backing memory model a directory
// controller spills directory entries to and fetches data blocks from
// (spec.md §2's "Memory" peer): a flat byte array addressed in the
// controller's local address space, answering GetS/GetX with data and
// silently absorbing PutM/PutE writebacks.
package memsim

import (
	"github.com/sarchlab/dirctrl/directory/event"
)

// Memory is a local backing store. It has no latency of its own --
// every access it answers was already delayed by the directory
// controller's AccessLatencyCycles before reaching it -- so HandleEvent
// replies synchronously within the same call.
type Memory struct {
	cfg  Config
	data []byte
	ids  *event.Minter
}

// New creates a Memory sized per cfg.
func New(cfg Config) *Memory {
	return &Memory{
		cfg:  cfg,
		data: make([]byte, cfg.SizeBytes),
		ids:  event.NewMinter(),
	}
}

// HandleEvent answers one request event, returning the response to
// deliver back to the sender, or nil if the command produces no
// response (PutM/PutE writebacks).
func (m *Memory) HandleEvent(ev *event.Event) *event.Event {
	switch ev.Cmd {
	case event.GetS, event.GetSEx, event.GetX:
		respCmd := event.GetSResp
		if ev.Cmd == event.GetX {
			respCmd = event.GetXResp
		}
		return &event.Event{
			ID:         m.ids.Next(),
			Cmd:        respCmd,
			Flag:       ev.Flag,
			BaseAddr:   ev.BaseAddr,
			Addr:       ev.Addr,
			Size:       ev.Size,
			Payload:    m.read(ev.Addr, ev.Size),
			Src:        ev.Dst,
			Dst:        ev.Src,
			ResponseTo: ev.ID,
		}
	case event.PutM:
		m.write(ev.Addr, ev.Payload)
		return nil
	case event.PutE:
		// A clean stub spill write: nothing to persist.
		return nil
	default:
		return nil
	}
}

// read returns size bytes starting at addr, zero-filled past the end of
// local memory rather than panicking -- an out-of-range access here
// indicates a misconfigured address map upstream, not memory's problem
// to enforce.
func (m *Memory) read(addr uint64, size int) []byte {
	out := make([]byte, size)
	if addr >= uint64(len(m.data)) {
		return out
	}
	n := copy(out, m.data[addr:])
	_ = n
	return out
}

func (m *Memory) write(addr uint64, payload []byte) {
	if addr >= uint64(len(m.data)) {
		return
	}
	copy(m.data[addr:], payload)
}
