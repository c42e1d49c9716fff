package directory

import "fmt"

// ProtocolError reports one of the fatal conditions spec.md §7 names:
// an unknown state on a received command, a writeback from a
// non-owner, a missing directory entry where one was required, or a
// state-machine impossibility. These indicate a bug in a peer or a
// misconfiguration, never a recoverable network condition, so they are
// never retried -- the caller (Controller.Tick/Controller.OnEvent) is
// expected to surface them and stop the run, the way the original's
// dbg.fatal aborts the simulation.
type ProtocolError struct {
	Op       string
	BaseAddr uint64
	Detail   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("directory: %s failed for baseAddr=0x%x: %s", e.Op, e.BaseAddr, e.Detail)
}

func protocolErrorf(op string, baseAddr uint64, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, BaseAddr: baseAddr, Detail: fmt.Sprintf(format, args...)}
}
