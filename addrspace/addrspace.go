// Package addrspace validates and translates addresses for the slice of
// global physical address space one directory controller owns.
//
// It implements spec.md §4.5 (AddressMap): a [RangeStart, RangeEnd)
// window, optionally further restricted by an interleave so several
// controllers can partition one contiguous range in fixed-size stripes.
package addrspace

import "fmt"

// Map validates addresses against an owned range and translates between
// global (system-wide) and local (this controller's private memory)
// addressing.
type Map struct {
	RangeStart uint64
	RangeEnd   uint64

	// InterleaveSize is the width of this controller's stripe within
	// InterleaveStep; zero disables interleaving (the controller owns
	// the whole range contiguously).
	InterleaveSize uint64
	// InterleaveStep is the stride between successive stripes assigned
	// to this controller; must be >= InterleaveSize when interleaving
	// is enabled.
	InterleaveStep uint64
}

// New builds a Map, defaulting RangeEnd to "no upper bound" (the whole
// 64-bit space) when 0 is given, matching addr_range_end's default.
func New(rangeStart, rangeEnd, interleaveSize, interleaveStep uint64) (*Map, error) {
	if rangeEnd == 0 {
		rangeEnd = ^uint64(0)
	}
	m := &Map{
		RangeStart:     rangeStart,
		RangeEnd:       rangeEnd,
		InterleaveSize: interleaveSize,
		InterleaveStep: interleaveStep,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the interleave invariant spec.md §4.5 requires
// (InterleaveStep >= InterleaveSize); a violation is a fatal
// misconfiguration, not a runtime condition.
func (m *Map) Validate() error {
	if m.InterleaveSize > 0 && m.InterleaveStep < m.InterleaveSize {
		return fmt.Errorf("addrspace: interleave_step (%d) must be >= interleave_size (%d)", m.InterleaveStep, m.InterleaveSize)
	}
	if m.RangeEnd <= m.RangeStart {
		return fmt.Errorf("addrspace: addr_range_end (%d) must be > addr_range_start (%d)", m.RangeEnd, m.RangeStart)
	}
	return nil
}

// Valid reports whether addr falls within this controller's owned
// range, honoring the interleave stripe when configured.
func (m *Map) Valid(addr uint64) bool {
	if addr < m.RangeStart || addr >= m.RangeEnd {
		return false
	}
	if m.InterleaveSize == 0 {
		return true
	}
	offset := (addr - m.RangeStart) % m.InterleaveStep
	return offset < m.InterleaveSize
}

// ToLocal converts a global physical address to this controller's local
// (private memory) address space.
func (m *Map) ToLocal(addr uint64) uint64 {
	if m.InterleaveSize == 0 {
		return addr - m.RangeStart
	}
	a := addr - m.RangeStart
	step := a / m.InterleaveStep
	offset := a % m.InterleaveStep
	return step*m.InterleaveSize + offset
}

// FromLocal is the inverse of ToLocal.
func (m *Map) FromLocal(addr uint64) uint64 {
	if m.InterleaveSize == 0 {
		return addr + m.RangeStart
	}
	step := addr / m.InterleaveSize
	offset := addr % m.InterleaveSize
	return step*m.InterleaveStep + offset + m.RangeStart
}
