package addrspace_test

import (
	"testing"

	"github.com/sarchlab/dirctrl/addrspace"
)

func TestNewDefaultsRangeEnd(t *testing.T) {
	m, err := addrspace.New(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RangeEnd != ^uint64(0) {
		t.Fatalf("expected RangeEnd to default to max uint64, got %d", m.RangeEnd)
	}
}

func TestValidateRejectsBadInterleave(t *testing.T) {
	_, err := addrspace.New(0, 1<<20, 8*1024, 4*1024)
	if err == nil {
		t.Fatal("expected error when interleave_step < interleave_size")
	}
}

func TestValidNoInterleave(t *testing.T) {
	m, err := addrspace.New(0x1000, 0x2000, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Valid(0x1000) || !m.Valid(0x1fff) {
		t.Fatal("expected range endpoints to be valid")
	}
	if m.Valid(0x2000) || m.Valid(0xfff) {
		t.Fatal("expected out-of-range addresses to be invalid")
	}
}

func TestValidWithInterleave(t *testing.T) {
	// Stripe of 1KB every 4KB, starting at 0.
	m, err := addrspace.New(0, 0x100000, 1024, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Valid(0) || !m.Valid(1023) {
		t.Fatal("expected addresses within the first stripe to be valid")
	}
	if m.Valid(1024) || m.Valid(4095) {
		t.Fatal("expected addresses outside the stripe to be invalid")
	}
	if !m.Valid(4096) {
		t.Fatal("expected the next stripe's start to be valid")
	}
}

func TestToLocalFromLocalRoundTripNoInterleave(t *testing.T) {
	m, err := addrspace.New(0x10000, 0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, addr := range []uint64{0x10000, 0x10040, 0x20000} {
		local := m.ToLocal(addr)
		if got := m.FromLocal(local); got != addr {
			t.Fatalf("round trip failed: addr=0x%x local=0x%x got=0x%x", addr, local, got)
		}
	}
}

func TestToLocalFromLocalRoundTripWithInterleave(t *testing.T) {
	m, err := addrspace.New(0, 0x100000, 1024, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, addr := range []uint64{0, 64, 1023, 4096, 4096 + 512} {
		local := m.ToLocal(addr)
		if got := m.FromLocal(local); got != addr {
			t.Fatalf("round trip failed: addr=0x%x local=0x%x got=0x%x", addr, local, got)
		}
	}
}
