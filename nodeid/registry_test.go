package nodeid_test

import (
	"testing"

	"github.com/sarchlab/dirctrl/nodeid"
)

func TestLookupAssignsInFirstSeenOrder(t *testing.T) {
	r := nodeid.New()
	a := r.Lookup("cache0")
	b := r.Lookup("cache1")
	if a != 0 || b != 1 {
		t.Fatalf("expected ids 0,1 got %d,%d", a, b)
	}
	if r.Lookup("cache0") != a {
		t.Fatal("expected stable id for repeated lookup")
	}
	if r.Count() != 2 {
		t.Fatalf("expected count 2, got %d", r.Count())
	}
}

func TestNameRoundTrip(t *testing.T) {
	r := nodeid.New()
	id := r.Lookup("cache0")
	if r.Name(id) != "cache0" {
		t.Fatalf("expected name cache0, got %q", r.Name(id))
	}
}

func TestLookupExistingErrorsOnUnknown(t *testing.T) {
	r := nodeid.New()
	if _, err := r.LookupExisting("ghost"); err == nil {
		t.Fatal("expected error for unknown peer")
	}
}

func TestRegisterPeerBlockSizeMismatch(t *testing.T) {
	r := nodeid.New()
	if err := r.RegisterPeer("cache0", 64); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.RegisterPeer("cache1", 128); err == nil {
		t.Fatal("expected error for mismatched block size")
	}
	if r.BlockSize() != 64 {
		t.Fatalf("expected block size 64, got %d", r.BlockSize())
	}
}
