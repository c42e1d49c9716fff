package memsim_test

import (
	"path/filepath"
	"testing"

	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/memsim"
)

func TestHandleEventGetSReturnsZeroedData(t *testing.T) {
	m := memsim.New(*memsim.DefaultConfig())
	req := &event.Event{Cmd: event.GetS, BaseAddr: 0x100, Addr: 0x100, Size: 8, Src: "cacheA", Dst: "mem"}
	resp := m.HandleEvent(req)
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Cmd != event.GetSResp {
		t.Fatalf("expected GetSResp, got %s", resp.Cmd)
	}
	if resp.ResponseTo != req.ID {
		t.Fatal("expected response to reference the request's ID")
	}
	if len(resp.Payload) != 8 {
		t.Fatalf("expected an 8-byte payload, got %d", len(resp.Payload))
	}
	for _, b := range resp.Payload {
		if b != 0 {
			t.Fatal("expected cold memory to read as zero")
		}
	}
}

func TestHandleEventGetXRespondsWithGetXResp(t *testing.T) {
	m := memsim.New(*memsim.DefaultConfig())
	req := &event.Event{Cmd: event.GetX, BaseAddr: 0x200, Addr: 0x200, Size: 8}
	resp := m.HandleEvent(req)
	if resp.Cmd != event.GetXResp {
		t.Fatalf("expected GetXResp, got %s", resp.Cmd)
	}
}

func TestHandleEventPutMPersistsAndGetSObservesIt(t *testing.T) {
	m := memsim.New(*memsim.DefaultConfig())
	payload := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	put := &event.Event{Cmd: event.PutM, BaseAddr: 0x300, Addr: 0x300, Payload: payload}
	if resp := m.HandleEvent(put); resp != nil {
		t.Fatal("expected PutM to produce no response")
	}

	read := &event.Event{Cmd: event.GetS, BaseAddr: 0x300, Addr: 0x300, Size: 4}
	resp := m.HandleEvent(read)
	for i, b := range payload {
		if resp.Payload[i] != b {
			t.Fatalf("expected written data to be observed, byte %d: want 0x%x got 0x%x", i, b, resp.Payload[i])
		}
	}
}

func TestHandleEventPutEProducesNoResponse(t *testing.T) {
	m := memsim.New(*memsim.DefaultConfig())
	put := &event.Event{Cmd: event.PutE, BaseAddr: 0x400, Addr: 0x400}
	if resp := m.HandleEvent(put); resp != nil {
		t.Fatal("expected PutE to produce no response")
	}
}

func TestHandleEventOutOfRangeDoesNotPanic(t *testing.T) {
	cfg := memsim.DefaultConfig()
	cfg.SizeBytes = 16
	m := memsim.New(*cfg)
	req := &event.Event{Cmd: event.GetS, BaseAddr: 1 << 20, Addr: 1 << 20, Size: 8}
	resp := m.HandleEvent(req)
	if len(resp.Payload) != 8 {
		t.Fatalf("expected a zero-filled payload of the requested size, got %d bytes", len(resp.Payload))
	}
}

func TestConfigDefaultValidates(t *testing.T) {
	cfg := memsim.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestConfigValidateRejectsZeroSize(t *testing.T) {
	cfg := memsim.DefaultConfig()
	cfg.SizeBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for size_bytes=0")
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memsim.json")

	cfg := memsim.DefaultConfig()
	cfg.SizeBytes = 1 << 16
	cfg.ClockRate = "2GHz"
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("unexpected error saving config: %v", err)
	}

	loaded, err := memsim.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if loaded.SizeBytes != cfg.SizeBytes || loaded.ClockRate != cfg.ClockRate {
		t.Fatalf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
}

func TestConfigLoadMissingFile(t *testing.T) {
	_, err := memsim.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}
