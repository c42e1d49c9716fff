package directory_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dirctrl/directory"
	"github.com/sarchlab/dirctrl/directory/event"
)

func TestDirectory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Directory Suite")
}

// harness wires a Controller to an in-memory fake network and backing
// store, so protocol scenarios can be driven and observed without a
// real simulator.
type harness struct {
	ctrl    *directory.Controller
	netOut  map[string][]*event.Event
	memData map[uint64][]byte
	cycle   uint64
}

func newHarness(cfg *directory.Config) *harness {
	h := &harness{
		netOut:  make(map[string][]*event.Event),
		memData: make(map[uint64][]byte),
	}
	collab := directory.Collaborators{
		SendNet: func(ev *event.Event) {
			h.netOut[ev.Dst] = append(h.netOut[ev.Dst], ev)
		},
		SendMem: func(ev *event.Event) {
			h.serviceMem(ev)
		},
		NowNanos: func() uint64 { return h.cycle },
	}
	ctrl, err := directory.New(cfg, collab)
	Expect(err).NotTo(HaveOccurred())
	h.ctrl = ctrl
	return h
}

func (h *harness) serviceMem(ev *event.Event) {
	switch ev.Cmd {
	case event.GetS, event.GetX, event.GetSEx:
		data := h.memData[ev.Addr]
		if data == nil {
			data = make([]byte, ev.Size)
		}
		respCmd := event.GetSResp
		if ev.Cmd == event.GetX {
			respCmd = event.GetXResp
		}
		resp := &event.Event{
			Cmd:        respCmd,
			BaseAddr:   ev.BaseAddr,
			Addr:       ev.Addr,
			Size:       ev.Size,
			Payload:    data,
			Flag:       ev.Flag,
			ResponseTo: ev.ID,
		}
		Expect(h.ctrl.OnEvent(resp)).To(Succeed())
	case event.PutM:
		h.memData[ev.Addr] = append([]byte(nil), ev.Payload...)
	}
}

func (h *harness) tick() {
	h.cycle++
	Expect(h.ctrl.Tick(h.cycle)).To(Succeed())
}

func (h *harness) runTicks(n int) {
	for i := 0; i < n; i++ {
		h.tick()
	}
}

func (h *harness) lastTo(name string) *event.Event {
	q := h.netOut[name]
	if len(q) == 0 {
		return nil
	}
	return q[len(q)-1]
}

func newGetS(addr uint64, size int, src, dst string) *event.Event {
	return &event.Event{Cmd: event.GetS, BaseAddr: addr, Addr: addr, Size: size, Src: src, Dst: dst}
}

func newGetX(addr uint64, size int, src, dst string) *event.Event {
	return &event.Event{Cmd: event.GetX, BaseAddr: addr, Addr: addr, Size: size, Src: src, Dst: dst}
}

func baseConfig() *directory.Config {
	cfg := directory.DefaultConfig()
	cfg.AddrRangeStart = 0
	cfg.AddrRangeEnd = 0x100000
	cfg.CacheLineSize = 64
	cfg.EntryCacheSize = 32768
	cfg.MSHRNumEntries = -1
	cfg.DirectMemLink = true
	return cfg
}

var _ = Describe("Controller", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(baseConfig())
		Expect(h.ctrl.RegisterPeer("cacheA", 64)).To(Succeed())
		Expect(h.ctrl.RegisterPeer("cacheB", 64)).To(Succeed())
	})

	Describe("parallel readers", func() {
		It("grants Shared to two caches reading the same line", func() {
			Expect(h.ctrl.OnEvent(newGetS(0x40, 64, "cacheA", "dir"))).To(Succeed())
			Expect(h.ctrl.OnEvent(newGetS(0x40, 64, "cacheB", "dir"))).To(Succeed())
			h.runTicks(6)
			respA := h.lastTo("cacheA")
			Expect(respA).NotTo(BeNil())
			Expect(respA.Cmd).To(Equal(event.GetSResp))
			Expect(respA.Granted).To(Equal(event.GrantShared))

			h.runTicks(6)
			respB := h.lastTo("cacheB")
			Expect(respB).NotTo(BeNil())
			Expect(respB.Cmd).To(Equal(event.GetSResp))
			Expect(respB.Granted).To(Equal(event.GrantShared))

			sharers := h.ctrl.SharerNames(0x40)
			sort.Strings(sharers)
			if diff := cmp.Diff([]string{"cacheA", "cacheB"}, sharers); diff != "" {
				Fail("unexpected sharer set (-want +got):\n" + diff)
			}
		})
	})

	Describe("invalidating write", func() {
		It("invalidates a sharer before granting Modified to a writer", func() {
			Expect(h.ctrl.OnEvent(newGetS(0x80, 64, "cacheA", "dir"))).To(Succeed())
			h.runTicks(6)
			Expect(h.lastTo("cacheA").Granted).To(Equal(event.GrantShared))

			Expect(h.ctrl.OnEvent(newGetX(0x80, 64, "cacheB", "dir"))).To(Succeed())
			h.runTicks(2)

			inv := h.lastTo("cacheA")
			Expect(inv).NotTo(BeNil())
			Expect(inv.Cmd).To(Equal(event.Inv))

			ack := &event.Event{Cmd: event.PutS, BaseAddr: 0x80, Addr: 0x80, Src: "cacheA", Dst: "dir"}
			Expect(h.ctrl.OnEvent(ack)).To(Succeed())
			h.runTicks(6)

			respB := h.lastTo("cacheB")
			Expect(respB).NotTo(BeNil())
			Expect(respB.Cmd).To(Equal(event.GetXResp))
			Expect(respB.Granted).To(Equal(event.GrantModified))
		})
	})

	Describe("NACK and retry", func() {
		It("NACKs a request once the MSHR is full and succeeds on retry", func() {
			cfg := baseConfig()
			cfg.MSHRNumEntries = 1
			h = newHarness(cfg)
			Expect(h.ctrl.RegisterPeer("cacheA", 64)).To(Succeed())
			Expect(h.ctrl.RegisterPeer("cacheB", 64)).To(Succeed())

			reqA := newGetS(0xC0, 64, "cacheA", "dir")
			Expect(h.ctrl.OnEvent(reqA)).To(Succeed())
			reqB := newGetS(0xC0, 64, "cacheB", "dir")
			Expect(h.ctrl.OnEvent(reqB)).To(Succeed())
			h.runTicks(2)

			nack := h.lastTo("cacheB")
			Expect(nack).NotTo(BeNil())
			Expect(nack.Cmd).To(Equal(event.NACK))

			h.runTicks(6)
			respA := h.lastTo("cacheA")
			Expect(respA.Cmd).To(Equal(event.GetSResp))

			retry := newGetS(0xC0, 64, "cacheB", "dir")
			Expect(h.ctrl.OnEvent(retry)).To(Succeed())
			h.runTicks(6)
			respB := h.lastTo("cacheB")
			Expect(respB.Cmd).To(Equal(event.GetSResp))
			Expect(respB.Granted).To(Equal(event.GrantShared))
		})
	})

	Describe("clean eviction racing a fetch", func() {
		It("restarts the stalled request with a fresh memory read when PutE races FetchInv", func() {
			Expect(h.ctrl.OnEvent(newGetX(0x140, 64, "cacheA", "dir"))).To(Succeed())
			h.runTicks(6)
			Expect(h.lastTo("cacheA").Granted).To(Equal(event.GrantModified))

			Expect(h.ctrl.OnEvent(newGetX(0x140, 64, "cacheB", "dir"))).To(Succeed())
			h.runTicks(2)
			fetch := h.lastTo("cacheA")
			Expect(fetch).NotTo(BeNil())
			Expect(fetch.Cmd).To(Equal(event.FetchInv))

			evict := &event.Event{Cmd: event.PutE, BaseAddr: 0x140, Addr: 0x140, Src: "cacheA", Dst: "dir"}
			Expect(h.ctrl.OnEvent(evict)).To(Succeed())
			h.runTicks(8)

			respB := h.lastTo("cacheB")
			Expect(respB).NotTo(BeNil())
			Expect(respB.Cmd).To(Equal(event.GetXResp))
			Expect(respB.Granted).To(Equal(event.GrantModified))
		})
	})

	Describe("directory-entry spill", func() {
		It("re-fetches a spilled entry from the backing store on its next access", func() {
			cfg := baseConfig()
			cfg.EntryCacheSize = 1
			h = newHarness(cfg)
			Expect(h.ctrl.RegisterPeer("cacheA", 64)).To(Succeed())

			Expect(h.ctrl.OnEvent(newGetS(0x200, 64, "cacheA", "dir"))).To(Succeed())
			h.runTicks(6)
			Expect(h.lastTo("cacheA").Granted).To(Equal(event.GrantShared))

			// A second block pushes 0x200 out of the one-entry cache.
			Expect(h.ctrl.OnEvent(newGetS(0x300, 64, "cacheA", "dir"))).To(Succeed())
			h.runTicks(8)
			Expect(h.lastTo("cacheA").Granted).To(Equal(event.GrantShared))
			Expect(h.ctrl.Stats.DirEntryReads).To(BeZero())

			Expect(h.ctrl.OnEvent(newGetS(0x200, 64, "cacheA", "dir"))).To(Succeed())
			h.runTicks(8)
			Expect(h.lastTo("cacheA").BaseAddr).To(Equal(uint64(0x200)))
			Expect(h.lastTo("cacheA").Granted).To(Equal(event.GrantShared))
			Expect(h.ctrl.Stats.DirEntryReads).To(Equal(uint64(1)))
		})
	})

	Describe("noncacheable traffic", func() {
		It("passes a noncacheable request straight through to memory", func() {
			req := &event.Event{
				Cmd: event.GetS, BaseAddr: 0x400, Addr: 0x400, Size: 4,
				Src: "cacheA", Dst: "dir", Flag: event.NonCacheable,
			}
			Expect(h.ctrl.OnEvent(req)).To(Succeed())
			h.runTicks(3)

			resp := h.lastTo("cacheA")
			Expect(resp).NotTo(BeNil())
			Expect(resp.Cmd).To(Equal(event.GetSResp))
			Expect(resp.Flag & event.NonCacheable).NotTo(BeZero())
		})
	})
})
