package peercache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/peercache"
)

func TestPeerCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PeerCache Suite")
}

var _ = Describe("Cache", func() {
	var (
		c        *peercache.Cache
		toDir    []*event.Event
		complete []struct {
			id  event.ID
			res peercache.AccessResult
		}
	)

	BeforeEach(func() {
		toDir = nil
		complete = nil
		cfg := peercache.DefaultConfig("cacheA", "dir")
		cfg.Size = 4 * 1024
		cfg.Associativity = 4
		cfg.BlockSize = 64

		c = peercache.New(cfg, peercache.Collaborators{
			SendToDirectory: func(ev *event.Event) { toDir = append(toDir, ev) },
			OnComplete: func(id event.ID, res peercache.AccessResult) {
				complete = append(complete, struct {
					id  event.ID
					res peercache.AccessResult
				}{id, res})
			},
		})
	})

	lastSent := func() *event.Event {
		if len(toDir) == 0 {
			return nil
		}
		return toDir[len(toDir)-1]
	}

	Describe("Read", func() {
		It("misses on a cold line and issues a GetS", func() {
			result, hit := c.Read(0x1000, 8)
			Expect(hit).To(BeFalse())
			Expect(result.Hit).To(BeFalse())

			sent := lastSent()
			Expect(sent).NotTo(BeNil())
			Expect(sent.Cmd).To(Equal(event.GetS))
			Expect(sent.BaseAddr).To(Equal(uint64(0x1000)))
		})

		It("does not reissue a GetS while the miss is already in flight", func() {
			c.Read(0x1000, 8)
			n := len(toDir)
			c.Read(0x1000, 8)
			Expect(toDir).To(HaveLen(n))
		})

		It("hits after the directory grants Shared", func() {
			c.Read(0x1000, 8)
			sent := lastSent()

			resp := sent.MakeResponse(event.GrantShared)
			resp.Payload = make([]byte, 64)
			resp.Payload[0] = 0xEF
			resp.Payload[1] = 0xBE
			resp.Payload[2] = 0xAD
			resp.Payload[3] = 0xDE
			Expect(c.OnEvent(resp)).To(Succeed())

			Expect(complete).To(HaveLen(1))
			Expect(complete[0].res.Data).To(Equal(uint64(0xDEADBEEF)))

			result, hit := c.Read(0x1000, 8)
			Expect(hit).To(BeTrue())
			Expect(result.Hit).To(BeTrue())
			Expect(result.Data).To(Equal(uint64(0xDEADBEEF)))
		})
	})

	Describe("Write", func() {
		It("misses on a cold line and issues a GetX", func() {
			_, hit := c.Write(0x2000, 4, 0x12345678)
			Expect(hit).To(BeFalse())

			sent := lastSent()
			Expect(sent).NotTo(BeNil())
			Expect(sent.Cmd).To(Equal(event.GetX))
		})

		It("applies the pending write once Modified is granted", func() {
			c.Write(0x2000, 4, 0x12345678)
			sent := lastSent()

			resp := sent.MakeResponse(event.GrantModified)
			resp.Payload = make([]byte, 64)
			Expect(c.OnEvent(resp)).To(Succeed())

			Expect(complete).To(HaveLen(1))
			Expect(complete[0].res.Data).To(Equal(uint64(0x12345678)))
		})

		It("hits immediately on an already-Modified line", func() {
			c.Write(0x2000, 4, 0x11111111)
			resp := lastSent().MakeResponse(event.GrantModified)
			resp.Payload = make([]byte, 64)
			c.OnEvent(resp)

			result, hit := c.Write(0x2000, 4, 0x22222222)
			Expect(hit).To(BeTrue())
			Expect(result.Hit).To(BeTrue())
		})
	})

	Describe("coherence downgrades", func() {
		It("acknowledges an Inv with PutS and drops the line", func() {
			c.Read(0x3000, 8)
			resp := lastSent().MakeResponse(event.GrantShared)
			resp.Payload = make([]byte, 64)
			c.OnEvent(resp)

			inv := &event.Event{Cmd: event.Inv, BaseAddr: 0x3000, Addr: 0x3000, Flag: event.AckNeeded}
			Expect(c.OnEvent(inv)).To(Succeed())

			sent := lastSent()
			Expect(sent.Cmd).To(Equal(event.PutS))
			Expect(c.Stats().Invalidated).To(Equal(uint64(1)))
		})

		It("answers FetchInv on a dirty line with PutM", func() {
			c.Write(0x4000, 4, 0xAAAAAAAA)
			resp := lastSent().MakeResponse(event.GrantModified)
			resp.Payload = make([]byte, 64)
			c.OnEvent(resp)

			fetch := &event.Event{Cmd: event.FetchInv, BaseAddr: 0x4000, Addr: 0x4000}
			Expect(c.OnEvent(fetch)).To(Succeed())

			sent := lastSent()
			Expect(sent.Cmd).To(Equal(event.PutM))
		})

		It("answers FetchInvX on a dirty line with PutX and keeps the data Shared", func() {
			c.Write(0x5000, 4, 0xBBBBBBBB)
			resp := lastSent().MakeResponse(event.GrantModified)
			resp.Payload = make([]byte, 64)
			c.OnEvent(resp)

			fetch := &event.Event{Cmd: event.FetchInvX, BaseAddr: 0x5000, Addr: 0x5000}
			Expect(c.OnEvent(fetch)).To(Succeed())

			sent := lastSent()
			Expect(sent.Cmd).To(Equal(event.PutX))
			Expect(c.Stats().Downgraded).To(Equal(uint64(1)))

			result, hit := c.Read(0x5000, 4)
			Expect(hit).To(BeTrue())
			Expect(result.Hit).To(BeTrue())
		})
	})

	Describe("NACK retry", func() {
		It("resends the original request unchanged", func() {
			c.Read(0x6000, 8)
			orig := lastSent()

			nack := orig.MakeNACK()
			Expect(c.OnEvent(nack)).To(Succeed())

			sent := lastSent()
			Expect(sent).To(Equal(orig))
		})
	})
})
