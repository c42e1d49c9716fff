// Command dirsim drives a small directory-based coherence simulation:
// a handful of sibling caches issuing loads and stores against one or
// more directory controller shards, each backed by its own memory.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/dirctrl/directory"
	"github.com/sarchlab/dirctrl/directory/event"
	"github.com/sarchlab/dirctrl/memsim"
	"github.com/sarchlab/dirctrl/peercache"
)

var (
	cycles        = flag.Uint64("cycles", 64, "Number of cycles to simulate")
	cachesPerNode = flag.Int("caches", 2, "Number of sibling caches per directory shard")
	configPath    = flag.String("config", "", "Path to directory configuration JSON file")
	verbose       = flag.Bool("v", false, "Verbose output")
)

// shard is one directory controller, its backing memory, and its
// sibling caches -- everything spec.md §5 guarantees shares no mutable
// state with any other shard.
type shard struct {
	name   string
	ctrl   *directory.Controller
	mem    *memsim.Memory
	caches []*peercache.Cache
	nanos  uint64
}

func buildShard(name string, rangeStart, rangeEnd uint64, numCaches int) (*shard, error) {
	dirCfg := directory.DefaultConfig()
	if *configPath != "" {
		loaded, err := directory.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("shard %s: %w", name, err)
		}
		dirCfg = loaded
	}
	dirCfg.AddrRangeStart = rangeStart
	dirCfg.AddrRangeEnd = rangeEnd

	s := &shard{name: name, mem: memsim.New(*memsim.DefaultConfig())}

	cachesByName := make(map[string]*peercache.Cache)
	collab := directory.Collaborators{
		SendNet: func(ev *event.Event) {
			if c, ok := cachesByName[ev.Dst]; ok {
				if err := c.OnEvent(ev); err != nil && *verbose {
					fmt.Fprintf(os.Stderr, "%s: cache %s: %v\n", name, ev.Dst, err)
				}
			}
		},
		SendMem: func(ev *event.Event) {
			if resp := s.mem.HandleEvent(ev); resp != nil {
				if err := s.ctrl.OnEvent(resp); err != nil && *verbose {
					fmt.Fprintf(os.Stderr, "%s: memory response: %v\n", name, err)
				}
			}
		},
		NowNanos: func() uint64 { return s.nanos },
	}

	ctrl, err := directory.New(dirCfg, collab)
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", name, err)
	}
	s.ctrl = ctrl

	dirName := name + "-dir"
	for i := 0; i < numCaches; i++ {
		cacheName := fmt.Sprintf("%s-cache%d", name, i)
		cacheCfg := peercache.DefaultConfig(cacheName, dirName)
		cacheCfg.BlockSize = dirCfg.CacheLineSize

		c := peercache.New(cacheCfg, peercache.Collaborators{
			SendToDirectory: func(ev *event.Event) {
				if err := s.ctrl.OnEvent(ev); err != nil && *verbose {
					fmt.Fprintf(os.Stderr, "%s: directory: %v\n", name, err)
				}
			},
			OnComplete: func(reqID event.ID, result peercache.AccessResult) {
				if *verbose {
					fmt.Printf("%s: %s completed: data=0x%x\n", name, cacheName, result.Data)
				}
			},
		})
		if err := s.ctrl.RegisterPeer(cacheName, cacheCfg.BlockSize); err != nil {
			return nil, fmt.Errorf("shard %s: %w", name, err)
		}
		cachesByName[cacheName] = c
		s.caches = append(s.caches, c)
	}

	return s, nil
}

func (s *shard) tick(cycle uint64) error {
	s.nanos = cycle
	return s.ctrl.Tick(cycle)
}

func main() {
	flag.Parse()

	const shardRange = 1 << 20
	shards := make([]*shard, 0, 2)
	for i, name := range []string{"shard0", "shard1"} {
		start := uint64(i) * shardRange
		s, err := buildShard(name, start, start+shardRange, *cachesPerNode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building %s: %v\n", name, err)
			os.Exit(1)
		}
		shards = append(shards, s)
	}

	// Scripted traffic: two caches in shard0 both read the same line
	// (should converge to Shared), then the first writes it (should
	// invalidate the second).
	if len(shards[0].caches) >= 2 {
		shards[0].caches[0].Read(0x100, 8)
		shards[0].caches[1].Read(0x100, 8)
	}

	for cycle := uint64(0); cycle < *cycles; cycle++ {
		var g errgroup.Group
		for _, s := range shards {
			s := s
			g.Go(func() error { return s.tick(cycle) })
		}
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Error at cycle %d: %v\n", cycle, err)
			os.Exit(1)
		}
		if cycle == 4 && len(shards[0].caches) >= 2 {
			shards[0].caches[0].Write(0x100, 8, 0xdeadbeef)
		}
	}

	for _, s := range shards {
		fmt.Printf("%s: requests processed=%d avg latency=%d cycles\n",
			s.name, s.ctrl.Stats.ReqsProcessed, s.ctrl.Stats.AvgRequestLatency())
		for i, c := range s.caches {
			st := c.Stats()
			fmt.Printf("  cache%d: hits=%d misses=%d invalidated=%d\n", i, st.Hits, st.Misses, st.Invalidated)
		}
	}
}
