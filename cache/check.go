package cache

import (
	"fmt"

	"github.com/IvanBrykalov/blockcache/internal/util"
)

// verify checks the structural invariants of the shard table. It locks
// every shard in index order; acquire never holds two shard locks at
// once, so this cannot deadlock. With quiescent set it also requires
// that no slot is referenced.
func (c *cache) verify(quiescent bool) error {
	for _, s := range c.shards {
		s.mu.Lock()
	}
	defer func() {
		for _, s := range c.shards {
			s.mu.Unlock()
		}
	}()

	if n := c.transit.Load(); n != 0 {
		return fmt.Errorf("%d slots between shards", n)
	}

	seen := make([]bool, len(c.slots))
	for _, s := range c.shards {
		assigned := 0
		for pos, sl := range s.members {
			switch {
			case seen[sl.id]:
				return fmt.Errorf("slot %d is a member of two shards", sl.id)
			case sl.home != s.idx || sl.pos != pos:
				return fmt.Errorf("slot %d: home/pos %d/%d, found in shard %d at %d", sl.id, sl.home, sl.pos, s.idx, pos)
			case sl.refs < 0:
				return fmt.Errorf("slot %d: negative refs %d", sl.id, sl.refs)
			case quiescent && sl.refs != 0:
				return fmt.Errorf("slot %d (%v): refs %d at quiescence", sl.id, sl.key, sl.refs)
			case !sl.assigned && sl.refs != 0:
				return fmt.Errorf("slot %d: referenced but unassigned", sl.id)
			}
			seen[sl.id] = true

			if !sl.assigned {
				continue
			}
			assigned++
			if got := s.m[sl.key]; got != sl {
				return fmt.Errorf("slot %d (%v): not indexed by its shard", sl.id, sl.key)
			}
			if want := util.ShardIndex(sl.key.Block, len(c.shards)); want != s.idx {
				return fmt.Errorf("slot %d (%v): lives in shard %d, want %d", sl.id, sl.key, s.idx, want)
			}
		}
		if assigned != len(s.m) {
			return fmt.Errorf("shard %d: %d assigned members, %d indexed", s.idx, assigned, len(s.m))
		}
	}
	for id, ok := range seen {
		if !ok {
			return fmt.Errorf("slot %d belongs to no shard", id)
		}
	}
	return nil
}
