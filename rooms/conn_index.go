package rooms

import (
	"sort"

	isync "github.com/wqfan/roomrelay/internal/sync"
)

// connIndex is the reverse index from connection ID to the set of room keys
// the connection currently participates in. It is mutated only by the
// coordinator, in lock-step with room membership changes.
type connIndex struct {
	conns *isync.Map[string, map[string]struct{}]
}

func newConnIndex() *connIndex {
	return &connIndex{
		conns: isync.NewMap[string, map[string]struct{}](),
	}
}

func (x *connIndex) track(connID, roomKey string) {
	x.conns.WithLock(func(view isync.View[string, map[string]struct{}]) {
		keys, ok := view.Get(connID)
		if !ok {
			keys = make(map[string]struct{})
			view.Set(connID, keys)
		}
		keys[roomKey] = struct{}{}
	})
}

func (x *connIndex) untrack(connID, roomKey string) {
	x.conns.WithLock(func(view isync.View[string, map[string]struct{}]) {
		keys, ok := view.Get(connID)
		if !ok {
			return
		}
		delete(keys, roomKey)
		if len(keys) == 0 {
			view.Delete(connID)
		}
	})
}

// roomsOf returns a sorted snapshot of the rooms the connection is in.
// Unknown connections yield an empty slice, never an error.
func (x *connIndex) roomsOf(connID string) []string {
	var out []string
	x.conns.WithLock(func(view isync.View[string, map[string]struct{}]) {
		keys, ok := view.Get(connID)
		if !ok {
			return
		}
		out = make([]string, 0, len(keys))
		for key := range keys {
			out = append(out, key)
		}
	})
	sort.Strings(out)
	return out
}

func (x *connIndex) forget(connID string) {
	x.conns.Delete(connID)
}
