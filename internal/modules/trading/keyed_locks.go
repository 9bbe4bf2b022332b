package trading

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the number of independent mutexes. Orders for different
// (holder, symbol) pairs almost always land on different stripes and proceed
// in parallel; orders for the same pair always land on the same stripe and
// are serialized.
const lockStripes = 64

// keyedLocks provides per-(holder, symbol) mutual exclusion via a fixed set
// of striped mutexes keyed by an FNV-1a hash. A stripe collision between two
// unrelated pairs costs a little parallelism, never correctness.
type keyedLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{}
}

// Lock acquires the stripe for (holderID, symbol) and returns its unlock func
func (l *keyedLocks) Lock(holderID, symbol string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(holderID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(symbol))

	stripe := &l.stripes[h.Sum32()%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}
