package clickhouse

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// signatureLocks serializes work per signature within one process. ClickHouse
// has no unique constraint, so concurrent check-then-insert calls for the same
// signature must not interleave.
type signatureLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *signatureLocks) stripe(signature string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(signature))
	return int(h.Sum32() % lockStripes)
}

// lock acquires the stripe owning signature and returns its unlock func.
func (l *signatureLocks) lock(signature string) func() {
	mu := &l.stripes[l.stripe(signature)]
	mu.Lock()
	return mu.Unlock
}
