package core

import (
	"sync"
	ratomic "sync/atomic"
)

// Port is the fan-out hub of spec.md §4.1: it owns N subscriber queues and
// duplicates each emitted item to every one of them, the same shape as
// transport/bundle's Streams fanning one Send out to a bundle of
// per-destination streams -- only here every "destination" is a same-process
// subscriber queue rather than a remote node.
type Port struct {
	subs   ratomic.Pointer[[]*Queue]
	buildM sync.Mutex // serializes concurrent Subscribe calls during graph construction
	frozen ratomic.Bool
}

// NewPort returns an empty fan-out hub.
func NewPort() *Port {
	p := &Port{}
	empty := make([]*Queue, 0)
	p.subs.Store(&empty)
	return p
}

// Subscribe allocates and appends a fresh subscriber queue. Must be called
// during graph construction, before the owning layer's Host is started --
// per design notes §9 the subscriber set is treated as frozen once the run
// starts (Freeze), resolving the "open question" of unsynchronized mutation.
func (p *Port) Subscribe() *Queue {
	p.buildM.Lock()
	defer p.buildM.Unlock()
	if p.frozen.Load() {
		panic("core: Subscribe called on a Port after the run started")
	}
	q := NewQueue()
	old := *p.subs.Load()
	next := make([]*Queue, len(old)+1)
	copy(next, old)
	next[len(old)] = q
	p.subs.Store(&next)
	return q
}

// Freeze marks the port's subscriber set closed for further Subscribe calls.
// xreg.Manager.StartAll calls Freeze on every port before starting any host,
// establishing the happens-before spec.md §5 requires between subscriber
// registration and the owning layer's first Emit.
func (p *Port) Freeze() { p.frozen.Store(true) }

// Emit fans item out to every subscriber. NONE is dropped (a no-op per
// spec.md §4.1); STOP is forwarded like any other item and, per invariant 4,
// must be the last thing this Port ever emits.
func (p *Port) Emit(item Item) {
	if item.IsNone() {
		return
	}
	subs := *p.subs.Load()
	for _, q := range subs {
		q.Put(item)
	}
}

// NumSubscribers reports the current subscriber count; diagnostics only.
func (p *Port) NumSubscribers() int { return len(*p.subs.Load()) }
