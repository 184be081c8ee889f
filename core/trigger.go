package core

import (
	"context"
	"time"
)

// Policy decides, for a tick, which sub-items a transform layer's
// get_input delivers to transform -- spec.md §4.5.
type Policy interface {
	// Pull returns the per-key items for one tick. keys is the transform's
	// key-ordered input list; in maps every key to its subscriber queue.
	// A nil return (possible only if ctx is canceled mid-pull) signals the
	// layer should treat this tick as STOP.
	Pull(ctx context.Context, keys []string, in map[string]*Queue, discardOld bool) map[string]Item
}

// Slowest is the default policy: block on every key in order, keeping only
// the latest value per key when discardOld is set.
type Slowest struct{}

func (Slowest) Pull(ctx context.Context, keys []string, in map[string]*Queue, discardOld bool) map[string]Item {
	out := make(map[string]Item, len(keys))
	for _, k := range keys {
		it, ok := in[k].Take(ctx)
		if !ok {
			return nil
		}
		if discardOld {
			if last, found := in[k].DrainLast(); found {
				it = last
			}
		}
		out[k] = it
	}
	return out
}

// Fastest polls every key with an exponential backoff, capped per design
// notes §9 ("implementations should cap the sleep... to bound shutdown
// latency"), and returns as soon as any single key yields a value -- only
// that key is present in the result.
type Fastest struct {
	// MaxBackoff caps the exponential sleep; defaults to 100ms (design
	// notes' suggested cap) when zero.
	MaxBackoff time.Duration
}

const (
	fastestInitialBackoff = time.Millisecond
	fastestDefaultCap     = 100 * time.Millisecond
)

func (f Fastest) Pull(ctx context.Context, keys []string, in map[string]*Queue, _ bool) map[string]Item {
	backoffCap := f.MaxBackoff
	if backoffCap <= 0 {
		backoffCap = fastestDefaultCap
	}
	sleep := fastestInitialBackoff
	for {
		for _, k := range keys {
			if it, ok := in[k].TryTake(); ok {
				return map[string]Item{k: it}
			}
		}
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-doneOf(ctx):
			t.Stop()
			return nil
		}
		sleep *= 2
		if sleep > backoffCap {
			sleep = backoffCap
		}
	}
}

// LayerPolicy blocks on exactly one designated key (Key) and
// opportunistically, non-blockingly, drains every other key -- keeping the
// first available value when discardOld is false, or the most recent one
// when true. (Named LayerPolicy, not Layer, to avoid colliding with the
// runtime's Layer type.)
type LayerPolicy struct {
	Key string
}

func (l LayerPolicy) Pull(ctx context.Context, keys []string, in map[string]*Queue, discardOld bool) map[string]Item {
	out := make(map[string]Item, len(keys))
	it, ok := in[l.Key].Take(ctx)
	if !ok {
		return nil
	}
	out[l.Key] = it
	for _, k := range keys {
		if k == l.Key {
			continue
		}
		if discardOld {
			if v, found := in[k].DrainLast(); found {
				out[k] = v
			}
		} else if v, found := in[k].DrainFirst(); found {
			out[k] = v
		}
	}
	return out
}

// Timer sleeps Interval, then non-blockingly drains every key -- same
// keep-first/keep-latest rule as LayerPolicy, but with no designated
// blocking key.
type Timer struct {
	Interval time.Duration
}

func (tm Timer) Pull(ctx context.Context, keys []string, in map[string]*Queue, discardOld bool) map[string]Item {
	t := time.NewTimer(tm.Interval)
	select {
	case <-t.C:
	case <-doneOf(ctx):
		t.Stop()
		return nil
	}
	out := make(map[string]Item, len(keys))
	for _, k := range keys {
		if discardOld {
			if v, found := in[k].DrainLast(); found {
				out[k] = v
			}
		} else if v, found := in[k].DrainFirst(); found {
			out[k] = v
		}
	}
	return out
}

func doneOf(ctx context.Context) <-chan struct{} {
	if ctx == nil {
		return nil
	}
	return ctx.Done()
}
