package core

import (
	"context"
	"time"
)

// generatorInput is the rate-limited generator of spec.md §4.4: sleeps
// 1/rate seconds, calls generate(counter), and returns the result; the
// layer's own processing loop does the tick()/counter bookkeeping on a
// non-NONE result (step 9/10 of §4.3), so get_input never ticks itself.
// Ported from original_source/pyrealtime/input_layers.py's InputLayer.
type generatorInput struct {
	generate func(counter int64) Item
	period   time.Duration
}

func (g *generatorInput) GetInput(ctx context.Context, l *Layer) Item {
	sleepCtx(ctx, g.period)
	return g.generate(l.Counter())
}

// NewGenerator builds a rate-limited producer layer: make_producer in
// spec.md §6.
func NewGenerator(name string, generate func(counter int64) Item, rate float64) *Layer {
	in := &generatorInput{generate: generate, period: periodOf(rate)}
	l := newLayer(name, in, NewSingleOutput())
	return l
}

// oneShotInput fires once with the stored value, then NONE forever after ~1s
// sleeps (original_source's OneShotInputLayer).
type oneShotInput struct {
	value Item
}

func (o *oneShotInput) GetInput(ctx context.Context, l *Layer) Item {
	if l.Counter() == 0 {
		return o.value
	}
	sleepCtx(ctx, time.Second)
	return NONE
}

// NewOneShot builds a producer that emits value exactly once: make_one_shot
// in spec.md §6.
func NewOneShot(name string, value Item) *Layer {
	return newLayer(name, &oneShotInput{value: value}, NewSingleOutput())
}

// MultiShotFinishValue is the domain sentinel multi-shot emits as its final
// ("finish") fire -- opaque to the core, per spec.md §6.
var MultiShotFinishValue = Data(-1)

// multiShotInput fires exactly numShots times (plus one "finish" fire when
// requested), per spec.md §4.4 and original_source's MultipleShotInputLayer.
// It keeps its own call counter: the layer's Counter() only advances on
// non-NONE emissions, so it would stall on the completion call and never
// reach the expired phase.
type multiShotInput struct {
	generate   func(counter int64) Item
	period     time.Duration
	numShots   int // already adjusted by +1 when finish is set, matching the source
	calls      int64
	onComplete func()
	finish     bool
	expired    bool
}

func (m *multiShotInput) GetInput(ctx context.Context, _ *Layer) Item {
	c := m.calls
	m.calls++
	switch {
	case c < int64(m.numShots-1):
		sleepCtx(ctx, m.period)
		return m.generate(c)
	case c == int64(m.numShots-1):
		sleepCtx(ctx, m.period)
		if m.onComplete != nil {
			m.onComplete()
		}
		if m.finish {
			return MultiShotFinishValue
		}
		return NONE
	default:
		if !m.expired {
			m.expired = true
		}
		sleepCtx(ctx, m.period)
		return NONE
	}
}

// Expired reports whether the first call after the last shot has occurred
// (observable to tests, per spec.md §4.4).
func (m *multiShotInput) Expired() bool { return m.expired }

// NewMultiShot builds a producer that fires exactly numShots times (plus one
// "-1" finish fire when finish is true): make_multi_shot in spec.md §6. The
// returned *MultiShot wraps the Layer and exposes Expired() for tests.
type MultiShot struct {
	*Layer
	input *multiShotInput
}

func (m *MultiShot) Expired() bool { return m.input.Expired() }

func NewMultiShot(name string, numShots int, onComplete func(), generate func(counter int64) Item, rate float64, finish bool) *MultiShot {
	n := numShots
	if finish {
		n = numShots + 1
	}
	in := &multiShotInput{
		generate:   generate,
		period:     periodOf(rate),
		numShots:   n,
		onComplete: onComplete,
		finish:     finish,
	}
	l := newLayer(name, in, NewSingleOutput())
	return &MultiShot{Layer: l, input: in}
}

func periodOf(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

// sleepCtx sleeps for d or returns early if ctx is canceled, so producers
// unwind promptly on stop rather than finishing out a long sleep.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-doneOf(ctx):
	}
}
