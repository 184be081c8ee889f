package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Zuko09/kinetic/cmn/cos"
	"github.com/Zuko09/kinetic/cmn/debug"
	"github.com/Zuko09/kinetic/cmn/mono"
	"github.com/Zuko09/kinetic/cmn/nlog"
)

// Input is the role-specific half of a layer that produces items for the
// processing loop: a producer synthesizes from nothing, a transform pulls
// from its input edges under a trigger policy.
type Input interface {
	GetInput(ctx context.Context, l *Layer) Item
}

// Output is the role-specific half that forwards a tick's result downstream.
type Output interface {
	Emit(item Item)
	Default() *Port
}

// Layer is the common lifecycle, processing loop, and FPS/signal bookkeeping
// shared by every role -- spec.md §3/§4.3. Producer, Transform, and
// MultiOutput roles compose a *Layer by embedding it rather than through the
// source's multiple inheritance (design notes §9).
type Layer struct {
	Name string
	ID   string

	in  Input
	out Output

	transformFn func(Item) Item
	initFn      func()
	shutdownFn  func()

	counter atomic.Int64
	isFirst atomic.Bool

	signalIn *Queue
	onSignal func(Item)
	onInit   func(Item)

	timeWindow time.Duration
	startTime  int64
	count      int64
	fps        float64
	printFPS   bool

	stopEvent *StopEvent
	done      chan struct{}
}

// StopEvent is the single shared cancellation signal of spec.md §5: any
// layer may set it via Stop(), and every layer observes it on its next loop
// iteration.
type StopEvent struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewStopEvent() *StopEvent {
	ctx, cancel := context.WithCancel(context.Background())
	return &StopEvent{ctx: ctx, cancel: cancel}
}

func (s *StopEvent) Set() { s.cancel() }
func (s *StopEvent) IsSet() bool { return s.ctx.Err() != nil }
func (s *StopEvent) Done() <-chan struct{} { return s.ctx.Done() }
func (s *StopEvent) Context() context.Context { return s.ctx }

// NewRaw builds a Layer directly from an Input/Output pair, for roles the
// built-in constructors don't cover -- e.g. a process-host child's IPC-backed
// host layer (see core.IPCInput / core.IPCOutput).
func NewRaw(name string, in Input, out Output) *Layer { return newLayer(name, in, out) }

// newLayer builds the shared base; role constructors (NewGenerator,
// NewTransform, NewMultiOutput, ...) call this and wire in/out.
func newLayer(name string, in Input, out Output) *Layer {
	debug.Assert(in != nil, "layer ", name, ": nil Input")
	debug.Assert(out != nil, "layer ", name, ": nil Output")
	l := &Layer{
		Name:       name,
		ID:         cos.GenLayerID(),
		in:         in,
		out:        out,
		timeWindow: 5 * time.Second,
		done:       make(chan struct{}),
	}
	l.isFirst.Store(true)
	l.resetFPS()
	return l
}

// Counter returns the monotonically increasing tick count (invariant 6).
func (l *Layer) Counter() int64 { return l.counter.Load() }

// FPS returns the most recently computed ticks-per-second over TimeWindow.
func (l *Layer) FPS() float64 { return l.fps }

// SetTimeWindow overrides the default 5s FPS accounting window.
func (l *Layer) SetTimeWindow(d time.Duration) { l.timeWindow = d }

// SetPrintFPS toggles logging the computed FPS via nlog each time the
// window rolls over (the embedding application's fps-printing collaborator,
// out of core scope per spec.md §1, but this hook is the seam it attaches
// to).
func (l *Layer) SetPrintFPS(v bool) { l.printFPS = v }

// SignalIn attaches an out-of-band control queue; drained non-blockingly
// every tick (spec.md §4.3 step 4).
func (l *Layer) SignalIn(q *Queue) { l.signalIn = q }

// OnSignal registers the handler invoked for each drained signal.
func (l *Layer) OnSignal(f func(Item)) { l.onSignal = f }

// OnInit registers the post_init hook, run at most once with the first
// non-NONE item the layer receives (invariant 5).
func (l *Layer) OnInit(f func(Item)) { l.onInit = f }

// OutputPort exposes the layer's default output port for Subscribe calls
// during graph construction.
func (l *Layer) OutputPort() *Port { return l.out.Default() }

// Done closes once the processing loop has exited and shutdown() has run.
func (l *Layer) Done() <-chan struct{} { return l.done }

// run is the processing loop of spec.md §4.3, shared by every Host.
func (l *Layer) run(stop *StopEvent) {
	l.stopEvent = stop
	defer close(l.done)
	defer func() {
		l.out.Emit(STOP)
		l.shutdown()
	}()

	for {
		if stop.IsSet() {
			return
		}
		item := l.in.GetInput(stop.Context(), l)

		if item.IsStop() {
			stop.Set()
			continue
		}
		if item.IsNone() {
			continue
		}

		l.drainSignals()

		if l.isFirst.Load() {
			if l.onInit != nil {
				l.onInit(item)
			}
			l.isFirst.Store(false)
		}

		result := l.applyTransform(item)
		if result.IsNone() {
			continue
		}

		l.out.Emit(result)
		l.tick()
		if result.IsStop() {
			stop.Set()
		}
		l.counter.Add(1)
	}
}

// applyTransform calls the user transform, if one was wired in via
// SetTransform; the default passthrough matches pyrealtime's
// BaseLayer.transform (identity) for producer roles that never set one.
func (l *Layer) applyTransform(item Item) Item {
	if l.transformFn == nil {
		return item
	}
	return l.transformFn(item)
}

// SetTransform wires the user-supplied transform callback (spec.md §6's
// `transform(item_or_map) -> Item | NONE | STOP`). Role constructors
// (NewTransform, NewMultiOutput) call this; it is not part of the public
// producer API.
func (l *Layer) SetTransform(f func(Item) Item) { l.transformFn = f }

func (l *Layer) drainSignals() {
	if l.signalIn == nil {
		return
	}
	for {
		sig, ok := l.signalIn.TryTake()
		if !ok {
			return
		}
		if l.onSignal != nil {
			l.onSignal(sig)
		}
	}
}

func (l *Layer) shutdown() {
	if l.shutdownFn != nil {
		l.shutdownFn()
	}
}

func (l *Layer) tick() {
	l.count++
	now := mono.NanoTime()
	if time.Duration(now-l.startTime) >= l.timeWindow {
		elapsed := time.Duration(now - l.startTime).Seconds()
		if elapsed > 0 {
			l.fps = float64(l.count) / elapsed
		}
		if l.printFPS {
			nlog.Infof("%s[%s] fps=%.2f", l.Name, l.ID, l.fps)
		}
		l.resetFPS()
	}
}

func (l *Layer) resetFPS() {
	l.count = 0
	l.startTime = mono.NanoTime()
}
