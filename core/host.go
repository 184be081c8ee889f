package core

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/Zuko09/kinetic/cmn/nlog"
	"github.com/Zuko09/kinetic/transport"
)

// Host is the execution container of spec.md §4.6: either a ThreadHost
// (one goroutine in the current process) or a ProcessHost (a spawned child
// process). xreg.Manager drives every registered layer through this
// interface: StartAll starts the hosts in registration order, and JoinAll
// joins them concurrently.
type Host interface {
	Start(stop *StopEvent) error
	Join() error
}

var (
	_ Host = (*ThreadHost)(nil)
	_ Host = (*ProcessHost)(nil)
)

// SetInitialize / SetShutdown wire the initialize()/shutdown() hooks of
// spec.md §3's lifecycle.
func (l *Layer) SetInitialize(f func()) { l.initFn = f }
func (l *Layer) SetShutdown(f func()) { l.shutdownFn = f }

// ThreadHost runs one layer in its own goroutine within the current
// process -- spec.md §4.6's thread host. xreg.Manager.AddThreadLayer and
// AddMultiOutputLayer construct one for the layer they register; layers run
// under a ProcessHost are registered with AddLayer instead.
type ThreadHost struct {
	layer *Layer
	wg    sync.WaitGroup
}

func NewThreadHost(l *Layer) *ThreadHost { return &ThreadHost{layer: l} }

func (h *ThreadHost) Start(stop *StopEvent) error {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		// A panicking layer must not hang its siblings forever: log it,
		// signal every other layer to unwind via the shared stop event,
		// then re-panic so the failure is still visible to the caller
		// (spec.md §7: user-callback errors are not caught by the core).
		defer func() {
			if r := recover(); r != nil {
				nlog.Errorf("layer %s: panic: %v", h.layer.Name, r)
				stop.Set()
				panic(r)
			}
		}()
		if h.layer.initFn != nil {
			h.layer.initFn()
		}
		h.layer.run(stop)
	}()
	return nil
}

func (h *ThreadHost) Join() error {
	h.wg.Wait()
	return nil
}

// --- process host -----------------------------------------------------
//
// spec.md §4.6's process host spawns a child OS process that itself hosts
// a main-loop layer plus a set of sub-thread layers. Go processes share no
// writable address space (true "spawn" semantics, never fork-with-copy),
// so the child cannot simply resume the parent's in-memory layer graph: it
// rebuilds its own graph via a small zero-argument factory registered
// ahead of time with RegisterProcessChild, and exchanges items with the
// parent over stdin/stdout using transport.Encoder/Decoder. This sidesteps
// the need to pickle/serialize Go closures (which Go cannot do), a
// deliberate deviation from the source's implicit-closure spawn.

const envChildName = "KINETIC_CHILD_NAME"

// ChildSpec is what a registered child factory returns: the host layer that
// runs the child's main processing loop, any sub-thread layers that share
// its stop event, and an optional main_thread_post_init hook.
type ChildSpec struct {
	Host               *Layer
	SubThreads         []*Layer
	MainThreadPostInit func()
}

// ChildFactory builds a ChildSpec inside the spawned child process. dec/enc
// are wired to the child's stdin/stdout so the host layer's Input/Output
// can be built as IPC-backed adapters (see IPCInput/IPCOutput below).
type ChildFactory func(dec *transport.Decoder, enc *transport.Encoder) *ChildSpec

var (
	childRegistryMu sync.Mutex
	childRegistry   = map[string]ChildFactory{}
)

// RegisterProcessChild registers a named child-process factory. Call this
// at package init time in the embedding application, once per distinct
// process-host layer, mirroring how a `multiprocessing.Process(target=...)`
// target must be importable at module scope under spawn semantics.
func RegisterProcessChild(name string, factory ChildFactory) {
	childRegistryMu.Lock()
	defer childRegistryMu.Unlock()
	childRegistry[name] = factory
}

// MaybeRunChild must be called first thing in the embedding application's
// main(), before any graph construction: if the process was spawned as a
// kinetic child, it runs the five-step child sequence of spec.md §4.6 and
// never returns (os.Exit when the run ends); otherwise it returns false
// immediately so normal parent-side main() continues.
func MaybeRunChild() bool {
	name := os.Getenv(envChildName)
	if name == "" {
		return false
	}
	childRegistryMu.Lock()
	factory := childRegistry[name]
	childRegistryMu.Unlock()
	if factory == nil {
		nlog.Errorf("process host: unknown child %q", name)
		os.Exit(1)
	}

	dec := transport.NewDecoder(os.Stdin, false)
	enc := transport.NewEncoder(os.Stdout, false)
	spec := factory(dec, enc)

	stop := NewStopEvent()

	// step 1: pre-create each sub-thread's worker (goroutines are cheap to
	// start directly; "pre-creation" here just means every sub-thread
	// layer object already exists, which the factory guarantees).
	// step 2: host layer initialize()
	if spec.Host.initFn != nil {
		spec.Host.initFn()
	}
	// step 3: host layer processing loop on one goroutine
	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		spec.Host.run(stop)
	}()
	// step 4: start every sub-thread layer, sharing the host's stop event
	var wg sync.WaitGroup
	for _, sl := range spec.SubThreads {
		wg.Add(1)
		go func(l *Layer) {
			defer wg.Done()
			if l.initFn != nil {
				l.initFn()
			}
			l.run(stop)
		}(sl)
	}
	// step 5: main_thread_post_init on the child's main "thread"
	if spec.MainThreadPostInit != nil {
		spec.MainThreadPostInit()
	}

	<-hostDone
	wg.Wait()
	os.Exit(0)
	return true // unreachable, satisfies the compiler
}

// ProcessHost is the parent-side handle to a spawned child: it owns the OS
// process and relays items between the parent-side ports it was built with
// and the child's stdin/stdout.
type ProcessHost struct {
	name      string
	childName string
	upstream  []*Queue // parent-side subscriber queues feeding the child, in key order
	out       *Port     // parent-side port downstream layers subscribe to
	compress  bool

	cmd *exec.Cmd
}

// NewProcessHost builds the parent-side handle. in is the (possibly empty)
// set of parent ports the child's host layer consumes; it must match, in
// order and cardinality, what the registered ChildFactory's own transform
// input expects to read off dec.
func NewProcessHost(name, childName string, in []*Port, compress bool) *ProcessHost {
	ph := &ProcessHost{name: name, childName: childName, out: NewPort(), compress: compress}
	for _, p := range in {
		ph.upstream = append(ph.upstream, p.Subscribe())
	}
	return ph
}

// OutputPort is the parent-side port downstream layers subscribe to.
func (ph *ProcessHost) OutputPort() *Port { return ph.out }

// Start spawns the child process and the goroutines relaying items across
// the pipe in both directions.
func (ph *ProcessHost) Start(stop *StopEvent) error {
	cmd := exec.Command(os.Args[0]) //nolint:gosec // re-exec of this same binary, args/env fully controlled
	cmd.Env = append(os.Environ(), envChildName+"="+ph.childName)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	ph.cmd = cmd

	enc := transport.NewEncoder(stdin, ph.compress)
	dec := transport.NewDecoder(stdout, ph.compress)

	for _, q := range ph.upstream {
		go relayToChild(q, enc, stop)
	}
	go relayFromChild(dec, ph.out)
	go func() {
		<-stop.Done()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()
	return nil
}

// Join waits for the child process to exit.
func (ph *ProcessHost) Join() error {
	if ph.cmd == nil {
		return nil
	}
	return ph.cmd.Wait()
}

func relayToChild(q *Queue, enc *transport.Encoder, stop *StopEvent) {
	for {
		item, ok := q.Take(stop.Context())
		if !ok {
			return
		}
		var kind int
		switch {
		case item.IsStop():
			kind = transport.KindStop
		case item.IsNone():
			kind = transport.KindNone
		default:
			kind = transport.KindData
		}
		if err := enc.Send(kind, item.Value); err != nil {
			nlog.Errorln("process host: relay to child:", err)
			return
		}
		if item.IsStop() {
			return
		}
	}
}

func relayFromChild(dec *transport.Decoder, out *Port) {
	for {
		kind, value, err := dec.Recv()
		if err != nil {
			return
		}
		switch kind {
		case transport.KindStop:
			out.Emit(STOP)
			return
		case transport.KindNone:
			// NONE is never forwarded (Port.Emit already no-ops on it)
		default:
			out.Emit(Data(value))
		}
	}
}

// IPCInput adapts a transport.Decoder into a Layer's Input, for use inside
// a spawned child's ChildFactory.
type IPCInput struct{ Dec *transport.Decoder }

func (i *IPCInput) GetInput(ctx context.Context, _ *Layer) Item {
	kind, value, err := i.Dec.Recv()
	if err != nil {
		return STOP
	}
	switch kind {
	case transport.KindStop:
		return STOP
	case transport.KindNone:
		return NONE
	default:
		return Data(value)
	}
}

// IPCOutput adapts a transport.Encoder into a Layer's Output.
type IPCOutput struct{ Enc *transport.Encoder }

func (o *IPCOutput) Default() *Port { return nil } // no in-child fan-out subscribers; parent owns that side

func (o *IPCOutput) Emit(item Item) {
	var kind int
	switch {
	case item.IsStop():
		kind = transport.KindStop
	case item.IsNone():
		return
	default:
		kind = transport.KindData
	}
	if err := o.Enc.Send(kind, item.Value); err != nil {
		nlog.Errorln("process host child: emit:", err)
	}
}
