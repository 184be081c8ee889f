package core

import (
	"sync"

	"github.com/Zuko09/kinetic/cmn/cos"
)

// MultiOutput is the dynamic-port-set Output of spec.md §4.2: a layer owns
// a declared table (registered explicitly via RegisterPort) and an auto
// table (created lazily on first unknown GetPort), and composes with the
// base single-output Port rather than replacing it.
type MultiOutput struct {
	mu       sync.Mutex
	declared map[string]*Port
	auto     map[string]*Port
	base     *Port
}

func newMultiOutput() *MultiOutput {
	return &MultiOutput{
		declared: make(map[string]*Port),
		auto:     make(map[string]*Port),
		base:     NewPort(),
	}
}

// RegisterPort declares a named output port up front. Fails with
// ErrDuplicatePort if called twice for the same name (spec.md §4.2).
func (m *MultiOutput) RegisterPort(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.declared[name]; ok {
		return &cos.ErrDuplicatePort{Name: name}
	}
	m.declared[name] = NewPort()
	return nil
}

// GetPort returns the port for name, auto-creating it on first use if it
// was never declared. NOTE: items emitted before a port's first GetPort
// call are lost -- the core does not buffer-until-first-subscribe (design
// notes' open question, resolved in DESIGN.md: document the loss).
func (m *MultiOutput) GetPort(name string) *Port {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.declared[name]; ok {
		return p
	}
	if p, ok := m.auto[name]; ok {
		return p
	}
	p := NewPort()
	m.auto[name] = p
	return p
}

// Default returns the layer's base single-output port, which always
// receives the whole mapping in addition to the per-key fan-out.
func (m *MultiOutput) Default() *Port { return m.base }

// Emit forwards a decoded mapping to every known (declared ∪ auto) port
// whose name is present in the mapping, then forwards the whole mapping on
// the base output port -- spec.md §4.2. STOP is broadcast to every known
// port plus the base port so per-port subscribers observe the terminal
// sentinel (invariant 4).
func (m *MultiOutput) Emit(item Item) {
	if item.IsStop() {
		m.mu.Lock()
		ports := make([]*Port, 0, len(m.declared)+len(m.auto)+1)
		for _, p := range m.declared {
			ports = append(ports, p)
		}
		for _, p := range m.auto {
			ports = append(ports, p)
		}
		m.mu.Unlock()
		for _, p := range ports {
			p.Emit(item)
		}
		m.base.Emit(item)
		return
	}

	mapping, ok := item.Value.(map[string]Item)
	if !ok {
		m.base.Emit(item)
		return
	}
	m.mu.Lock()
	names := make([]string, 0, len(m.declared)+len(m.auto))
	ports := make(map[string]*Port, len(m.declared)+len(m.auto))
	for n, p := range m.declared {
		names = append(names, n)
		ports[n] = p
	}
	for n, p := range m.auto {
		names = append(names, n)
		ports[n] = p
	}
	m.mu.Unlock()
	for _, n := range names {
		if v, present := mapping[n]; present {
			ports[n].Emit(v)
		}
	}
	m.base.Emit(item)
}

// MultiOutputLayer is a *Layer whose Output is a *MultiOutput; returned by
// NewMultiOutput so callers can reach GetPort/RegisterPort alongside the
// usual Layer lifecycle methods.
type MultiOutputLayer struct {
	*Layer
	mo *MultiOutput
}

// GetPort returns (auto-creating if needed) the named sub-port; downstream
// consumers call layer.GetPort(name).Subscribe().
func (l *MultiOutputLayer) GetPort(name string) *Port { return l.mo.GetPort(name) }

// RegisterPort declares an output port before the run starts.
func (l *MultiOutputLayer) RegisterPort(name string) error { return l.mo.RegisterPort(name) }

// AllPorts snapshots every port this layer currently owns (base, declared,
// and already-auto-created): used by xreg.Manager.AddMultiOutputLayer to
// freeze the full port set before the run starts, not just the default one.
func (l *MultiOutputLayer) AllPorts() []*Port {
	l.mo.mu.Lock()
	defer l.mo.mu.Unlock()
	ports := make([]*Port, 0, len(l.mo.declared)+len(l.mo.auto)+1)
	ports = append(ports, l.mo.base)
	for _, p := range l.mo.declared {
		ports = append(ports, p)
	}
	for _, p := range l.mo.auto {
		ports = append(ports, p)
	}
	return ports
}

// NewMultiOutput builds a multi-output layer: make_multi_output in
// spec.md §6. decode plays the role of both "decoder" and "transform" --
// its mapping result (or NONE) is what the base loop emits.
func NewMultiOutput(name string, in map[string]*Port, decode func(Item) map[string]Item, portNames ...string) (*MultiOutputLayer, error) {
	mo := newMultiOutput()
	for _, n := range portNames {
		if err := mo.RegisterPort(n); err != nil {
			return nil, err
		}
	}
	ti := newTransformInput(in)
	l := newLayer(name, ti, mo)
	l.SetTransform(func(item Item) Item {
		m := decode(item)
		if m == nil {
			return NONE
		}
		return Data(m)
	})
	return &MultiOutputLayer{Layer: l, mo: mo}, nil
}
