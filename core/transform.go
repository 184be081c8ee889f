package core

import (
	"context"
	"sort"
)

// Input ports: a transform layer holds a key-ordered list of upstream ports
// it subscribes to, per spec.md §3 ("a mapping from key to subscriber
// queue"). Single builds the common single-input case; Keyed builds a
// multi-input edge set.
func Single(p *Port) map[string]*Port { return map[string]*Port{"default": p} }

func Keyed(ports map[string]*Port) map[string]*Port { return ports }

// TransformOption configures a transform layer's trigger policy.
type TransformOption func(*transformInput)

// WithTrigger overrides the default SLOWEST policy.
func WithTrigger(p Policy) TransformOption {
	return func(t *transformInput) { t.policy = p }
}

// WithDiscardOld sets discard_old (spec.md §3/§4.5).
func WithDiscardOld(v bool) TransformOption {
	return func(t *transformInput) { t.discardOld = v }
}

// transformInput is the Input half of a transform role: it subscribes to
// every named upstream port at construction time and pulls a tick's worth
// of data under a Policy -- spec.md §4.5.
type transformInput struct {
	keys       []string
	queues     map[string]*Queue
	policy     Policy
	discardOld bool
}

func newTransformInput(in map[string]*Port, opts ...TransformOption) *transformInput {
	if len(in) == 0 {
		panic("core: transform layer requires at least one input port")
	}
	t := &transformInput{
		queues: make(map[string]*Queue, len(in)),
		policy: Slowest{},
	}
	// deterministic key order regardless of map iteration, "default" first
	// if present, matching original_source's self.keys append order for the
	// common single-input case; the remaining keys follow in sorted order.
	if p, ok := in["default"]; ok {
		t.keys = append(t.keys, "default")
		t.queues["default"] = p.Subscribe()
	}
	others := make([]string, 0, len(in))
	for k := range in {
		if k != "default" {
			others = append(others, k)
		}
	}
	sort.Strings(others)
	for _, k := range others {
		t.keys = append(t.keys, k)
		t.queues[k] = in[k].Subscribe()
	}
	for _, opt := range opts {
		opt(t)
	}
	if lp, ok := t.policy.(LayerPolicy); ok {
		if _, present := t.queues[lp.Key]; !present {
			panic("core: LayerPolicy key " + lp.Key + " is not one of this transform's input keys")
		}
	}
	return t
}

func (t *transformInput) GetInput(ctx context.Context, _ *Layer) Item {
	data := t.policy.Pull(ctx, t.keys, t.queues, t.discardOld)
	if data == nil {
		// ctx (stop event) fired while blocked mid-pull -- the documented
		// wake-on-stop deviation of design notes §9.
		return STOP
	}
	if len(t.keys) == 1 && t.keys[0] == "default" {
		if it, ok := data["default"]; ok {
			return it
		}
		return NONE
	}
	return Data(data)
}

// NewTransform builds a transform layer: make_transform in spec.md §6.
// transform receives either the raw upstream Item (single "default" input)
// or a map[string]Item (multi-input), per the unwrapping rule of §4.5.
func NewTransform(name string, in map[string]*Port, transform func(Item) Item, opts ...TransformOption) *Layer {
	ti := newTransformInput(in, opts...)
	l := newLayer(name, ti, NewSingleOutput())
	l.SetTransform(transform)
	return l
}

// NewMerge builds a barrier-synchronizing transform with no user callback
// (original_source's MergeLayer): it ticks under the given policy and
// forwards whatever the policy delivered, unchanged.
func NewMerge(name string, in map[string]*Port, opts ...TransformOption) *Layer {
	return NewTransform(name, in, nil, opts...)
}
