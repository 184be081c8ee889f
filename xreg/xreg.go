// Package xreg is the layer manager of spec.md §4.7: a process-wide
// registry that starts, stops, and joins every layer as one system. Shaped
// after the teacher's xact/xreg package (a package-level default registry
// plus an explicit-context constructor), per design notes §9's guidance for
// languages that disfavor bare globals.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package xreg

import (
	"sync"

	"github.com/Zuko09/kinetic/cmn/cos"
	"github.com/Zuko09/kinetic/cmn/nlog"
	"github.com/Zuko09/kinetic/core"
	"golang.org/x/sync/errgroup"
)

// entry pairs a registered layer with the host driving it and the ports it
// owns, so StartAll can Freeze every port before any host starts (the
// happens-before spec.md §5 requires between subscriber registration and a
// layer's first Emit).
type entry struct {
	name  string
	host  core.Host
	ports []*core.Port
}

// Manager is the registry described in spec.md §4.7.
type Manager struct {
	mu      sync.Mutex
	entries []*entry
	stop    *core.StopEvent
	runID   string
}

// NewManager returns an explicit-context registry, for embedders that
// disfavor the package-level Default.
func NewManager() *Manager { return &Manager{} }

// Default is the process-wide registry, mirroring xact/xreg's dreg/Init()
// convention. Layer constructors do not register with it (or with any
// Manager); every layer is added explicitly via AddLayer, AddThreadLayer or
// AddMultiOutputLayer.
var Default = NewManager()

// AddLayer registers a top-level (non-sub-thread) layer with its host and
// the output ports it owns. Call this once per layer at construction time.
func (m *Manager) AddLayer(name string, host core.Host, ports ...*core.Port) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &entry{name: name, host: host, ports: ports})
}

// AddThreadLayer is a convenience wrapper: registers l under a fresh
// ThreadHost and its default output port.
func (m *Manager) AddThreadLayer(l *core.Layer) *core.ThreadHost {
	h := core.NewThreadHost(l)
	m.AddLayer(l.Name, h, l.OutputPort())
	return h
}

// AddMultiOutputLayer is AddThreadLayer for a *core.MultiOutputLayer: it
// records every port the layer currently owns (base plus declared/auto),
// not just the default one, so StartAll freezes them all, since downstream
// consumers subscribe to the named sub-ports directly.
func (m *Manager) AddMultiOutputLayer(l *core.MultiOutputLayer) *core.ThreadHost {
	h := core.NewThreadHost(l.Layer)
	m.AddLayer(l.Name, h, l.AllPorts()...)
	return h
}

// StartAll allocates the single shared stop event, freezes every
// registered port's subscriber set, then starts each layer's host in
// registration order -- spec.md §4.7.
func (m *Manager) StartAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stop = core.NewStopEvent()
	m.runID = cos.GenRunID(int64(len(m.entries)))

	for _, e := range m.entries {
		for _, p := range e.ports {
			p.Freeze()
		}
	}
	for _, e := range m.entries {
		if err := e.host.Start(m.stop); err != nil {
			nlog.Errorf("xreg[%s]: %s failed to start: %v", m.runID, e.name, err)
			return &cos.ErrConstruction{Reason: "layer " + e.name + " failed to start: " + err.Error()}
		}
	}
	nlog.Infof("xreg[%s]: started %d layer(s)", m.runID, len(m.entries))
	return nil
}

// JoinAll joins every registered layer's host, aggregating failures rather
// than stopping at the first (spec.md §8's "after stop_all, every
// registered layer eventually joins"). x/sync/errgroup fans the joins out
// concurrently the same way dsort/dsort.go and fs/walkbck.go fan out worker
// goroutines, so hosts are not joined in registration order: the
// aggregated error's "first" failure is the one whose join returned first.
func (m *Manager) JoinAll() error {
	m.mu.Lock()
	entries := append([]*entry(nil), m.entries...)
	m.mu.Unlock()

	var g errgroup.Group
	var errs cos.Errs
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := e.host.Join(); err != nil {
				errs.Add(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.Err()
}

// StopAll sets the shared stop event, signaling every layer to unwind on
// its next loop iteration.
func (m *Manager) StopAll() {
	m.mu.Lock()
	stop := m.stop
	m.mu.Unlock()
	if stop != nil {
		stop.Set()
	}
}

// NumLayers reports the registry size; diagnostics and tests only.
func (m *Manager) NumLayers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// TestReset clears the Default registry; tests only (mirrors xreg.TestReset).
func TestReset() { Default = NewManager() }
