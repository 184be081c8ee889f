// Package hk provides a mechanism for registering callbacks invoked at
// specified intervals -- the same shape as the teacher's own hk package
// (hk/housekeeper_suite_test.go references hk.DefaultHK.Run()/WaitStarted()),
// repurposed here for periodic maintenance that core deliberately doesn't
// do on its own behalf: sampling layer metrics, logging stale queues, and
// the like.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/Zuko09/kinetic/cmn/mono"
	"github.com/Zuko09/kinetic/cmn/nlog"
)

// Req is one registered job: Callback runs every Interval and its return
// value becomes the next Interval (so a job can reschedule itself, e.g.
// back off after repeated no-ops).
type Req struct {
	Name     string
	Interval time.Duration
	Callback func() time.Duration
}

type timer struct {
	req  Req
	next int64 // mono.NanoTime() reading
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].next < h[j].next }
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any) { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Housekeeper runs registered Req callbacks at their interval on a single
// background goroutine, least-next-deadline-first.
type Housekeeper struct {
	mu      sync.Mutex
	h       timerHeap
	wake    chan struct{}
	started chan struct{}
	stop    chan struct{}
}

func New() *Housekeeper {
	return &Housekeeper{
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Default is the process-wide housekeeper, mirroring the teacher's
// hk.DefaultHK.
var Default = New()

// Reg registers a job; it first fires after its Interval elapses.
func (hk *Housekeeper) Reg(req Req) {
	hk.mu.Lock()
	heap.Push(&hk.h, &timer{req: req, next: mono.NanoTime() + int64(req.Interval)})
	hk.mu.Unlock()
	select {
	case hk.wake <- struct{}{}:
	default:
	}
}

// Run drives the housekeeper loop; call it in its own goroutine. It blocks
// until Stop is called.
func (hk *Housekeeper) Run() {
	close(hk.started)
	for {
		hk.mu.Lock()
		var sleep time.Duration
		if len(hk.h) == 0 {
			sleep = time.Hour
		} else {
			sleep = time.Duration(hk.h[0].next - mono.NanoTime())
			if sleep < 0 {
				sleep = 0
			}
		}
		hk.mu.Unlock()

		t := time.NewTimer(sleep)
		select {
		case <-t.C:
			hk.fire()
		case <-hk.wake:
			t.Stop()
		case <-hk.stop:
			t.Stop()
			return
		}
	}
}

func (hk *Housekeeper) fire() {
	now := mono.NanoTime()
	for {
		hk.mu.Lock()
		if len(hk.h) == 0 || hk.h[0].next > now {
			hk.mu.Unlock()
			return
		}
		top := heap.Pop(&hk.h).(*timer)
		hk.mu.Unlock()

		next := safeCall(top.req)
		if next <= 0 {
			next = top.req.Interval
		}
		hk.mu.Lock()
		heap.Push(&hk.h, &timer{req: top.req, next: now + int64(next)})
		hk.mu.Unlock()
	}
}

func safeCall(req Req) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("hk: job %q panicked: %v", req.Name, r)
		}
	}()
	return req.Callback()
}

// WaitStarted blocks until Run has begun; used by tests that register jobs
// immediately after launching the housekeeper goroutine.
func (hk *Housekeeper) WaitStarted() { <-hk.started }

// Stop terminates Run.
func (hk *Housekeeper) Stop() { close(hk.stop) }

// TestInit resets Default; tests only.
func TestInit() { Default = New() }
