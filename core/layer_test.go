package core_test

import (
	"time"

	"github.com/Zuko09/kinetic/core"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// runAndStop starts l under a fresh ThreadHost, gives it a moment to make
// progress, then signals stop and waits for the loop to exit.
func runAndStop(l *core.Layer, settle time.Duration) *core.StopEvent {
	stop := core.NewStopEvent()
	host := core.NewThreadHost(l)
	Expect(host.Start(stop)).To(Succeed())
	time.Sleep(settle)
	stop.Set()
	Eventually(l.Done(), time.Second).Should(BeClosed())
	return stop
}

var _ = Describe("Layer processing loop", func() {
	It("increments counter only on non-NONE results", func() {
		values := []core.Item{core.Data(1), core.NONE, core.Data(2), core.NONE, core.Data(3)}
		idx := 0
		l := core.NewGenerator("gen", func(int64) core.Item {
			v := values[idx%len(values)]
			idx++
			return v
		}, 1000)

		out := l.OutputPort()
		sub := out.Subscribe()
		runAndStop(l, 30*time.Millisecond)

		count := 0
		for {
			it, ok := sub.TryTake()
			if !ok {
				break
			}
			if it.IsStop() {
				continue
			}
			count++
		}
		// every observed data item corresponds to one counter increment;
		// NONE results never reach the output port at all.
		Expect(l.Counter()).To(Equal(int64(count)))
	})

	It("runs post_init exactly once, with the first non-NONE item", func() {
		var seen []any
		l := core.NewOneShot("once", core.Data("first"))
		l.OnInit(func(it core.Item) { seen = append(seen, it.Value) })
		runAndStop(l, 50*time.Millisecond)
		Expect(seen).To(Equal([]any{"first"}))
	})

	It("emits a terminal STOP on exit", func() {
		l := core.NewOneShot("once", core.Data("x"))
		out := l.OutputPort()
		sub := out.Subscribe()
		runAndStop(l, 20*time.Millisecond)

		var last core.Item
		for {
			it, ok := sub.TryTake()
			if !ok {
				break
			}
			last = it
		}
		Expect(last.IsStop()).To(BeTrue())
	})

	It("calls shutdown after the loop exits", func() {
		shut := make(chan struct{})
		l := core.NewOneShot("once", core.Data("x"))
		l.SetShutdown(func() { close(shut) })
		runAndStop(l, 20*time.Millisecond)
		Eventually(shut, time.Second).Should(BeClosed())
	})

	It("drains signal_in non-blockingly every tick", func() {
		sigQ := core.NewQueue()
		var got []any
		l := core.NewGenerator("gen", func(c int64) core.Item { return core.Data(c) }, 200)
		l.SignalIn(sigQ)
		l.OnSignal(func(it core.Item) { got = append(got, it.Value) })
		sigQ.Put(core.Data("ping"))
		runAndStop(l, 40*time.Millisecond)
		Expect(got).To(ContainElement("ping"))
	})
})
