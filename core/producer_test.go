package core_test

import (
	"time"

	"github.com/Zuko09/kinetic/core"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Producer role", func() {
	Describe("one-shot", func() {
		It("emits its value exactly once, then only NONE", func() {
			l := core.NewOneShot("once", core.Data(42))
			out := l.OutputPort()
			sub := out.Subscribe()

			runAndStop(l, 30*time.Millisecond)

			it, ok := sub.TryTake()
			Expect(ok).To(BeTrue())
			Expect(it.Value).To(Equal(42))

			// the only other item a one-shot ever emits is the terminal STOP.
			it, ok = sub.TryTake()
			Expect(ok).To(BeTrue())
			Expect(it.IsStop()).To(BeTrue())

			_, ok = sub.TryTake()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("multi-shot", func() {
		It("fires exactly numShots times without finish", func() {
			const n = 4
			var fired []int64
			done := make(chan struct{})
			ms := core.NewMultiShot("ms", n, func() { close(done) }, func(c int64) core.Item {
				fired = append(fired, c)
				return core.Data(c)
			}, 500, false)

			out := ms.OutputPort()
			sub := out.Subscribe()
			stop := core.NewStopEvent()
			host := core.NewThreadHost(ms.Layer)
			Expect(host.Start(stop)).To(Succeed())

			Eventually(done, time.Second).Should(BeClosed())
			stop.Set()
			Eventually(ms.Done(), time.Second).Should(BeClosed())

			var values []int64
			for {
				it, ok := sub.TryTake()
				if !ok {
					break
				}
				if it.IsStop() {
					continue
				}
				values = append(values, it.Value.(int64))
			}
			// the (n)th call (index n-1) only invokes the completion handler
			// and yields NONE -- n get_input fires, n-1 actual data items.
			Expect(values).To(Equal([]int64{0, 1, 2}))
			Expect(ms.Counter()).To(Equal(int64(n - 1)))
		})

		It("emits the -1 finish sentinel as its (n+1)th fire when finish is requested", func() {
			const n = 3
			ms := core.NewMultiShot("ms", n, nil, func(c int64) core.Item {
				return core.Data(c)
			}, 500, true)

			out := ms.OutputPort()
			sub := out.Subscribe()
			stop := core.NewStopEvent()
			host := core.NewThreadHost(ms.Layer)
			Expect(host.Start(stop)).To(Succeed())

			var values []core.Item
			Eventually(func() int {
				for {
					it, ok := sub.TryTake()
					if !ok {
						break
					}
					if it.IsStop() {
						continue
					}
					values = append(values, it)
				}
				return len(values)
			}, time.Second).Should(Equal(n + 1))

			stop.Set()
			Eventually(ms.Done(), time.Second).Should(BeClosed())

			Expect(values[n]).To(Equal(core.MultiShotFinishValue))
		})

		It("flips expired after its post-shots calls begin", func() {
			const n = 2
			ms := core.NewMultiShot("ms", n, nil, func(c int64) core.Item {
				return core.Data(c)
			}, 1000, false)
			stop := core.NewStopEvent()
			host := core.NewThreadHost(ms.Layer)
			Expect(host.Start(stop)).To(Succeed())

			Eventually(ms.Expired, time.Second).Should(BeTrue())
			stop.Set()
			Eventually(ms.Done(), time.Second).Should(BeClosed())
		})
	})
})
