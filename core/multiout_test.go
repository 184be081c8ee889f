package core_test

import (
	"github.com/Zuko09/kinetic/cmn/cos"
	"github.com/Zuko09/kinetic/core"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MultiOutput role", func() {
	It("fails with ErrDuplicatePort when a name is registered twice", func() {
		src := core.NewPort()
		_, err := core.NewMultiOutput("d", core.Single(src), func(core.Item) map[string]core.Item { return nil }, "a", "a")
		Expect(err).To(HaveOccurred())
		Expect(cos.IsErrDuplicatePort(err)).To(BeTrue())
	})

	It("auto-creates a port on first GetPort for an undeclared name", func() {
		src := core.NewPort()
		decode, err := core.NewMultiOutput("d", core.Single(src), func(it core.Item) map[string]core.Item {
			m, _ := it.Value.(map[string]core.Item)
			return m
		})
		Expect(err).NotTo(HaveOccurred())

		p1 := decode.GetPort("auto")
		p2 := decode.GetPort("auto")
		Expect(p1).To(BeIdenticalTo(p2))
	})

	It("forwards the whole mapping on the default output port alongside per-key fan-out", func() {
		src := core.NewPort()
		decode, err := core.NewMultiOutput("d", core.Single(src), func(it core.Item) map[string]core.Item {
			return map[string]core.Item{"a": core.Data(1)}
		}, "a")
		Expect(err).NotTo(HaveOccurred())

		subA := decode.GetPort("a").Subscribe()
		subDefault := decode.OutputPort().Subscribe()
		src.Freeze()
		for _, p := range decode.AllPorts() {
			p.Freeze()
		}

		stop := core.NewStopEvent()
		Expect(core.NewThreadHost(decode.Layer).Start(stop)).To(Succeed())

		src.Emit(core.Data("row"))

		Eventually(func() bool {
			it, ok := subA.TryTake()
			return ok && it.Value == 1
		}).Should(BeTrue())

		Eventually(func() bool {
			it, ok := subDefault.TryTake()
			if !ok {
				return false
			}
			m, ok := it.Value.(map[string]core.Item)
			return ok && m["a"].Value == 1
		}).Should(BeTrue())

		stop.Set()
		Eventually(decode.Done()).Should(BeClosed())
	})

	It("skips a known port name the mapping doesn't include", func() {
		src := core.NewPort()
		decode, err := core.NewMultiOutput("d", core.Single(src), func(it core.Item) map[string]core.Item {
			return map[string]core.Item{"a": core.Data(1)}
		}, "a", "b")
		Expect(err).NotTo(HaveOccurred())

		subB := decode.GetPort("b").Subscribe()
		src.Freeze()
		for _, p := range decode.AllPorts() {
			p.Freeze()
		}

		stop := core.NewStopEvent()
		Expect(core.NewThreadHost(decode.Layer).Start(stop)).To(Succeed())

		src.Emit(core.Data("row"))
		src.Emit(core.STOP)

		var last core.Item
		sawData := false
		Eventually(func() bool {
			it, ok := subB.TryTake()
			if !ok {
				return false
			}
			if !it.IsStop() {
				sawData = true
			}
			last = it
			return it.IsStop()
		}).Should(BeTrue())
		Expect(last.IsStop()).To(BeTrue())
		Expect(sawData).To(BeFalse())

		stop.Set()
		Eventually(decode.Done()).Should(BeClosed())
	})
})
