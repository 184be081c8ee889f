package core_test

import (
	"github.com/Zuko09/kinetic/core"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Transform role", func() {
	It("unwraps to the raw item for a single [\"default\"] input", func() {
		src := core.NewPort()
		var got core.Item
		tr := core.NewTransform("t", core.Single(src), func(it core.Item) core.Item {
			got = it
			return it
		})
		_ = tr.OutputPort()
		src.Freeze()

		stop := core.NewStopEvent()
		host := core.NewThreadHost(tr)
		Expect(host.Start(stop)).To(Succeed())

		src.Emit(core.Data("raw"))
		Eventually(func() any {
			return got.Value
		}).Should(Equal("raw"))

		stop.Set()
		Eventually(tr.Done()).Should(BeClosed())
	})

	It("delivers a map for multiple keyed inputs", func() {
		a, b := core.NewPort(), core.NewPort()
		var got map[string]core.Item
		tr := core.NewTransform("t", core.Keyed(map[string]*core.Port{"a": a, "b": b}), func(it core.Item) core.Item {
			got, _ = it.Value.(map[string]core.Item)
			return it
		})
		_ = tr.OutputPort()
		a.Freeze()
		b.Freeze()

		stop := core.NewStopEvent()
		host := core.NewThreadHost(tr)
		Expect(host.Start(stop)).To(Succeed())

		a.Emit(core.Data(1))
		b.Emit(core.Data(2))

		Eventually(func() map[string]core.Item { return got }).ShouldNot(BeNil())
		Expect(got["a"].Value).To(Equal(1))
		Expect(got["b"].Value).To(Equal(2))

		stop.Set()
		Eventually(tr.Done()).Should(BeClosed())
	})

	It("panics at construction if a LayerPolicy key is not one of the input keys", func() {
		a := core.NewPort()
		Expect(func() {
			core.NewTransform("t", core.Single(a), func(it core.Item) core.Item { return it },
				core.WithTrigger(core.LayerPolicy{Key: "nope"}))
		}).To(Panic())
	})

	It("NewMerge forwards the policy's result unchanged with no user transform", func() {
		a, b := core.NewPort(), core.NewPort()
		merge := core.NewMerge("merge", core.Keyed(map[string]*core.Port{"a": a, "b": b}))
		sink := merge.OutputPort().Subscribe()
		a.Freeze()
		b.Freeze()
		merge.OutputPort().Freeze()

		stop := core.NewStopEvent()
		Expect(core.NewThreadHost(merge).Start(stop)).To(Succeed())

		a.Emit(core.Data(10))
		b.Emit(core.Data(20))

		Eventually(func() bool {
			it, ok := sink.TryTake()
			if !ok {
				return false
			}
			m := it.Value.(map[string]core.Item)
			return m["a"].Value == 10 && m["b"].Value == 20
		}).Should(BeTrue())

		stop.Set()
		Eventually(merge.Done()).Should(BeClosed())
	})
})
