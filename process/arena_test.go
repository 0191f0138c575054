package process_test

import (
	. "github.com/dogmatiq/procyon/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Arena", func() {
	var arena *Arena

	BeforeEach(func() {
		arena = &Arena{}
	})

	Describe("func NewInstance()", func() {
		It("returns a pending instance", func() {
			inst := arena.NewInstance("<id>", "<process>", "1")

			Expect(inst.ID()).To(Equal("<id>"))
			Expect(inst.ProcessID()).To(Equal("<process>"))
			Expect(inst.ProcessVersion()).To(Equal("1"))
			Expect(inst.State()).To(Equal(StatePending))
			Expect(inst.Arena()).To(BeIdenticalTo(arena))
			Expect(arena.Len()).To(Equal(1))
		})

		It("reuses the slots of released instances", func() {
			a := arena.NewInstance("<a>", "<process>", "1")
			arena.NewInstance("<b>", "<process>", "1")
			arena.Release(a)

			c := arena.NewInstance("<c>", "<process>", "1")
			Expect(c.Ref()).To(Equal(a.Ref()))
			Expect(arena.Len()).To(Equal(2))
		})
	})

	Describe("func Instance()", func() {
		It("returns the instance at the given index", func() {
			inst := arena.NewInstance("<id>", "<process>", "1")

			x, ok := arena.Instance(inst.Ref())
			Expect(ok).To(BeTrue())
			Expect(x).To(BeIdenticalTo(inst))
		})

		It("returns false if the index is out of range", func() {
			_, ok := arena.Instance(10)
			Expect(ok).To(BeFalse())
		})

		It("returns false if the instance has been released", func() {
			inst := arena.NewInstance("<id>", "<process>", "1")
			arena.Release(inst)

			_, ok := arena.Instance(inst.Ref())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func Release()", func() {
		It("releases the instance's nodes", func() {
			inst := arena.NewInstance("<id>", "<process>", "1")
			n, err := inst.AddNode("<node-instance>", "<node>")
			Expect(err).ShouldNot(HaveOccurred())

			arena.Release(inst)

			_, ok := arena.Node(n.Ref())
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("type NodeInstance", func() {
	Describe("func Owner()", func() {
		It("resolves the owning instance through the arena", func() {
			arena := &Arena{}
			inst := arena.NewInstance("<id>", "<process>", "1")
			n, err := inst.AddNode("<node-instance>", "<node>")
			Expect(err).ShouldNot(HaveOccurred())

			owner, ok := n.Owner()
			Expect(ok).To(BeTrue())
			Expect(owner).To(BeIdenticalTo(inst))
		})
	})

	Describe("func SetNodeID()", func() {
		It("changes the node definition", func() {
			arena := &Arena{}
			inst := arena.NewInstance("<id>", "<process>", "1")
			n, err := inst.AddNode("<node-instance>", "<node>")
			Expect(err).ShouldNot(HaveOccurred())

			n.SetNodeID("<other>")
			Expect(n.NodeID()).To(Equal("<other>"))
		})
	})
})
