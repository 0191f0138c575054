package correlation_test

import (
	"encoding/json"
	"math"

	. "github.com/dogmatiq/procyon/correlation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Encode()", func() {
	It("does not depend on the order of the properties", func() {
		a, err := Encode(New(
			Property{Key: "orderId", Value: "123"},
			Property{Key: "customerId", Value: "456"},
		))
		Expect(err).ShouldNot(HaveOccurred())

		b, err := Encode(New(
			Property{Key: "customerId", Value: "456"},
			Property{Key: "orderId", Value: "123"},
		))
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("produces the same ID for the same content", func() {
		a, err := Encode(Single("orderId", "123"))
		Expect(err).ShouldNot(HaveOccurred())

		b, err := Encode(FromMap(map[string]any{"orderId": "123"}))
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).To(Equal(b))
		Expect(a).To(HaveLen(64))
	})

	DescribeTable(
		"it produces different IDs for different content",
		func(a, b Correlation) {
			x, err := Encode(a)
			Expect(err).ShouldNot(HaveOccurred())

			y, err := Encode(b)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(x).NotTo(Equal(y))
		},
		Entry("different values", Single("orderId", "123"), Single("orderId", "124")),
		Entry("different keys", Single("orderId", "123"), Single("orderID", "123")),
		Entry("different value types", Single("orderId", "123"), Single("orderId", 123)),
		Entry("ambiguous concatenation", Single("ab", "c"), Single("a", "bc")),
		Entry(
			"additional properties",
			Single("orderId", "123"),
			New(Property{Key: "orderId", Value: "123"}, Property{Key: "customerId", Value: "456"}),
		),
	)

	It("is not affected by a JSON round-trip", func() {
		c := New(
			Property{Key: "orderId", Value: "123"},
			Property{Key: "quantity", Value: 5},
		)

		data, err := json.Marshal(c)
		Expect(err).ShouldNot(HaveOccurred())

		var x Correlation
		err = json.Unmarshal(data, &x)
		Expect(err).ShouldNot(HaveOccurred())

		a, err := Encode(c)
		Expect(err).ShouldNot(HaveOccurred())

		b, err := Encode(x)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("returns an error if a value can not be represented as JSON", func() {
		_, err := Encode(Single("orderId", math.Inf(1)))
		Expect(err).To(MatchError(ContainSubstring("orderId")))
	})
})

var _ = Describe("type Correlation", func() {
	Describe("func New()", func() {
		It("uses the last value for duplicate keys", func() {
			c := New(
				Property{Key: "orderId", Value: "123"},
				Property{Key: "orderId", Value: "456"},
			)

			Expect(c.Len()).To(Equal(1))
			v, ok := c.Get("orderId")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("456"))
		})
	})

	Describe("func Properties()", func() {
		It("returns the properties ordered by key", func() {
			c := New(
				Property{Key: "b", Value: 2},
				Property{Key: "a", Value: 1},
			)

			Expect(c.Properties()).To(Equal([]Property{
				{Key: "a", Value: 1},
				{Key: "b", Value: 2},
			}))
		})
	})

	Describe("func MarshalJSON()", func() {
		It("produces a JSON object", func() {
			data, err := json.Marshal(Single("orderId", "123"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(data).To(MatchJSON(`{"orderId":"123"}`))
		})
	})
})
