package persistence_test

import (
	"context"

	. "github.com/dogmatiq/procyon/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type ContextTransactionManager", func() {
	var manager ContextTransactionManager

	Describe("func Enabled()", func() {
		It("returns true", func() {
			Expect(manager.Enabled()).To(BeTrue())
		})
	})

	Describe("func Session()", func() {
		It("returns the session attached to the context", func() {
			s := sessionStub{"<backend>"}
			ctx := WithSession(context.Background(), s)

			x, ok := manager.Session(ctx)
			Expect(ok).To(BeTrue())
			Expect(x).To(Equal(s))
		})

		It("returns false if there is no session attached to the context", func() {
			_, ok := manager.Session(context.Background())
			Expect(ok).To(BeFalse())
		})
	})
})
