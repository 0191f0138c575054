package storetest

import (
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// declareSessionTests declares a functional test-suite for backends that
// support sessions.
func declareSessionTests(tc *TestContext) {
	ginkgo.Describe("type persistence.Session", func() {
		var (
			provider persistence.Provider
			store    *persistence.Store
		)

		ginkgo.BeforeEach(func() {
			if tc.Out.Begin == nil {
				ginkgo.Skip("backend does not support sessions")
			}

			var close func()
			provider, close = tc.Out.NewProvider()
			if close != nil {
				ginkgo.DeferCleanup(close)
			}

			b, err := provider.Open(tc.Context, ProcessID)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			ginkgo.DeferCleanup(b.Close)

			store = &persistence.Store{
				ProcessID:    ProcessID,
				Backend:      b,
				Marshaler:    tc.In.Marshaler,
				Lock:         true,
				Transactions: persistence.ContextTransactionManager{},
				Arena:        &process.Arena{},
			}
		})

		ginkgo.It("makes writes visible when the session is committed", func() {
			tx, err := tc.Out.Begin(tc.Context, provider)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			ctx := persistence.WithSession(tc.Context, tx)

			err = store.Create(ctx, newInstance(store, "<instance>"))
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			ok, err := store.Exists(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())

			err = tx.Commit()
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			ok, err = store.Exists(tc.Context, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
		})

		ginkgo.It("discards writes when the session is rolled back", func() {
			tx, err := tc.Out.Begin(tc.Context, provider)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			ctx := persistence.WithSession(tc.Context, tx)

			err = store.Create(ctx, newInstance(store, "<instance>"))
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			err = tx.Rollback()
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			ok, err := store.Exists(tc.Context, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("ignores the session when transactions are disabled", func() {
			store.Transactions = nil

			tx, err := tc.Out.Begin(tc.Context, provider)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer tx.Rollback()

			ctx := persistence.WithSession(tc.Context, tx)
			ok, err := store.Exists(ctx, "<instance>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})
	})
}
