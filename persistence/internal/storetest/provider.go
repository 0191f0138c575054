package storetest

import (
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// declareProviderTests declares a functional test-suite for a specific
// persistence.Provider implementation.
func declareProviderTests(tc *TestContext) {
	ginkgo.Describe("type persistence.Provider", func() {
		var (
			provider persistence.Provider
			arena    *process.Arena
		)

		ginkgo.BeforeEach(func() {
			var close func()
			provider, close = tc.Out.NewProvider()
			if close != nil {
				ginkgo.DeferCleanup(close)
			}

			arena = &process.Arena{}
		})

		open := func(processID string) *persistence.Store {
			b, err := provider.Open(tc.Context, processID)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			ginkgo.DeferCleanup(b.Close)

			return &persistence.Store{
				ProcessID: processID,
				Backend:   b,
				Marshaler: tc.In.Marshaler,
				Lock:      true,
				Arena:     arena,
			}
		}

		ginkgo.Describe("func Open()", func() {
			ginkgo.It("returns backends that share data for the same process", func() {
				s1 := open(ProcessID)
				s2 := open(ProcessID)

				err := s1.Create(tc.Context, newInstance(s1, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ok, err := s2.Exists(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
			})

			ginkgo.It("returns isolated backends for different processes", func() {
				s1 := open("<process-1>")
				s2 := open("<process-2>")

				err := s1.Create(tc.Context, newInstance(s1, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ok, err := s2.Exists(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())

				err = s2.Create(tc.Context, newInstance(s2, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})
		})
	})
}
