package persistence_test

import (
	"context"
	"errors"

	. "github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/memorypersistence"
	"github.com/dogmatiq/procyon/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type StoreSet", func() {
	var (
		ctx context.Context
		set *StoreSet
	)

	BeforeEach(func() {
		ctx = context.Background()

		set = &StoreSet{
			Provider: &memorypersistence.Provider{},
			Lock:     true,
			Arena:    &process.Arena{},
		}
	})

	AfterEach(func() {
		set.Close()
	})

	Describe("func Get()", func() {
		It("returns a store for the process definition", func() {
			s, err := set.Get(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.ProcessID).To(Equal("<process>"))
			Expect(s.Lock).To(BeTrue())
			Expect(s.Arena).To(BeIdenticalTo(set.Arena))
		})

		It("returns the same instance on subsequent calls", func() {
			s1, err := set.Get(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			s2, err := set.Get(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(s1).To(BeIdenticalTo(s2))
		})

		It("returns an error if the provider cannot open the backend", func() {
			set.Provider = providerFunc(func(context.Context, string) (Backend, error) {
				return nil, errors.New("<error>")
			})

			_, err := set.Get(ctx, "<process>")
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func ProcessIDs()", func() {
		It("returns the IDs of the open stores in order", func() {
			_, err := set.Get(ctx, "<process-b>")
			Expect(err).ShouldNot(HaveOccurred())

			_, err = set.Get(ctx, "<process-a>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(set.ProcessIDs()).To(Equal([]string{"<process-a>", "<process-b>"}))
		})
	})

	Describe("func Close()", func() {
		It("closes the stores", func() {
			s, err := set.Get(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(set.Close()).To(Succeed())

			_, err = s.Exists(ctx, "<instance>")
			Expect(err).To(Equal(ErrStoreClosed))
			Expect(set.ProcessIDs()).To(BeEmpty())
		})
	})
})

// providerFunc is an adaptor that allows an ordinary function to be used as a
// Provider.
type providerFunc func(context.Context, string) (Backend, error)

func (fn providerFunc) Open(ctx context.Context, processID string) (Backend, error) {
	return fn(ctx, processID)
}
