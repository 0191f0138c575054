package correlationtest

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/correlation"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 10 * time.Second

// Declare declares generic behavioral tests for a specific
// correlation.Repository implementation.
//
// setup returns the repository under test and an optional function that
// releases its resources.
func Declare(
	setup func(context.Context) (correlation.Repository, func()),
) {
	var (
		ctx     context.Context
		service *correlation.Service
		corr    correlation.Correlation
	)

	ginkgo.Context("standard correlation repository test suite", func() {
		ginkgo.BeforeEach(func() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.Background(), DefaultTestTimeout)
			ginkgo.DeferCleanup(cancel)

			repo, tearDown := setup(ctx)
			if tearDown != nil {
				ginkgo.DeferCleanup(tearDown)
			}

			service = &correlation.Service{
				Repository: repo,
				Logger:     logging.DiscardLogger{},
			}

			corr = correlation.Single("orderId", "123")
		})

		ginkgo.Describe("func Create()", func() {
			ginkgo.It("returns the created instance", func() {
				inst, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				id, err := correlation.Encode(corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				gomega.Expect(inst).To(gomega.Equal(
					correlation.Instance{
						EncodedID:    id,
						CorrelatedID: "pi-1",
						Correlation:  corr,
					},
				))
			})

			ginkgo.It("returns ErrNotCreated if the correlation already exists", func() {
				_, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = service.Create(ctx, corr, "pi-2")
				gomega.Expect(err).To(gomega.MatchError(correlation.ErrNotCreated))
			})
		})

		ginkgo.Describe("func Find()", func() {
			ginkgo.It("returns the instance associated with the correlation", func() {
				expect, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				inst, ok, err := service.Find(ctx, corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(inst).To(gomega.Equal(expect))
			})

			ginkgo.It("finds correlations regardless of property order", func() {
				c := correlation.New(
					correlation.Property{Key: "orderId", Value: "123"},
					correlation.Property{Key: "customerId", Value: "456"},
				)

				_, err := service.Create(ctx, c, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				inst, ok, err := service.Find(ctx, correlation.FromMap(map[string]any{
					"customerId": "456",
					"orderId":    "123",
				}))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(inst.CorrelatedID).To(gomega.Equal("pi-1"))
			})

			ginkgo.It("returns false if the correlation does not exist", func() {
				inst, ok, err := service.Find(ctx, corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
				gomega.Expect(inst).To(gomega.Equal(correlation.Instance{}))
			})
		})

		ginkgo.Describe("func FindByCorrelatedID()", func() {
			ginkgo.It("returns the instance associated with the process instance", func() {
				expect, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				inst, ok, err := service.FindByCorrelatedID(ctx, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(inst).To(gomega.Equal(expect))
			})

			ginkgo.It("returns false if there is no such instance", func() {
				_, ok, err := service.FindByCorrelatedID(ctx, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})
		})

		ginkgo.Describe("func Delete()", func() {
			ginkgo.It("removes the correlation", func() {
				_, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = service.Delete(ctx, corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, ok, err := service.Find(ctx, corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())

				_, ok, err = service.FindByCorrelatedID(ctx, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("allows the correlation to be recreated", func() {
				_, err := service.Create(ctx, corr, "pi-1")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = service.Delete(ctx, corr)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = service.Create(ctx, corr, "pi-2")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})

			ginkgo.It("returns ErrNotDeleted if the correlation does not exist", func() {
				err := service.Delete(ctx, corr)
				gomega.Expect(err).To(gomega.MatchError(correlation.ErrNotDeleted))
			})
		})
	})
}
