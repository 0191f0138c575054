package procyon

import (
	"context"
	"errors"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/migration"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/memorypersistence"
	"github.com/dogmatiq/procyon/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Runtime", func() {
	var (
		ctx       context.Context
		runtime   *Runtime
		delivered []string
	)

	plan := migration.Plan{
		Name:   "<plan>",
		Source: migration.Definition{ProcessID: "<process>", Version: "1"},
		Target: migration.Definition{ProcessID: "<process>", Version: "2"},
		Nodes: map[string]string{
			"<node-v1>": "<node-v2>",
		},
	}

	BeforeEach(func() {
		ctx = context.Background()
		delivered = nil

		var err error
		runtime, err = New(
			ctx,
			WithPersistence(&memorypersistence.Provider{}),
			WithMigrationPlans(migration.StaticProvider{plan}),
			WithSignalHandler(process.SignalHandlerFunc(
				func(_ context.Context, inst *process.Instance, _ string, _ any) error {
					delivered = append(delivered, inst.ID()+"@"+inst.ProcessVersion())
					return nil
				},
			)),
			WithLogger(logging.DiscardLogger{}),
		)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		runtime.Close()
	})

	// create persists a new active instance that is waiting for "<event>".
	create := func(id string) {
		s, err := runtime.Store(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())

		inst := runtime.Arena().NewInstance(id, "<process>", "1")
		Expect(inst.SetState(process.StateActive)).To(Succeed())
		Expect(inst.Subscribe("<event>")).To(Succeed())

		_, err = inst.AddNode("<node-instance>", "<node-v1>")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(s.Create(ctx, inst)).To(Succeed())
		runtime.Arena().Release(inst)
	}

	Describe("func New()", func() {
		It("returns an error if the migration plans can not be loaded", func() {
			_, err := New(
				ctx,
				WithPersistence(&memorypersistence.Provider{}),
				WithMigrationPlans(migration.FileReader{Dir: "/does/not/exist"}),
			)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("func Store()", func() {
		It("returns the same store on subsequent calls", func() {
			s1, err := runtime.Store(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			s2, err := runtime.Store(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(s1).To(BeIdenticalTo(s2))
			Expect(runtime.ProcessIDs()).To(Equal([]string{"<process>"}))
		})

		It("migrates instances when they are loaded", func() {
			create("<instance>")

			s, err := runtime.Store(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			inst, ok, err := s.FindByID(ctx, "<instance>", process.ReadOnly)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(inst.ProcessVersion()).To(Equal("2"))
			Expect(inst.Nodes()[0].NodeID()).To(Equal("<node-v2>"))
		})

		It("uses optimistic locking by default", func() {
			create("<instance>")

			s, err := runtime.Store(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			inst, _, err := s.FindByID(ctx, "<instance>", process.Mutable)
			Expect(err).ShouldNot(HaveOccurred())

			stale, _, err := s.FindByID(ctx, "<instance>", process.Mutable)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(s.Update(ctx, inst)).To(Succeed())

			err = s.Update(ctx, stale)
			Expect(errors.As(err, &persistence.ConflictError{})).To(BeTrue())
		})
	})

	Describe("func Hub()", func() {
		It("delivers signals to instances in the stores opened by the runtime", func() {
			create("<instance>")

			ok, err := runtime.Hub().Accept(ctx, "<event>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			err = runtime.Hub().SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<instance>@2"}))
		})

		It("delivers targeted signals", func() {
			create("<instance>")

			err := runtime.Hub().SignalInstance(ctx, "<instance>", "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<instance>@2"}))
		})
	})

	Describe("func Correlations()", func() {
		It("returns a working correlation service", func() {
			c := correlation.Single("orderId", "123")

			_, err := runtime.Correlations().Create(ctx, c, "<instance>")
			Expect(err).ShouldNot(HaveOccurred())

			inst, ok, err := runtime.Correlations().Find(ctx, c)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(inst.CorrelatedID).To(Equal("<instance>"))
		})
	})

	Describe("func Migrations()", func() {
		It("returns the service with the configured plans", func() {
			Expect(runtime.Migrations().Plans()).To(Equal([]migration.Plan{plan}))
		})
	})

	Describe("func Close()", func() {
		It("closes the stores", func() {
			s, err := runtime.Store(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(runtime.Close()).To(Succeed())

			_, err = s.Exists(ctx, "<instance>")
			Expect(err).To(Equal(persistence.ErrStoreClosed))
		})
	})
})
