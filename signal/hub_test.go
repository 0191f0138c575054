package signal_test

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/memorypersistence"
	"github.com/dogmatiq/procyon/process"
	. "github.com/dogmatiq/procyon/signal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Hub", func() {
	var (
		ctx       context.Context
		arena     *process.Arena
		hub       *Hub
		m         sync.Mutex
		delivered []string
	)

	newInstance := func(id string) *process.Instance {
		inst := arena.NewInstance(id, "<process>", "1")
		Expect(inst.SetState(process.StateActive)).To(Succeed())
		Expect(inst.Subscribe("<event>")).To(Succeed())
		return inst
	}

	BeforeEach(func() {
		ctx = context.Background()
		delivered = nil

		arena = &process.Arena{
			Handler: process.SignalHandlerFunc(
				func(_ context.Context, inst *process.Instance, eventType string, payload any) error {
					m.Lock()
					defer m.Unlock()

					delivered = append(delivered, inst.ID())
					Expect(eventType).To(Equal("<event>"))
					Expect(payload).To(Equal("<payload>"))

					return nil
				},
			),
		}

		hub = &Hub{
			Logger: logging.DiscardLogger{},
		}
	})

	Describe("func AddEventListener()", func() {
		It("does not register the same listener twice", func() {
			l := InstanceListener{Instance: newInstance("<instance>")}

			hub.AddEventListener("<event>", l)
			hub.AddEventListener("<event>", l)

			Expect(hub.Listeners("<event>")).To(HaveLen(1))
		})

		It("identifies callback listeners by name", func() {
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})
			hub.AddEventListener("<event>", CallbackListener{Name: "<b>"})

			Expect(hub.Listeners("<event>")).To(HaveLen(2))
		})

		It("does not modify a snapshot that is being iterated", func() {
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})
			snapshot := hub.Listeners("<event>")

			hub.AddEventListener("<event>", CallbackListener{Name: "<b>"})

			Expect(snapshot).To(HaveLen(1))
		})
	})

	Describe("func RemoveEventListener()", func() {
		It("removes the listener", func() {
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})
			hub.AddEventListener("<event>", CallbackListener{Name: "<b>"})
			hub.RemoveEventListener("<event>", CallbackListener{Name: "<a>"})

			Expect(hub.Listeners("<event>")).To(ConsistOf(
				WithTransform(
					func(l Listener) string { return l.(CallbackListener).Name },
					Equal("<b>"),
				),
			))
		})

		It("prunes the event type when its last listener is removed", func() {
			inst := newInstance("<instance>")

			hub.AddEventListener("<event>", InstanceListener{Instance: inst})
			hub.RemoveEventListener("<event>", InstanceListener{Instance: inst})

			Expect(hub.Listeners("<event>")).To(BeEmpty())

			ok, err := hub.Accept(ctx, "<event>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("does nothing if the listener is not registered", func() {
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})
			hub.RemoveEventListener("<event>", CallbackListener{Name: "<b>"})
			hub.RemoveEventListener("<other>", CallbackListener{Name: "<a>"})

			Expect(hub.Listeners("<event>")).To(HaveLen(1))
		})
	})

	Describe("func Accept()", func() {
		It("returns true if there is a listener for the event type", func() {
			hub.AddEventListener("<event>", CallbackListener{Name: "<a>"})

			ok, err := hub.Accept(ctx, "<event>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("returns true if a resolver reports a waiting instance", func() {
			hub.AddResolver(&resolverStub{
				waiting: func() []*process.Instance {
					return []*process.Instance{newInstance("<instance>")}
				},
			})

			ok, err := hub.Accept(ctx, "<event>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(arena.Len()).To(BeZero())
		})

		It("returns false if nothing is waiting for the event type", func() {
			hub.AddResolver(&resolverStub{})

			ok, err := hub.Accept(ctx, "<event>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns an error if a resolver fails", func() {
			hub.AddResolver(&resolverStub{err: errors.New("<error>")})

			_, err := hub.Accept(ctx, "<event>")
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func SignalEvent()", func() {
		It("delivers the event to each listener exactly once", func() {
			var calls int

			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<instance-a>")})
			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<instance-b>")})
			hub.AddEventListener("<event>", CallbackListener{
				Name: "<callback>",
				Callback: func(_ context.Context, eventType string, payload any) error {
					calls++
					Expect(eventType).To(Equal("<event>"))
					Expect(payload).To(Equal("<payload>"))
					return nil
				},
			})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<instance-a>", "<instance-b>"}))
			Expect(calls).To(Equal(1))
		})

		It("does not deliver to listeners for other event types", func() {
			hub.AddEventListener("<other>", InstanceListener{Instance: newInstance("<instance>")})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(BeEmpty())
		})

		It("delivers to resolved instances that were not already delivered to", func() {
			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<listening>")})

			resolver := &resolverStub{
				waiting: func() []*process.Instance {
					return []*process.Instance{
						newInstance("<listening>"),
						newInstance("<resolved>"),
					}
				},
			}

			hub.AddResolver(resolver)
			hub.AddResolver(resolver)

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<listening>", "<resolved>"}))
		})

		It("releases resolved instances that are skipped as duplicates, but not listening instances", func() {
			listening := newInstance("<listening>")
			hub.AddEventListener("<event>", InstanceListener{Instance: listening})

			hub.AddResolver(&resolverStub{
				waiting: func() []*process.Instance {
					return []*process.Instance{newInstance("<listening>")}
				},
			})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<listening>"}))
			Expect(arena.Len()).To(Equal(1))

			inst, ok := arena.Instance(listening.Ref())
			Expect(ok).To(BeTrue())
			Expect(inst).To(BeIdenticalTo(listening))
		})

		It("releases resolved instances after delivery", func() {
			hub.AddResolver(&resolverStub{
				waiting: func() []*process.Instance {
					return []*process.Instance{newInstance("<resolved>")}
				},
			})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(arena.Len()).To(BeZero())
		})

		It("migrates resolved instances before delivery", func() {
			hub.Migrator = migratorFunc(func(inst *process.Instance) bool {
				inst.SetProcess("<process>", "2")
				return true
			})

			arena.Handler = process.SignalHandlerFunc(
				func(_ context.Context, inst *process.Instance, _ string, _ any) error {
					Expect(inst.ProcessVersion()).To(Equal("2"))
					delivered = append(delivered, inst.ID())
					return nil
				},
			)

			hub.AddResolver(&resolverStub{
				waiting: func() []*process.Instance {
					return []*process.Instance{newInstance("<resolved>")}
				},
			})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<resolved>"}))
		})

		It("attempts every delivery and returns all errors", func() {
			hub.AddEventListener("<event>", CallbackListener{
				Name: "<a>",
				Callback: func(context.Context, string, any) error {
					return errors.New("<error-a>")
				},
			})
			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<instance>")})
			hub.AddResolver(&resolverStub{err: errors.New("<error-b>")})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).To(MatchError(ContainSubstring("<error-a>")))
			Expect(err).To(MatchError(ContainSubstring("<error-b>")))
			Expect(delivered).To(Equal([]string{"<instance>"}))
		})

		It("tolerates listeners being modified during delivery", func() {
			hub.AddEventListener("<event>", CallbackListener{
				Name: "<a>",
				Callback: func(context.Context, string, any) error {
					hub.RemoveEventListener("<event>", CallbackListener{Name: "<a>"})
					hub.AddEventListener("<event>", CallbackListener{Name: "<c>"})
					return nil
				},
			})
			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<instance>")})

			err := hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<instance>"}))
		})

		It("delivers to instances persisted in a store", func() {
			b, err := (&memorypersistence.Provider{}).Open(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			store := &persistence.Store{
				ProcessID: "<process>",
				Backend:   b,
				Lock:      true,
				Arena:     arena,
			}
			defer store.Close()

			inst := newInstance("<persisted>")
			Expect(store.Create(ctx, inst)).To(Succeed())
			arena.Release(inst)

			hub.AddResolver(persistence.Resolver{Store: store})

			err = hub.SignalEvent(ctx, "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<persisted>"}))
		})
	})

	Describe("func SignalInstance()", func() {
		It("delivers the event to the instance found by a resolver", func() {
			hub.AddEventListener("<event>", InstanceListener{Instance: newInstance("<listening>")})
			hub.AddResolver(&resolverStub{})
			hub.AddResolver(&resolverStub{
				find: func(id string) (*process.Instance, bool) {
					return newInstance(id), true
				},
			})

			err := hub.SignalInstance(ctx, "<instance>", "<event>", "<payload>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(delivered).To(Equal([]string{"<instance>"}))
			Expect(arena.Len()).To(Equal(1)) // only the listening instance remains
		})

		It("returns an UnknownInstanceError if no resolver can find the instance", func() {
			hub.AddResolver(&resolverStub{})

			err := hub.SignalInstance(ctx, "<instance>", "<event>", "<payload>")
			Expect(err).To(Equal(UnknownInstanceError{InstanceID: "<instance>"}))
			Expect(err).To(MatchError("can not signal process instance '<instance>', no resolver knows about it"))
		})

		It("returns resolver errors if the instance is not found", func() {
			hub.AddResolver(&resolverStub{err: errors.New("<error>")})

			err := hub.SignalInstance(ctx, "<instance>", "<event>", "<payload>")
			Expect(err).To(MatchError("<error>"))
		})
	})
})

// resolverStub is a test implementation of the Resolver interface.
type resolverStub struct {
	waiting func() []*process.Instance
	find    func(id string) (*process.Instance, bool)
	err     error
}

func (r *resolverStub) WaitingForEvents(context.Context, string) ([]*process.Instance, error) {
	if r.err != nil {
		return nil, r.err
	}

	if r.waiting == nil {
		return nil, nil
	}

	return r.waiting(), nil
}

func (r *resolverStub) FindByID(_ context.Context, id string) (*process.Instance, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}

	if r.find == nil {
		return nil, false, nil
	}

	inst, ok := r.find(id)
	return inst, ok, nil
}

// migratorFunc is an adaptor that allows an ordinary function to be used as a
// process.Migrator.
type migratorFunc func(*process.Instance) bool

func (fn migratorFunc) Migrate(inst *process.Instance) bool {
	return fn(inst)
}
