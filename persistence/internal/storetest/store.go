package storetest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"
)

// migratorFunc is an adaptor that allows an ordinary function to be used as a
// process.Migrator.
type migratorFunc func(*process.Instance) bool

func (fn migratorFunc) Migrate(inst *process.Instance) bool {
	return fn(inst)
}

// declareStoreTests declares a functional test-suite for persistence.Store
// operating on a specific backend.
func declareStoreTests(tc *TestContext) {
	ginkgo.Describe("type persistence.Store", func() {
		var store *persistence.Store

		ginkgo.BeforeEach(func() {
			var tearDown func()
			store, tearDown = tc.SetupStore()
			ginkgo.DeferCleanup(tearDown)
		})

		ginkgo.Describe("func Create()", func() {
			ginkgo.It("persists the instance at version 0", func() {
				inst := newInstance(store, "<instance>")

				err := store.Create(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 0))

				x, ok, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(x.Version()).To(gomega.BeNumerically("==", 0))
				gomega.Expect(x.Snapshot()).To(gomega.Equal(inst.Snapshot()))
			})

			ginkgo.It("returns an error if the instance already exists", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).To(gomega.Equal(
					persistence.DuplicateInstanceError{
						ProcessID:  ProcessID,
						InstanceID: "<instance>",
					},
				))
			})

			ginkgo.It("binds the instance to a reload function", func() {
				inst := newInstance(store, "<instance>")
				err := store.Create(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				other, _, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(other.SetBusinessKey("<key>")).To(gomega.Succeed())
				err = store.Update(tc.Context, other)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = inst.Reload(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.BusinessKey()).To(gomega.Equal("<key>"))
				gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 1))
			})
		})

		ginkgo.Describe("func Update()", func() {
			var inst *process.Instance

			ginkgo.BeforeEach(func() {
				inst = newInstance(store, "<instance>")
				err := store.Create(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})

			ginkgo.It("increments the version", func() {
				gomega.Expect(inst.SetBusinessKey("<key>")).To(gomega.Succeed())

				err := store.Update(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 1))

				err = store.Update(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 2))

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(x.Version()).To(gomega.BeNumerically("==", 2))
				gomega.Expect(x.BusinessKey()).To(gomega.Equal("<key>"))
			})

			ginkgo.It("returns an error if the instance has been modified since it was read", func() {
				stale, _, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Update(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Update(tc.Context, stale)
				gomega.Expect(err).To(gomega.Equal(
					persistence.ConflictError{
						ProcessID:  ProcessID,
						InstanceID: "<instance>",
					},
				))
				gomega.Expect(stale.Version()).To(gomega.BeNumerically("==", 0))
			})

			ginkgo.It("returns an error if the instance does not exist", func() {
				err := store.Update(tc.Context, newInstance(store, "<other>"))
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(persistence.ConflictError{}))
			})

			ginkgo.It("allows exactly one of several concurrent updates from the same version", func() {
				var (
					succeeded, conflicted atomic.Int32
					g                     errgroup.Group
				)

				for i := 0; i < 2; i++ {
					x, _, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

					g.Go(func() error {
						err := store.Update(tc.Context, x)

						var conflict persistence.ConflictError
						if errors.As(err, &conflict) {
							conflicted.Add(1)
							return nil
						}

						if err == nil {
							succeeded.Add(1)
						}

						return err
					})
				}

				err := g.Wait()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(succeeded.Load()).To(gomega.BeNumerically("==", 1))
				gomega.Expect(conflicted.Load()).To(gomega.BeNumerically("==", 1))

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(x.Version()).To(gomega.BeNumerically("==", 1))
			})

			ginkgo.It("does not write inactive instances", func() {
				gomega.Expect(inst.SetState(process.StateCompleted)).To(gomega.Succeed())

				err := store.Update(tc.Context, inst)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 0))

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(x.State()).To(gomega.Equal(process.StateActive))

				err = inst.Reload(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(inst.State()).To(gomega.Equal(process.StateActive))
			})

			ginkgo.It("returns an error if the instance is read-only", func() {
				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Update(tc.Context, x)
				gomega.Expect(err).To(gomega.MatchError(process.ErrReadOnly))
			})

			ginkgo.When("locking is disabled", func() {
				ginkgo.BeforeEach(func() {
					store.Lock = false
				})

				ginkgo.It("overwrites the instance unconditionally", func() {
					stale, _, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

					err = store.Update(tc.Context, inst)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
					gomega.Expect(inst.Version()).To(gomega.BeNumerically("==", 0))

					gomega.Expect(stale.SetBusinessKey("<stale>")).To(gomega.Succeed())
					err = store.Update(tc.Context, stale)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

					x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
					gomega.Expect(x.BusinessKey()).To(gomega.Equal("<stale>"))
					gomega.Expect(x.Version()).To(gomega.BeNumerically("==", 0))
				})
			})
		})

		ginkgo.Describe("func Remove()", func() {
			ginkgo.It("removes the instance", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Remove(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ok, err := store.Exists(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("allows the ID to be reused", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Remove(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})

			ginkgo.It("does not return an error if the instance does not exist", func() {
				err := store.Remove(tc.Context, "<instance>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			})
		})

		ginkgo.Describe("func FindByID()", func() {
			ginkgo.It("returns false if the instance does not exist", func() {
				_, ok, err := store.FindByID(tc.Context, "<instance>", process.Mutable)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("returns a read-only instance in read-only mode", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(x.IsReadOnly()).To(gomega.BeTrue())
				gomega.Expect(x.SetVariable("<var>", "<other>")).To(gomega.MatchError(process.ErrReadOnly))
			})

			ginkgo.It("rejects changes to the variables of a read-only instance", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				gomega.Expect(x.SetVariable("<var>", nil)).To(gomega.MatchError(process.ErrReadOnly))
				gomega.Expect(x.SetVariable("<new>", "<value>")).To(gomega.MatchError(process.ErrReadOnly))
				gomega.Expect(x.DeclareVariable("<var>", "readonly")).To(gomega.MatchError(process.ErrReadOnly))

				v, ok := x.Variable("<var>")
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(v).To(gomega.Equal("<value>"))

				_, ok = x.Variable("<new>")
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("migrates the loaded instance", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				store.Migrator = migratorFunc(func(inst *process.Instance) bool {
					inst.SetProcess(ProcessID, "2")
					return true
				})

				x, _, err := store.FindByID(tc.Context, "<instance>", process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(x.ProcessVersion()).To(gomega.Equal("2"))
			})

			ginkgo.It("does not block if the context is canceled", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ctx, cancel := context.WithCancel(tc.Context)
				cancel()

				x, _, err := store.FindByID(ctx, "<instance>", process.ReadOnly)
				if err != nil {
					gomega.Expect(err).To(gomega.MatchError(context.Canceled))
				} else {
					gomega.Expect(x.ID()).To(gomega.Equal("<instance>"))
				}
			})
		})

		ginkgo.Describe("func Values()", func() {
			ginkgo.It("returns all instances", func() {
				err := store.Create(tc.Context, newInstance(store, "<instance-1>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				err = store.Create(tc.Context, newInstance(store, "<instance-2>"))
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				instances, err := store.Values(tc.Context, process.ReadOnly)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				var ids []string
				for _, inst := range instances {
					ids = append(ids, inst.ID())
					gomega.Expect(inst.IsReadOnly()).To(gomega.BeTrue())
				}
				gomega.Expect(ids).To(gomega.ConsistOf("<instance-1>", "<instance-2>"))
			})

			ginkgo.It("returns nothing if there are no instances", func() {
				instances, err := store.Values(tc.Context, process.Mutable)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(instances).To(gomega.BeEmpty())
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("causes subsequent operations to fail", func() {
				err := store.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = store.Exists(tc.Context, "<instance>")
				gomega.Expect(err).To(gomega.MatchError(persistence.ErrStoreClosed))
			})
		})
	})
}
