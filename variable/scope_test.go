package variable_test

import (
	"errors"

	. "github.com/dogmatiq/procyon/variable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type owner struct {
	id, parent string
}

func (o owner) ID() string       { return o.id }
func (o owner) ParentID() string { return o.parent }

type globals map[string]any

func (g globals) Global(n string) (any, bool) {
	v, ok := g[n]
	return v, ok
}

type recorder struct {
	events []string
	last   Change
}

func (r *recorder) BeforeVariableChanged(c Change) {
	r.events = append(r.events, "before:"+c.Name)
}

func (r *recorder) AfterVariableChanged(c Change) {
	r.events = append(r.events, "after:"+c.Name)
	r.last = c
}

var _ = Describe("type Scope", func() {
	var (
		listener *recorder
		scope    *Scope
	)

	BeforeEach(func() {
		listener = &recorder{}
		scope = &Scope{
			Owner:    owner{"<instance>", "<parent>"},
			Globals:  globals{"<global>": "<global-value>"},
			Listener: listener,
		}
	})

	Describe("func Get()", func() {
		It("returns local variables", func() {
			err := scope.Set("x", "a")
			Expect(err).ShouldNot(HaveOccurred())

			v, ok := scope.Get("x")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("a"))
		})

		It("resolves the virtual instance ID variables from the owner", func() {
			v, ok := scope.Get(ProcessInstanceID)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("<instance>"))

			v, ok = scope.Get(ParentProcessInstanceID)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("<parent>"))
		})

		It("prefers local variables over virtual variables", func() {
			err := scope.Set(ProcessInstanceID, "<local>")
			Expect(err).ShouldNot(HaveOccurred())

			v, _ := scope.Get(ProcessInstanceID)
			Expect(v).To(Equal("<local>"))
		})

		It("falls back to the global variables", func() {
			v, ok := scope.Get("<global>")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("<global-value>"))
		})

		It("returns false if the variable is not defined anywhere", func() {
			_, ok := scope.Get("<unknown>")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func Set()", func() {
		It("notifies the listener before and after the change", func() {
			scope.Declare("x", TagTracked)

			err := scope.Set("x", "a")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(listener.events).To(Equal([]string{"before:x", "after:x"}))
			Expect(listener.last).To(Equal(Change{
				InstanceID: "<instance>",
				Name:       "x",
				Old:        nil,
				New:        "a",
				Tags:       []string{TagTracked},
			}))
		})

		It("does nothing when setting an unset variable to nil", func() {
			err := scope.Set("x", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(listener.events).To(BeEmpty())

			_, ok := scope.Get("x")
			Expect(ok).To(BeFalse())
		})

		When("the variable is read-only", func() {
			BeforeEach(func() {
				scope.Declare("x", TagReadOnly)
			})

			It("allows the first assignment after a nil assignment", func() {
				err := scope.Set("x", nil)
				Expect(err).ShouldNot(HaveOccurred())

				err = scope.Set("x", "a")
				Expect(err).ShouldNot(HaveOccurred())
			})

			It("returns a ViolationError when the variable already has a value", func() {
				err := scope.Set("x", "a")
				Expect(err).ShouldNot(HaveOccurred())

				err = scope.Set("x", "b")
				Expect(err).To(Equal(ViolationError{
					InstanceID: "<instance>",
					Name:       "x",
					Message:    "already set and read only",
				}))

				v, _ := scope.Get("x")
				Expect(v).To(Equal("a"))
			})

			It("does not notify the listener of a rejected change", func() {
				err := scope.Set("x", "a")
				Expect(err).ShouldNot(HaveOccurred())

				listener.events = nil
				err = scope.Set("x", "b")
				Expect(err).Should(HaveOccurred())
				Expect(listener.events).To(BeEmpty())
			})
		})
	})

	Describe("func EnforceRequired()", func() {
		It("returns nil when all required variables are assigned", func() {
			scope.Declare("x", TagRequired)

			err := scope.Set("x", 1)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(scope.EnforceRequired()).To(Succeed())
		})

		It("returns a ViolationError for a required variable that was never assigned", func() {
			scope.Declare("x", TagRequired)
			scope.Declare("y")

			err := scope.EnforceRequired()

			var v ViolationError
			Expect(errors.As(err, &v)).To(BeTrue())
			Expect(v.Name).To(Equal("x"))
			Expect(v.InstanceID).To(Equal("<instance>"))
		})
	})

	Describe("func Variables()", func() {
		It("returns declared and assigned variables ordered by name", func() {
			scope.Declare("b", TagReadOnly, TagRequired)
			err := scope.Set("a", 1)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(scope.Variables()).To(Equal([]Variable{
				{Name: "a", Value: 1},
				{
					Name:     "b",
					Tags:     []string{TagReadOnly, TagRequired},
					ReadOnly: true,
					Required: true,
				},
			}))
		})
	})

	Describe("func Restore()", func() {
		It("replaces the variables without notifying the listener", func() {
			err := scope.Set("old", 1)
			Expect(err).ShouldNot(HaveOccurred())
			listener.events = nil

			scope.Restore([]Variable{
				{Name: "x", Value: "a", ReadOnly: true},
			})

			Expect(listener.events).To(BeEmpty())

			_, ok := scope.Get("old")
			Expect(ok).To(BeFalse())

			err = scope.Set("x", "b")
			Expect(err).To(BeAssignableToTypeOf(ViolationError{}))
		})
	})
})
