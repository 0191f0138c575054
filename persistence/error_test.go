package persistence_test

import (
	"errors"

	. "github.com/dogmatiq/procyon/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type DuplicateInstanceError", func() {
	Describe("func Error()", func() {
		It("includes the instance and process IDs", func() {
			err := DuplicateInstanceError{
				ProcessID:  "<process>",
				InstanceID: "<instance>",
			}

			Expect(err).To(
				MatchError("process instance '<instance>' of process '<process>' already exists"),
			)
		})
	})
})

var _ = Describe("type ConflictError", func() {
	Describe("func Error()", func() {
		It("includes the instance and process IDs", func() {
			err := ConflictError{
				ProcessID:  "<process>",
				InstanceID: "<instance>",
			}

			Expect(err).To(
				MatchError("optimistic concurrency conflict updating process instance '<instance>' of process '<process>'"),
			)
		})
	})
})

var _ = Describe("type UnavailableError", func() {
	cause := errors.New("<cause>")

	err := UnavailableError{
		Backend: "<backend>",
		Cause:   cause,
	}

	Describe("func Error()", func() {
		It("includes the backend name and the cause", func() {
			Expect(err).To(MatchError("<backend> backend is unavailable: <cause>"))
		})
	})

	Describe("func Unwrap()", func() {
		It("returns the cause", func() {
			Expect(errors.Is(err, cause)).To(BeTrue())
		})
	})
})

var _ = Describe("type SessionMismatchError", func() {
	Describe("func Error()", func() {
		It("includes both backend names", func() {
			err := SessionMismatchError{
				Backend: "<backend>",
				Session: sessionStub{"<other>"},
			}

			Expect(err).To(MatchError("<backend> backend can not participate in a <other> session"))
		})
	})
})

// sessionStub is a Session started by a fictitious backend.
type sessionStub struct {
	backend string
}

func (s sessionStub) Backend() string {
	return s.backend
}
