package storetest

import (
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/onsi/gomega"
)

// SetupStore sets up a new store with optimistic locking enabled.
func (tc *TestContext) SetupStore() (*persistence.Store, func()) {
	p, close := tc.Out.NewProvider()

	b, err := p.Open(tc.Context, ProcessID)
	if err != nil {
		if close != nil {
			close()
		}

		gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
	}

	s := &persistence.Store{
		ProcessID:    ProcessID,
		Backend:      b,
		Marshaler:    tc.In.Marshaler,
		Lock:         true,
		Transactions: persistence.ContextTransactionManager{},
		Arena:        &process.Arena{},
	}

	return s, func() {
		s.Close()

		if close != nil {
			close()
		}
	}
}

// newInstance returns a new active instance allocated in the store's arena.
func newInstance(s *persistence.Store, id string) *process.Instance {
	inst := s.Arena.NewInstance(id, ProcessID, "1")
	gomega.Expect(inst.SetState(process.StateActive)).To(gomega.Succeed())
	gomega.Expect(inst.SetVariable("<var>", "<value>")).To(gomega.Succeed())

	return inst
}
