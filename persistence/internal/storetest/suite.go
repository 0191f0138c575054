package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/onsi/ginkgo/v2"
)

// Transaction is a session that can be committed or rolled back.
type Transaction interface {
	persistence.Session

	Commit() error
	Rollback() error
}

// In is a container for values provided by the test suite to the
// backend-specific initialization code.
type In struct {
	// Marshaler marshals and unmarshals process instances.
	Marshaler process.Marshaler
}

// Out is a container for values that are provided by the backend-specific
// initialization code to the test suite.
type Out struct {
	// NewProvider is a function that creates a new provider.
	NewProvider func() (p persistence.Provider, close func())

	// Begin starts a new transaction against the given provider. It is nil if
	// the backend does not support sessions.
	Begin func(context.Context, persistence.Provider) (Transaction, error)

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration
}

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 10 * time.Second

// ProcessID is the ID of the process definition used by the tests.
const ProcessID = "<process>"

// TestContext encapsulates the shared test context passed to the tests.
type TestContext struct {
	Context context.Context
	In      In
	Out     Out
}

// Declare declares generic behavioral tests for a specific backend
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	var (
		tc     TestContext
		cancel context.CancelFunc
	)

	ginkgo.Context("standard store test suite", func() {
		ginkgo.BeforeEach(func() {
			setupCtx, cancelSetup := context.WithTimeout(context.Background(), DefaultTestTimeout)
			defer cancelSetup()

			tc.In = In{
				Marshaler: process.NewMarshaler(nil),
			}

			tc.Out = before(setupCtx)

			if tc.Out.TestTimeout <= 0 {
				tc.Out.TestTimeout = DefaultTestTimeout
			}

			tc.Context, cancel = context.WithTimeout(context.Background(), tc.Out.TestTimeout)
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}

			cancel()
		})

		declareProviderTests(&tc)
		declareStoreTests(&tc)
		declareSessionTests(&tc)
	})
}
