package memorypersistence_test

import (
	"context"

	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/internal/storetest"
	. "github.com/dogmatiq/procyon/persistence/memorypersistence"
	. "github.com/onsi/ginkgo/v2"
)

var _ = Describe("type Provider", func() {
	storetest.Declare(
		func(ctx context.Context) storetest.Out {
			return storetest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					return &Provider{}, nil
				},
			}
		},
		nil,
	)
})
