package bboltx

import (
	"context"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// DefaultMode is the file mode used for new database files when no mode is
// given.
const DefaultMode os.FileMode = 0600

// Open creates and opens a database at the given path.
//
// If the deadline from ctx is sooner than opts.Timeout, the context deadline is
// used as the timeout for acquiring the file lock instead.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if mode == 0 {
		mode = DefaultMode
	}

	// A non-positive timeout in the BoltDB options means "wait forever", so an
	// already-ended context has to be checked explicitly.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		var clone bbolt.Options
		if opts == nil {
			clone = *bbolt.DefaultOptions
		} else {
			clone = *opts
		}

		if clone.Timeout == 0 || clone.Timeout > timeout {
			clone.Timeout = timeout
		}

		opts = &clone
	}

	db, err := bbolt.Open(path, mode, opts)
	if err == bbolt.ErrTimeout {
		return nil, context.DeadlineExceeded
	}

	return db, err
}
