package logpersistence

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/procyon/internal/x/loggingx"
	"github.com/dogmatiq/procyon/persistence"
)

// BackendName is the name of the log backend, as used in errors.
const BackendName = "log"

// DefaultTimeout is the default maximum time that an operation waits for the
// local view of a topic to catch up.
const DefaultTimeout = 10 * time.Second

// Provider is an implementation of persistence.Provider that stores process
// instances on an append-only topic per process definition.
//
// Each topic is consumed into a view held in memory. Operations are served
// from the view once it has caught up with the topic. Backends opened for the
// same process definition share the same view.
type Provider struct {
	// Topics is the source of the topic for each process definition. If it is
	// nil, each provider uses its own in-memory topics.
	Topics TopicSource

	// Timeout is the maximum time that an operation waits for the view to
	// catch up with the topic. If it is non-positive, DefaultTimeout is used.
	Timeout time.Duration

	// BackoffStrategy is the strategy used to delay restarting the
	// materialization of a topic after a failure. If it is nil,
	// backoff.DefaultStrategy is used.
	BackoffStrategy backoff.Strategy

	// Logger is the target for log messages about materialization.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m      sync.Mutex
	memory MemoryTopics
	views  map[string]*view
}

// Open returns the backend for the process definition with the given ID.
func (p *Provider) Open(ctx context.Context, processID string) (persistence.Backend, error) {
	p.m.Lock()
	defer p.m.Unlock()

	v, ok := p.views[processID]
	if !ok {
		t, err := p.topics().Topic(ctx, processID)
		if err != nil {
			return nil, err
		}

		v = &view{
			topic:           t,
			backoffStrategy: p.BackoffStrategy,
			logger: loggingx.WithPrefix(
				p.Logger,
				"[log %s] ",
				processID,
			),
		}
		v.start()

		if p.views == nil {
			p.views = map[string]*view{}
		}
		p.views[processID] = v
	}

	v.refs++

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &backend{
		view:    v,
		timeout: timeout,
		release: func() {
			p.release(processID, v)
		},
	}, nil
}

// Compact removes the entries from the topic of the given process definition
// that no longer contribute to its state.
//
// Only entries that have already been applied to the local view are
// considered.
func (p *Provider) Compact(ctx context.Context, processID string) error {
	p.m.Lock()
	v, ok := p.views[processID]
	p.m.Unlock()

	if ok {
		return v.topic.Compact(ctx, v.Offset())
	}

	t, err := p.topics().Topic(ctx, processID)
	if err != nil {
		return err
	}

	head, err := t.Head(ctx)
	if err != nil {
		return err
	}

	return t.Compact(ctx, head)
}

// topics returns the source of topics to use.
func (p *Provider) topics() TopicSource {
	if p.Topics != nil {
		return p.Topics
	}

	return &p.memory
}

// release removes a reference to v, stopping it when there are none left.
func (p *Provider) release(processID string, v *view) {
	p.m.Lock()
	v.refs--
	stop := v.refs == 0
	if stop {
		delete(p.views, processID)
	}
	p.m.Unlock()

	if stop {
		v.stop()
	}
}
