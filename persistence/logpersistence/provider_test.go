package logpersistence_test

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/persistence/internal/storetest"
	"github.com/dogmatiq/procyon/persistence/logpersistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Provider", func() {
	Context("when using in-memory topics", func() {
		storetest.Declare(
			func(ctx context.Context) storetest.Out {
				return storetest.Out{
					NewProvider: func() (persistence.Provider, func()) {
						return &logpersistence.Provider{
							Logger: logging.DiscardLogger{},
						}, nil
					},
				}
			},
			nil,
		)
	})

	Context("when using BoltDB topics", func() {
		storetest.Declare(
			func(ctx context.Context) storetest.Out {
				return storetest.Out{
					NewProvider: func() (persistence.Provider, func()) {
						db, close := openTemp()

						return &logpersistence.Provider{
							Topics: &logpersistence.BoltTopics{
								DB: db,
							},
							Logger: logging.DiscardLogger{},
						}, close
					},
				}
			},
			nil,
		)
	})

	var (
		ctx    context.Context
		cancel context.CancelFunc
		record persistence.Record
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		record = persistence.Record{
			ID: "<instance>",
			Packet: marshalkit.Packet{
				MediaType: "<media-type>",
				Data:      []byte("<data>"),
			},
		}
	})

	AfterEach(func() {
		cancel()
	})

	It("reports the backend as unavailable if the view does not catch up in time", func() {
		provider := &logpersistence.Provider{
			Topics: topicSource{
				topic: &stalledTopic{},
			},
			Timeout: 10 * time.Millisecond,
			Logger:  logging.DiscardLogger{},
		}

		b, err := provider.Open(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())
		defer b.Close()

		_, _, err = b.Load(ctx, nil, "<instance>")

		var unavailable persistence.UnavailableError
		Expect(err).To(BeAssignableToTypeOf(unavailable))
		Expect(err).To(MatchError(context.DeadlineExceeded))

		unavailable = err.(persistence.UnavailableError)
		Expect(unavailable.Backend).To(Equal(logpersistence.BackendName))
	})

	It("returns the context error if the caller's context is canceled", func() {
		provider := &logpersistence.Provider{
			Topics: topicSource{
				topic: &stalledTopic{},
			},
			Logger: logging.DiscardLogger{},
		}

		b, err := provider.Open(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())
		defer b.Close()

		shortCtx, cancelShort := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancelShort()

		_, _, err = b.Load(shortCtx, nil, "<instance>")
		Expect(err).To(Equal(context.DeadlineExceeded))
	})

	It("restarts materialization after the topic fails", func() {
		topic := &flakyTopic{}
		topic.failures.Store(3)

		provider := &logpersistence.Provider{
			Topics: topicSource{
				topic: topic,
			},
			BackoffStrategy: backoff.Constant(time.Millisecond),
			Logger:          logging.DiscardLogger{},
		}

		b, err := provider.Open(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())
		defer b.Close()

		ok, err := b.Insert(ctx, nil, record)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		r, ok, err := b.Load(ctx, nil, "<instance>")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(record))
	})

	It("rebuilds the view from the topic when the process is reopened", func() {
		topic := &logpersistence.MemoryTopic{}
		provider := &logpersistence.Provider{
			Topics: topicSource{
				topic: topic,
			},
			Logger: logging.DiscardLogger{},
		}

		b, err := provider.Open(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())

		_, err = b.Insert(ctx, nil, record)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(b.Close()).To(Succeed())

		b, err = provider.Open(ctx, "<process>")
		Expect(err).ShouldNot(HaveOccurred())
		defer b.Close()

		r, ok, err := b.Load(ctx, nil, "<instance>")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(record))
	})

	Describe("func Compact()", func() {
		It("drops superseded entries and removed instances from the topic", func() {
			topic := &logpersistence.MemoryTopic{}
			provider := &logpersistence.Provider{
				Topics: topicSource{
					topic: topic,
				},
				Logger: logging.DiscardLogger{},
			}

			b, err := provider.Open(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())
			defer b.Close()

			_, err = b.Insert(ctx, nil, record)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = b.Update(ctx, nil, record)
			Expect(err).ShouldNot(HaveOccurred())

			removed := record
			removed.ID = "<removed>"

			_, err = b.Insert(ctx, nil, removed)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = b.Delete(ctx, nil, removed.ID)
			Expect(err).ShouldNot(HaveOccurred())

			err = provider.Compact(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			cur, err := topic.Open(ctx, 0)
			Expect(err).ShouldNot(HaveOccurred())
			defer cur.Close()

			e, err := cur.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(e.Offset).To(BeEquivalentTo(1))
			Expect(e.Key).To(Equal("<instance>"))

			head, err := topic.Head(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(head).To(BeEquivalentTo(4))

			r, ok, err := b.Load(ctx, nil, "<instance>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(r.Version).To(BeEquivalentTo(1))
		})

		DescribeTable(
			"reopens a process after its last entry is compacted away",
			func(source func() (logpersistence.TopicSource, func())) {
				topics, cleanup := source()
				if cleanup != nil {
					defer cleanup()
				}

				provider := &logpersistence.Provider{
					Topics:  topics,
					Timeout: 500 * time.Millisecond,
					Logger:  logging.DiscardLogger{},
				}

				b, err := provider.Open(ctx, "<process>")
				Expect(err).ShouldNot(HaveOccurred())

				_, err = b.Insert(ctx, nil, record)
				Expect(err).ShouldNot(HaveOccurred())

				_, err = b.Delete(ctx, nil, record.ID)
				Expect(err).ShouldNot(HaveOccurred())

				err = provider.Compact(ctx, "<process>")
				Expect(err).ShouldNot(HaveOccurred())

				err = b.Close()
				Expect(err).ShouldNot(HaveOccurred())

				b, err = provider.Open(ctx, "<process>")
				Expect(err).ShouldNot(HaveOccurred())
				defer b.Close()

				_, ok, err := b.Load(ctx, nil, "<other>")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(ok).To(BeFalse())

				_, err = b.Insert(ctx, nil, record)
				Expect(err).ShouldNot(HaveOccurred())

				_, ok, err = b.Load(ctx, nil, record.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(ok).To(BeTrue())
			},
			Entry(
				"in-memory topics",
				func() (logpersistence.TopicSource, func()) {
					return topicSource{
						topic: &logpersistence.MemoryTopic{},
					}, nil
				},
			),
			Entry(
				"BoltDB topics",
				func() (logpersistence.TopicSource, func()) {
					db, close := openTemp()
					return &logpersistence.BoltTopics{DB: db}, close
				},
			),
		)

		It("compacts the topic of a process that is not open", func() {
			topic := &logpersistence.MemoryTopic{}
			provider := &logpersistence.Provider{
				Topics: topicSource{
					topic: topic,
				},
				Logger: logging.DiscardLogger{},
			}

			_, err := topic.Append(ctx, "<instance>", []byte("<first>"))
			Expect(err).ShouldNot(HaveOccurred())

			_, err = topic.Append(ctx, "<instance>", []byte("<second>"))
			Expect(err).ShouldNot(HaveOccurred())

			err = provider.Compact(ctx, "<process>")
			Expect(err).ShouldNot(HaveOccurred())

			cur, err := topic.Open(ctx, 0)
			Expect(err).ShouldNot(HaveOccurred())
			defer cur.Close()

			e, err := cur.Next(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(e.Value).To(Equal([]byte("<second>")))
		})
	})
})
