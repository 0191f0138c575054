package logpersistence

import (
	"context"
	"sync"

	"go.etcd.io/bbolt"
)

// TopicSource provides the topic for each process definition.
type TopicSource interface {
	// Topic returns the topic that holds the instances of the process
	// definition with the given ID.
	Topic(ctx context.Context, processID string) (Topic, error)
}

// MemoryTopics is a TopicSource that provides in-memory topics.
type MemoryTopics struct {
	m      sync.Mutex
	topics map[string]*MemoryTopic
}

// Topic returns the topic for the given process definition.
func (s *MemoryTopics) Topic(ctx context.Context, processID string) (Topic, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.topics == nil {
		s.topics = map[string]*MemoryTopic{}
	}

	t, ok := s.topics[processID]
	if !ok {
		t = &MemoryTopic{}
		s.topics[processID] = t
	}

	return t, nil
}

// BoltTopics is a TopicSource that provides topics stored in a BoltDB
// database, one per process definition.
type BoltTopics struct {
	// DB is the database that contains the topics.
	DB *bbolt.DB

	m      sync.Mutex
	topics map[string]*BoltTopic
}

// Topic returns the topic for the given process definition.
func (s *BoltTopics) Topic(ctx context.Context, processID string) (Topic, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.topics == nil {
		s.topics = map[string]*BoltTopic{}
	}

	t, ok := s.topics[processID]
	if !ok {
		t = &BoltTopic{
			DB:   s.DB,
			Name: processID,
		}
		s.topics[processID] = t
	}

	return t, nil
}
