package events

import (
	"context"
	"sync"

	"github.com/upgrade-events/Upgrade-Events/pkg/kafka"
)

// Publisher emits ticketing domain events
type Publisher interface {
	Publish(ctx context.Context, topic string, msg kafka.Message) error
}

// NewKafkaPublisher publishes through a franz-go producer
func NewKafkaPublisher(p *kafka.Producer) Publisher {
	return p
}

// NoopPublisher drops every event; used when Kafka is disabled
type NoopPublisher struct{}

// Publish does nothing
func (NoopPublisher) Publish(context.Context, string, kafka.Message) error { return nil }

// Published is one recorded event
type Published struct {
	Topic string
	Key   string
	Msg   kafka.Message
}

// MemoryPublisher records events for tests
type MemoryPublisher struct {
	mu         sync.Mutex
	events     []Published
	ShouldFail bool
	FailureErr error
}

// NewMemoryPublisher creates an empty MemoryPublisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the event, or fails when configured to
func (p *MemoryPublisher) Publish(_ context.Context, topic string, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ShouldFail {
		return p.FailureErr
	}
	p.events = append(p.events, Published{Topic: topic, Key: msg.Key(), Msg: msg})
	return nil
}

// Events returns a copy of everything published so far
func (p *MemoryPublisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.events))
	copy(out, p.events)
	return out
}

// ByTopic returns the events published to topic
func (p *MemoryPublisher) ByTopic(topic string) []Published {
	var out []Published
	for _, e := range p.Events() {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
