package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

var errNoPublisher = errors.New("publisher not configured")

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// publisherPool keeps one publisher per topic for the life of Run so
// batching and ordering state survive between polls. It is only touched
// from the Run goroutine.
type publisherPool struct {
	factory publisherFactory
	byTopic map[string]publisher
}

func newPublisherPool(factory publisherFactory) *publisherPool {
	return &publisherPool{factory: factory, byTopic: map[string]publisher{}}
}

func (p *publisherPool) get(topic string) publisher {
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.factory(topic)
	if pub != nil {
		p.byTopic[topic] = pub
	}
	return pub
}

// stopAll flushes pending messages and forgets every publisher.
func (p *publisherPool) stopAll() {
	for topic, pub := range p.byTopic {
		pub.Stop()
		delete(p.byTopic, topic)
	}
}

// gcpPublisher adapts *pubsub.Publisher to the publisher interface.
type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{Publisher: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.Publisher.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return res
}
