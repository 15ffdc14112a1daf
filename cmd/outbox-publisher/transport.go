package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers resolves publishers from the shared client. A topic the
// client does not know yields nil, which the relay dead-letters.
func topicPublishers(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p: p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := g.p.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return gcpResult{res: res}
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("empty publish result")
	}
	return r.res.Get(ctx)
}

// backoff doubles the wait after each consecutive failure up to max and adds
// up to jitter of random delay so replicas do not poll in lockstep.
type backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  time.Duration
	current time.Duration
}

func newBackoff(base, max, jitter time.Duration) *backoff {
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, jitter: jitter}
}

func (b *backoff) next() time.Duration {
	switch {
	case b.current <= 0:
		b.current = b.base * 2
	default:
		b.current *= 2
	}
	if b.current > b.max {
		b.current = b.max
	}
	return b.current + b.spread()
}

func (b *backoff) idle() time.Duration {
	return b.base + b.spread()
}

func (b *backoff) reset() {
	b.current = 0
}

func (b *backoff) spread() time.Duration {
	if b.jitter <= 0 {
		return 0
	}
	return rand.N(b.jitter)
}
