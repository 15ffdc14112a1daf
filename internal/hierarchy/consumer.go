package hierarchy

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/payloads"
)

const downlineConsumerName = "downline-reconciler"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// DownlineConsumer listens to hierarchy events and refreshes the sponsor's
// cached direct downline count for every registration it sees.
type DownlineConsumer struct {
	tree         Service
	subscription receiver
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewDownlineConsumer builds the reconciler over a hierarchy subscription.
func NewDownlineConsumer(tree Service, subscription receiver, manager *idempotency.Manager, logg *logger.Logger) (*DownlineConsumer, error) {
	if tree == nil {
		return nil, fmt.Errorf("hierarchy service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("hierarchy subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &DownlineConsumer{
		tree:         tree,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *DownlineConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *DownlineConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventResellerRegistered) {
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := envelope.ID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	var payload payloads.ResellerRegisteredEvent
	if err := envelope.DecodeData(&payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	if payload.SponsorID == nil {
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, downlineConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithResellerID(logCtx, payload.SponsorID.String())
	count, err := c.tree.RecomputeDownlineCount(ctx, nil, *payload.SponsorID)
	if err != nil {
		c.logg.Error(logCtx, "downline recompute failed", err)
		_ = c.idempotency.Delete(ctx, downlineConsumerName, eventID)
		return processResult{nack: true}
	}
	c.logg.Info(c.logg.WithField(logCtx, "downline_count", count), "downline count refreshed")
	return processResult{ack: true}
}
