package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/registry"
)

// outcome is what happened to one outbox row within a batch.
type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeDuplicate    outcome = "duplicate"
	outcomeRetry        outcome = "retry"
	outcomeDeadLettered outcome = "dead_lettered"
)

// processBatch claims up to batchSize rows and relays each one. It reports
// whether any rows were claimed. A returned error rolls the batch back.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	tally := map[outcome]int{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.settings.batchSize, s.settings.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			result, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			tally[result]++
			s.metrics.IncEvent(string(event.EventType), string(result))
		}
		return nil
	})

	rows := 0
	for _, n := range tally {
		rows += n
	}
	if rows > 0 {
		s.metrics.ObserveBatch(rows)
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"rows":          rows,
			"published":     tally[outcomePublished],
			"duplicates":    tally[outcomeDuplicate],
			"retries":       tally[outcomeRetry],
			"dead_lettered": tally[outcomeDeadLettered],
		}), "outbox batch relayed")
	}
	return rows > 0, err
}

// relay moves one row to a final state for this pass. Only storage errors are
// returned; publish failures become retry or dead-letter outcomes.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(s.logg.WithFields(ctx, rowFields(event)), tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = s.logg.WithFields(ctx, resolvedFields(event, resolved))

	if s.alreadySent(ctx, event.ID) {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Warn(ctx, "outbox row already published, skipping")
		return outcomeDuplicate, nil
	}

	if err := s.send(ctx, event, resolved); err != nil {
		s.forget(ctx, event.ID)
		return s.handleFailure(ctx, tx, event, err)
	}
	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return "", fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.logg.Info(ctx, "outbox event published")
	return outcomePublished, nil
}

func (s *Service) handleFailure(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error) (outcome, error) {
	attempt := event.AttemptCount + 1
	ctx = s.logg.WithField(ctx, "attempt_count", attempt)

	var nonRetryable registry.NonRetryableError
	switch {
	case errors.As(err, &nonRetryable):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	case attempt >= s.settings.maxAttempts:
		terminal := fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminal)
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return "", fmt.Errorf("mark failed %s: %w", event.ID, markErr)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row into the DLQ and retires it from the outbox in
// the same transaction.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": cause.Error()})
	s.logg.Warn(ctx, "outbox event dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.settings.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// alreadySent claims the publish marker for id and reports whether another
// pass held it first. An unreachable guard counts as unclaimed; consumers
// dedupe on event_id.
func (s *Service) alreadySent(ctx context.Context, id uuid.UUID) bool {
	if s.guard == nil {
		return false
	}
	seen, err := s.guard.CheckAndMarkProcessed(ctx, guardConsumer, id)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "publish guard unavailable")
		return false
	}
	return seen
}

func (s *Service) forget(ctx context.Context, id uuid.UUID) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Delete(ctx, guardConsumer, id); err != nil {
		s.logg.Error(ctx, "failed to clear publish marker", err)
	}
}

func (s *Service) send(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %q", errNoPublisher, topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	started := s.now()
	result := pub.Publish(ctx, messageFor(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %q returned no result", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		return err
	}
	s.metrics.ObservePublish(topic, s.now().Sub(started))
	return nil
}

// messageFor carries the envelope bytes untouched; attributes let
// subscribers filter without decoding.
func messageFor(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func rowFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func resolvedFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := rowFields(event)
	fields["topic"] = resolved.Descriptor.Topic
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}
