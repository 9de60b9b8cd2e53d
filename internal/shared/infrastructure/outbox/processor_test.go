package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures bodies and fails for selected routing keys.
type recordingPublisher struct {
	mu      sync.Mutex
	bodies  map[string][][]byte
	failAll bool
	failFor map[string]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{bodies: map[string][][]byte{}, failFor: map[string]bool{}}
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll || p.failFor[routingKey] {
		return errors.New("broker unreachable")
	}
	p.bodies[routingKey] = append(p.bodies[routingKey], body)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.bodies {
		n += len(b)
	}
	return n
}

func subscriptionMessage(routingKey string) *outbox.Message {
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "Subscription",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       json.RawMessage(`{"status":"PENDING"}`),
		CreatedAt:     time.Now().Add(-time.Second),
	}
}

func seed(t *testing.T, repo *outbox.InMemoryRepository, keys ...string) []*outbox.Message {
	t.Helper()
	msgs := make([]*outbox.Message, 0, len(keys))
	for _, key := range keys {
		msgs = append(msgs, subscriptionMessage(key))
	}
	require.NoError(t, repo.SaveBatch(context.Background(), msgs))
	return msgs
}

func TestProcessor_PublishesBatch(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newRecordingPublisher()
	metrics := observability.NewInMemoryMetrics()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, outbox.WithMetrics(metrics))

	msgs := seed(t, repo, "subscriptions.subscription.created", "subscriptions.payment.recorded")

	require.NoError(t, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 2, publisher.count())
	for _, msg := range msgs {
		assert.True(t, msg.IsPublished())
	}

	stats := processor.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	require.NotNil(t, stats.LastProcessedAt)
	require.NotNil(t, stats.OldestMessageAt)
	assert.Positive(t, stats.LagSeconds)
	assert.Equal(t, int64(1), metrics.GetCounter(outbox.MetricPublished,
		observability.T("routing_key", "subscriptions.payment.recorded")))

	require.NoError(t, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 2, publisher.count(), "published messages are not sent again")
	assert.Nil(t, processor.GetStats().OldestMessageAt)
}

func TestProcessor_FailuresRetryOrDeadLetter(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantDead   bool
	}{
		{name: "retry budget left", maxRetries: 5},
		{name: "single attempt", maxRetries: 1, wantDead: true},
		{name: "retries disabled", maxRetries: 0, wantDead: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := outbox.NewInMemoryRepository()
			publisher := newRecordingPublisher()
			publisher.failFor["subscriptions.subscription.expired"] = true
			config := outbox.DefaultProcessorConfig()
			config.MaxRetries = tt.maxRetries
			metrics := observability.NewInMemoryMetrics()
			processor := outbox.NewProcessor(repo, publisher, config, nil, outbox.WithMetrics(metrics))

			msgs := seed(t, repo, "subscriptions.subscription.created", "subscriptions.subscription.expired")

			require.NoError(t, processor.ProcessOnce(context.Background()))
			assert.True(t, msgs[0].IsPublished())
			failed := msgs[1]
			assert.False(t, failed.IsPublished())

			stats := processor.GetStats()
			assert.Equal(t, uint64(1), stats.PublishedCount)
			assert.Equal(t, "broker unreachable", stats.LastError)
			require.NotNil(t, stats.LastErrorAt)

			tag := observability.T("routing_key", "subscriptions.subscription.expired")
			if tt.wantDead {
				require.NotNil(t, failed.DeadLetteredAt)
				assert.Equal(t, "broker unreachable", *failed.DeadLetterReason)
				assert.Equal(t, uint64(1), stats.DeadCount)
				assert.Zero(t, stats.FailedCount)
				assert.Equal(t, int64(1), metrics.GetCounter(outbox.MetricDead, tag))
				return
			}
			assert.Nil(t, failed.DeadLetteredAt)
			assert.Equal(t, 1, failed.RetryCount)
			require.NotNil(t, failed.NextRetryAt)
			assert.Equal(t, uint64(1), stats.FailedCount)
			assert.Equal(t, int64(1), metrics.GetCounter(outbox.MetricRetried, tag))
		})
	}
}

func TestProcessor_RetryBackoffDoublesUpToCeiling(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newRecordingPublisher()
	publisher.failAll = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 10
	config.BreakerThreshold = 0
	config.RetryBackoffBase = time.Second
	config.RetryBackoffMax = 3 * time.Second
	// A clock in the past keeps every scheduled retry due immediately.
	at := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	processor := outbox.NewProcessor(repo, publisher, config, nil, outbox.WithClock(func() time.Time { return at }))

	msg := seed(t, repo, "subscriptions.subscription.renewed")[0]

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second} {
		require.NoError(t, processor.ProcessOnce(context.Background()))
		require.NotNil(t, msg.NextRetryAt)
		assert.Equal(t, at.Add(want), *msg.NextRetryAt)
	}
	assert.Equal(t, 4, msg.RetryCount)
}

func TestProcessor_BreakerOpensAndPausesBatch(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newRecordingPublisher()
	publisher.failAll = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 10
	config.BreakerThreshold = 2
	config.BreakerTimeout = time.Hour
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	msgs := seed(t, repo, "a", "b", "c", "d")
	require.NoError(t, processor.ProcessOnce(context.Background()))

	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Equal(t, 1, msgs[1].RetryCount)
	assert.Zero(t, msgs[2].RetryCount, "paused messages keep their retry budget")
	assert.Zero(t, msgs[3].RetryCount)

	stats := processor.GetStats()
	assert.Equal(t, "open", stats.BreakerState)
	assert.Equal(t, uint64(2), stats.FailedCount)
	assert.Zero(t, stats.DeadCount)
}

func TestProcessor_BreakerDisabled(t *testing.T) {
	config := outbox.DefaultProcessorConfig()
	config.BreakerThreshold = 0
	processor := outbox.NewProcessor(outbox.NewInMemoryRepository(), newRecordingPublisher(), config, nil)

	assert.Equal(t, "disabled", processor.GetStats().BreakerState)
}

func TestProcessor_PublishesEnvelope(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newRecordingPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil)

	msg := subscriptionMessage("subscriptions.subscription.created")
	msg.Metadata = json.RawMessage(`{"user_id":"` + uuid.NewString() + `"}`)
	require.NoError(t, repo.Save(context.Background(), msg))

	require.NoError(t, processor.ProcessOnce(context.Background()))
	bodies := publisher.bodies["subscriptions.subscription.created"]
	require.Len(t, bodies, 1)

	var envelope outbox.Envelope
	require.NoError(t, json.Unmarshal(bodies[0], &envelope))
	assert.Equal(t, msg.EventID, envelope.EventID)
	assert.Equal(t, msg.AggregateID, envelope.AggregateID)
	assert.Equal(t, "Subscription", envelope.AggregateType)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(envelope.Payload))
}

func TestProcessor_StartStop(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newRecordingPublisher()
	config := outbox.DefaultProcessorConfig()
	config.PollInterval = 5 * time.Millisecond
	processor := outbox.NewProcessor(repo, publisher, config, nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.GetStats().IsRunning)

	seed(t, repo, "subscriptions.subscription.created")
	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.IsRunning())
	assert.False(t, processor.GetStats().IsRunning)
}

func TestProcessor_StopsWithParentContext(t *testing.T) {
	processor := outbox.NewProcessor(outbox.NewInMemoryRepository(), newRecordingPublisher(), outbox.DefaultProcessorConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, processor.Start(ctx))
	cancel()

	// Stop still returns once the loop has observed the cancellation.
	processor.Stop()
	assert.False(t, processor.IsRunning())
}

func TestInMemoryRepository_DeleteOld(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewInMemoryRepository()

	msgs := seed(t, repo, "old", "fresh")
	longAgo := time.Now().AddDate(0, 0, -30)
	msgs[0].PublishedAt = &longAgo
	require.NoError(t, repo.MarkPublished(ctx, msgs[1].ID))

	deleted, err := repo.DeleteOld(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, repo.Messages(), 1)
}
