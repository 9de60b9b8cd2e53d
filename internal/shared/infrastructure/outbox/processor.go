package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
)

// Outbox metric names, tagged by routing key.
const (
	MetricPublished = "screenpass.outbox.published"
	MetricRetried   = "screenpass.outbox.retried"
	MetricDead      = "screenpass.outbox.dead"
)

// ProcessorConfig controls polling, retry scheduling and the broker breaker.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration

	// BreakerThreshold is the number of consecutive publish failures that
	// opens the broker circuit. Zero disables the breaker.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultProcessorConfig returns the settings used by the worker.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithMetrics reports delivery outcomes per routing key.
func WithMetrics(metrics observability.Metrics) ProcessorOption {
	return func(p *Processor) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithClock replaces time.Now for retry scheduling and lag reporting.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// Processor relays stored subscription and payment events to the broker.
// Each message is delivered at least once; consumers dedupe on event ID.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time
	breaker   *gobreaker.CircuitBreaker[struct{}]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates an outbox processor.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   observability.NoopMetrics{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if config.BreakerThreshold > 0 {
		p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "outbox-publisher",
			Timeout: config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.BreakerThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("broker circuit changed state",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	return p
}

// Start launches the polling loop. Calling Start on a running processor is a no-op.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries,
	)
	return nil
}

// Stop cancels the polling loop and waits for the current batch to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether the polling loop is active.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDead
	outcomePaused
)

// ProcessOnce publishes one batch of due messages synchronously.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}
	p.noteBatch(messages)

	for _, msg := range messages {
		if p.deliver(ctx, msg) == outcomePaused {
			// The breaker is open; the rest of the batch keeps its retry budget.
			return nil
		}
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, msg *Message) outcome {
	key := observability.T("routing_key", msg.RoutingKey)

	err := p.publish(ctx, msg)
	if err == nil {
		if markErr := p.repo.MarkPublished(ctx, msg.ID); markErr != nil {
			p.logger.Error("failed to mark outbox message published",
				"id", msg.ID,
				"event_id", msg.EventID,
				"error", markErr,
			)
			return outcomeRetry
		}
		p.bump(func(s *Stats) { s.PublishedCount++ })
		p.metrics.Counter(MetricPublished, 1, key)
		return outcomePublished
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.noteError(err)
		p.logger.Warn("outbox publishing paused", "error", err)
		return outcomePaused
	}

	meta := decodeMetadata(msg.Metadata)
	p.logger.Warn("failed to publish outbox message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"attempt", msg.RetryCount+1,
		"correlation_id", meta.CorrelationID.String(),
		"user_id", meta.UserID.String(),
		"error", err,
	)

	if p.exhausted(msg) {
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to dead-letter outbox message", "id", msg.ID, "error", markErr)
		}
		p.bump(func(s *Stats) { s.DeadCount++ })
		p.noteError(err)
		p.metrics.Counter(MetricDead, 1, key)
		return outcomeDead
	}

	next := p.now().Add(p.backoff(msg.RetryCount + 1))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), next); markErr != nil {
		p.logger.Error("failed to schedule outbox retry", "id", msg.ID, "error", markErr)
	}
	p.bump(func(s *Stats) { s.FailedCount++ })
	p.noteError(err)
	p.metrics.Counter(MetricRetried, 1, key)
	return outcomeRetry
}

func (p *Processor) publish(ctx context.Context, msg *Message) error {
	body, err := msg.Body()
	if err != nil {
		return err
	}
	if p.breaker == nil {
		return p.publisher.Publish(ctx, msg.RoutingKey, body)
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(ctx, msg.RoutingKey, body)
	})
	return err
}

func (p *Processor) exhausted(msg *Message) bool {
	return p.config.MaxRetries <= 0 || msg.RetryCount+1 >= p.config.MaxRetries
}

// backoff doubles from RetryBackoffBase per attempt, capped at RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base, ceiling := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return min(delay, ceiling)
}

func decodeMetadata(raw json.RawMessage) domain.EventMetadata {
	var meta domain.EventMetadata
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

// Stats is a point-in-time view of processor health.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
	BreakerState    string
}

// GetStats returns a copy of the current statistics.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	stats := p.stats
	p.statsMu.Unlock()

	stats.IsRunning = p.IsRunning()
	stats.BreakerState = "disabled"
	if p.breaker != nil {
		stats.BreakerState = p.breaker.State().String()
	}
	return stats
}

func (p *Processor) bump(update func(*Stats)) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	update(&p.stats)
}

func (p *Processor) noteError(err error) {
	at := p.now()
	p.bump(func(s *Stats) {
		s.LastError = err.Error()
		s.LastErrorAt = &at
	})
}

func (p *Processor) noteBatch(messages []*Message) {
	at := p.now()
	p.bump(func(s *Stats) {
		s.LastProcessedAt = &at
		s.OldestMessageAt = nil
		s.LagSeconds = 0
		for _, msg := range messages {
			if s.OldestMessageAt == nil || msg.CreatedAt.Before(*s.OldestMessageAt) {
				created := msg.CreatedAt
				s.OldestMessageAt = &created
			}
		}
		if s.OldestMessageAt != nil {
			s.LagSeconds = at.Sub(*s.OldestMessageAt).Seconds()
		}
	})
}
