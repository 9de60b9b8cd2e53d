package observability

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricReconcileRenewed, 2)
	m.Counter(MetricReconcileRenewed, 3)
	m.Counter(MetricEntitlementChecks, 1, T("result", "allowed"), T("type", "PREMIUM"))
	m.Gauge("screenpass.outbox.pending", 7)
	m.Timing(MetricReconcileDuration, 15*time.Millisecond)

	assert.Equal(t, int64(5), m.GetCounter(MetricReconcileRenewed))
	// tag order does not matter
	assert.Equal(t, int64(1), m.GetCounter(MetricEntitlementChecks, T("type", "PREMIUM"), T("result", "allowed")))
	assert.Equal(t, int64(0), m.GetCounter(MetricEntitlementChecks, T("result", "denied")))
	assert.Equal(t, 7.0, m.GetGauge("screenpass.outbox.pending"))
	assert.Len(t, m.GetTimings(MetricReconcileDuration), 1)

	snap := m.Snapshot()
	assert.Equal(t, 5.0, snap[MetricReconcileRenewed])
	assert.Equal(t, 1.0, snap["screenpass.entitlement.checks{result=allowed,type=PREMIUM}"])

	m.Reset()
	assert.Equal(t, int64(0), m.GetCounter(MetricReconcileRenewed))
}

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.Counter("x", 1)
		m.Gauge("x", 1)
		m.Histogram("x", 1)
		m.Timing("x", time.Second)
	})
}

func TestTimer(t *testing.T) {
	t.Run("records success", func(t *testing.T) {
		m := NewInMemoryMetrics()
		StartTimer("reconcile").WithMetrics(m).Stop()

		tag := T(OperationKey, "reconcile")
		assert.Equal(t, int64(1), m.GetCounter(MetricOperationTotal, tag))
		assert.Equal(t, int64(0), m.GetCounter(MetricOperationErrors, tag))
		assert.Len(t, m.GetTimings(MetricOperationDuration, tag), 1)
	})

	t.Run("records failure and logs", func(t *testing.T) {
		m := NewInMemoryMetrics()
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelDebug, Format: LogFormatText, Output: &buf})

		StartTimer("record_payment").
			WithMetrics(m).
			WithLogger(logger).
			WithTags(T("method", "CARD")).
			StopWithError(errors.New("boom"))

		tags := []Tag{T("method", "CARD"), T(OperationKey, "record_payment")}
		assert.Equal(t, int64(1), m.GetCounter(MetricOperationErrors, tags...))
		assert.Contains(t, buf.String(), "operation failed")
		assert.Contains(t, buf.String(), "boom")
	})
}
