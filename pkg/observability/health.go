package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus is the state reported by a probe.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	CheckedAt  time.Time      `json:"checked_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// Probe checks one dependency.
type Probe func(ctx context.Context) ProbeResult

// HealthReport aggregates every probe.
type HealthReport struct {
	Status    HealthStatus           `json:"status"`
	Service   string                 `json:"service"`
	CheckedAt time.Time              `json:"checked_at"`
	Probes    map[string]ProbeResult `json:"probes"`
}

// HealthRegistry runs named probes concurrently.
type HealthRegistry struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewHealthRegistry creates a registry whose probes are bounded by timeout.
// A zero timeout defaults to two seconds.
func NewHealthRegistry(timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthRegistry{probes: make(map[string]Probe), timeout: timeout}
}

// Register adds or replaces a probe.
func (r *HealthRegistry) Register(name string, probe Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[name] = probe
}

// Names lists registered probes in sorted order.
func (r *HealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every probe and folds the results. Any unhealthy probe makes
// the report unhealthy; otherwise any degraded probe makes it degraded.
func (r *HealthRegistry) Check(ctx context.Context) HealthReport {
	r.mu.RLock()
	probes := make(map[string]Probe, len(r.probes))
	for name, p := range r.probes {
		probes[name] = p
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]ProbeResult, len(probes))
	)
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			start := time.Now()
			res := p(ctx)
			res.DurationMs = time.Since(start).Milliseconds()
			res.CheckedAt = time.Now().UTC()
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	status := HealthStatusHealthy
	for _, res := range results {
		switch res.Status {
		case HealthStatusUnhealthy:
			status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}
	}

	return HealthReport{
		Status:    status,
		Service:   ServiceName,
		CheckedAt: time.Now().UTC(),
		Probes:    results,
	}
}

// Handler serves /healthz (liveness) and /readyz (readiness). Readiness
// answers 503 only when a probe is unhealthy.
func (r *HealthRegistry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, map[string]string{"status": string(HealthStatusHealthy)})
	})
	ready := func(w http.ResponseWriter, req *http.Request) {
		report := r.Check(req.Context())
		code := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, report)
	}
	mux.HandleFunc("/readyz", ready)
	mux.HandleFunc("/health", ready)
	return mux
}

func writeHealthJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// PingProbe reports failure of ping with the given severity. The database
// is critical (unhealthy); the cache and broker only degrade service.
func PingProbe(component string, onFailure HealthStatus, ping func(ctx context.Context) error) Probe {
	return func(ctx context.Context) ProbeResult {
		if err := ping(ctx); err != nil {
			return ProbeResult{Status: onFailure, Message: component + ": " + err.Error()}
		}
		return ProbeResult{Status: HealthStatusHealthy}
	}
}

// StatsProbe always reports healthy and exposes stats as details.
func StatsProbe(stats func() map[string]any) Probe {
	return func(context.Context) ProbeResult {
		return ProbeResult{Status: HealthStatusHealthy, Details: stats()}
	}
}
