package clients

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Health is the single-shot status of one service.
type Health struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// Guarded runs a Checker behind a circuit breaker. The readiness poller calls
// the Checker directly; Guarded is for repeated status queries where a dead
// service should fail fast.
type Guarded struct {
	Name    string
	Kind    string
	checker Checker
	cb      *gobreaker.CircuitBreaker
}

// NewGuarded wraps checker in a breaker named after the service.
func NewGuarded(name, kind string, checker Checker) *Guarded {
	return &Guarded{
		Name:    name,
		Kind:    kind,
		checker: checker,
		cb:      NewCircuitBreaker(name),
	}
}

// Probe executes one check through the breaker. After three consecutive
// failures the breaker opens and Probe returns "circuit open" immediately.
func (g *Guarded) Probe(ctx context.Context) Health {
	start := time.Now()

	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.checker.Check(ctx)
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return Health{Name: g.Name, Kind: g.Kind, OK: false, LatencyMs: latency, Error: errMsg}
	}
	return Health{Name: g.Name, Kind: g.Kind, OK: true, LatencyMs: latency}
}
