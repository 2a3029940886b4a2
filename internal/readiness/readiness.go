// Package readiness polls service health with bounded retries until each
// service answers or its attempt budget is exhausted.
package readiness

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/mentorchita/ecommerce-start/internal/clients"
	"github.com/mentorchita/ecommerce-start/internal/config"
)

// Checker performs one health check. A nil error means healthy.
type Checker interface {
	Check(ctx context.Context) error
}

// Target is one service to poll.
type Target struct {
	Name    string
	URL     string
	Checker Checker
}

// ProbeResult is the outcome of polling one Target. Counters are owned by the
// probe that produced them.
type ProbeResult struct {
	Service     string        `json:"service"`
	Target      string        `json:"target"`
	MaxAttempts int           `json:"maxAttempts"`
	Interval    time.Duration `json:"interval"`
	Attempts    int           `json:"attempts"`
	Healthy     bool          `json:"healthy"`
	LastError   string        `json:"lastError,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// AllHealthy reports whether every result is healthy. An empty set is healthy.
func AllHealthy(results []ProbeResult) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return true
}

// CountHealthy returns the number of healthy results.
func CountHealthy(results []ProbeResult) int {
	n := 0
	for _, r := range results {
		if r.Healthy {
			n++
		}
	}
	return n
}

// Policy is the retry schedule of a probe.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	CallTimeout time.Duration
	// Multiplier grows the delay after each failure; 1 keeps it fixed.
	Multiplier  float64
	MaxInterval time.Duration
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
}

// PolicyFrom reads the policy from cfg.
func PolicyFrom(cfg config.ReadinessConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		Interval:    cfg.Interval,
		CallTimeout: cfg.CallTimeout,
		Multiplier:  cfg.Multiplier,
		MaxInterval: cfg.MaxInterval,
		Jitter:      cfg.Jitter,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay is the sleep after failed attempt n (1-based). rnd returns a value in
// [0, 1) and is only consulted when Jitter is set.
func (p Policy) Delay(n int, rnd func() float64) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.Interval) * math.Pow(mult, float64(n-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		d = float64(p.MaxInterval)
	}
	if p.Jitter > 0 && rnd != nil {
		d += d * p.Jitter * (2*rnd() - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// TargetsFor builds a Target with the matching checker for every service.
func TargetsFor(services []config.ServiceConfig) ([]Target, error) {
	out := make([]Target, 0, len(services))
	for _, svc := range services {
		c, err := clients.New(svc)
		if err != nil {
			return nil, err
		}
		out = append(out, Target{Name: svc.Name, URL: svc.URL, Checker: c})
	}
	return out, nil
}

func defaultRand() float64 { return rand.Float64() }
