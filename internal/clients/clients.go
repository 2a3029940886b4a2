// Package clients implements the per-kind health checks of the course stack:
// plain HTTP endpoints, Postgres and Redis. No connection is opened at
// construction time.
package clients

import (
	"context"
	"fmt"

	"github.com/mentorchita/ecommerce-start/internal/config"
)

const (
	KindHTTP     = "http"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// Checker performs one health check. A nil error means healthy.
type Checker interface {
	Check(ctx context.Context) error
}

// New returns the Checker for svc.Kind. An empty kind means http.
func New(svc config.ServiceConfig) (Checker, error) {
	switch svc.Kind {
	case "", KindHTTP:
		return NewHTTPChecker(svc.URL), nil
	case KindPostgres:
		return NewPostgresChecker(svc.URL), nil
	case KindRedis:
		return NewRedisChecker(svc.URL), nil
	default:
		return nil, fmt.Errorf("service %s: unknown check kind %q", svc.Name, svc.Kind)
	}
}

// NewGuardedSet builds a Guarded checker for every service.
func NewGuardedSet(services []config.ServiceConfig) ([]*Guarded, error) {
	out := make([]*Guarded, 0, len(services))
	for _, svc := range services {
		c, err := New(svc)
		if err != nil {
			return nil, err
		}
		kind := svc.Kind
		if kind == "" {
			kind = KindHTTP
		}
		out = append(out, NewGuarded(svc.Name, kind, c))
	}
	return out, nil
}
