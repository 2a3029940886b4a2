package clients

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dbPinger abstracts the pgxpool.Pool methods used in Check so that tests
// can inject a fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	Close()
}

// PostgresChecker opens a single-connection pool per check and pings it.
type PostgresChecker struct {
	dsn     string
	connect func(ctx context.Context, dsn string) (dbPinger, error)
}

func NewPostgresChecker(dsn string) *PostgresChecker {
	return &PostgresChecker{dsn: dsn, connect: realConnect}
}

func (c *PostgresChecker) Check(ctx context.Context) error {
	pool, err := c.connect(ctx, c.dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// realConnect opens a pgxpool.Pool capped at one connection.
func realConnect(ctx context.Context, dsn string) (dbPinger, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	return pool, nil
}
