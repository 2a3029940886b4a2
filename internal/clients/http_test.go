package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorchita/ecommerce-start/internal/config"
)

func fixedHandler(statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(statusCode)
	}
}

func TestHTTPCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "200", status: http.StatusOK},
		{name: "204", status: http.StatusNoContent},
		{name: "404", status: http.StatusNotFound, wantErr: true},
		{name: "503", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(fixedHandler(tc.status))
			defer srv.Close()

			c := NewHTTPChecker(srv.URL + "/health")
			c.httpDo = srv.Client().Do

			err := c.Check(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "returned HTTP")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPCheck_RespectsContextTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPChecker(srv.URL)
	c.httpDo = srv.Client().Do

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Check(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Kinds(t *testing.T) {
	t.Parallel()

	c, err := New(config.ServiceConfig{Name: "a", URL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPChecker{}, c)

	c, err = New(config.ServiceConfig{Name: "db", Kind: KindPostgres, URL: "postgres://x"})
	require.NoError(t, err)
	assert.IsType(t, &PostgresChecker{}, c)

	c, err = New(config.ServiceConfig{Name: "cache", Kind: KindRedis, URL: "redis://x"})
	require.NoError(t, err)
	assert.IsType(t, &RedisChecker{}, c)

	_, err = New(config.ServiceConfig{Name: "mq", Kind: "amqp"})
	assert.Error(t, err)
}

func TestNewGuardedSet(t *testing.T) {
	t.Parallel()

	set, err := NewGuardedSet(config.DefaultServices())
	require.NoError(t, err)
	require.Len(t, set, len(config.DefaultServices()))
	assert.Equal(t, "ml-service", set[0].Name)
	assert.Equal(t, KindHTTP, set[0].Kind)
}
