package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{"url", "postgres://u:p@localhost:5432/facestream?sslmode=disable", "facestream", false},
		{"keyword", "host=localhost user=u dbname=faces sslmode=disable", "faces", false},
		{"garbage", "postgres://%zz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DatabaseName(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), stubPinger{}))

	err := HealthCheck(context.Background(), stubPinger{err: errors.New("refused")})
	assert.ErrorContains(t, err, "database unhealthy")
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://x")
	assert.Equal(t, "postgres://x", cfg.DSN)
	assert.Greater(t, cfg.MaxOpenConns, cfg.MaxIdleConns)
}
