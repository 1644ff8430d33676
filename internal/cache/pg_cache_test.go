package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/classifier"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const testKey = "test:key"

func TestPGCache_Set(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewPGCache(mock)
	cache.now = func() time.Time { return now }

	value := []byte("test value")

	mock.ExpectExec("INSERT INTO cache_entries").
		WithArgs(testKey, value, now.Add(5*time.Minute)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = cache.Set(context.Background(), testKey, value, 5*time.Minute)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGCache_Get(t *testing.T) {
	t.Run("successful get", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPGCache(mock)
		value := []byte("test value")

		rows := pgxmock.NewRows([]string{"value", "expires_at"}).
			AddRow(value, time.Now().Add(5*time.Minute))

		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs(testKey).
			WillReturnRows(rows)

		result, err := cache.Get(context.Background(), testKey)
		assert.NoError(t, err)
		assert.Equal(t, value, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPGCache(mock)

		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs("missing:key").
			WillReturnError(pgx.ErrNoRows)

		result, err := cache.Get(context.Background(), "missing:key")
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired entry is deleted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cache := NewPGCache(mock)

		rows := pgxmock.NewRows([]string{"value", "expires_at"}).
			AddRow([]byte("old"), time.Now().Add(-time.Minute))

		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs(testKey).
			WillReturnRows(rows)
		mock.ExpectExec("DELETE FROM cache_entries WHERE key").
			WithArgs(testKey).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		_, err = cache.Get(context.Background(), testKey)
		assert.ErrorIs(t, err, ErrCacheExpired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestModelStore(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs(DefaultModelKey).
			WillReturnError(pgx.ErrNoRows)

		store := NewModelStore(NewPGCache(mock), "")
		_, err = store.Load(context.Background())
		assert.ErrorIs(t, err, domain.ErrModelNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error is wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs("models:a").
			WillReturnError(errors.New("timeout"))

		store := NewModelStore(NewPGCache(mock), "models:a")
		_, err = store.Load(context.Background())
		assert.EqualError(t, err, "load model: timeout")
	})

	t.Run("round trip through classifier snapshot", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		model, err := classifier.NewKNN(
			classifier.Params{K: 1, Metric: classifier.MetricEuclidean, Weighting: classifier.WeightUniform},
			[][]float64{{0, 0}, {10, 10}},
			[]domain.Label{"a", "b"},
		)
		require.NoError(t, err)
		blob, err := model.Marshal()
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO cache_entries").
			WithArgs(DefaultModelKey, blob, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery("SELECT value, expires_at FROM cache_entries").
			WithArgs(DefaultModelKey).
			WillReturnRows(pgxmock.NewRows([]string{"value", "expires_at"}).
				AddRow(blob, time.Now().Add(time.Hour)))

		store := NewModelStore(NewPGCache(mock), DefaultModelKey)
		require.NoError(t, store.Save(context.Background(), blob))

		loaded, err := store.Load(context.Background())
		require.NoError(t, err)
		restored, err := classifier.Unmarshal(loaded)
		require.NoError(t, err)
		assert.Equal(t, domain.Label("b"), restored.Predict([]float64{9, 9}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
