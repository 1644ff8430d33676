package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const (
	// DefaultModelKey is where the shared classifier lives.
	DefaultModelKey = "classifier:model"
	// modelTTL keeps the artifact until it is replaced.
	modelTTL = 10 * 365 * 24 * time.Hour
)

// ModelStore keeps the serialized classifier in the cache table so several
// replicas can share it.
type ModelStore struct {
	cache *PGCache
	key   string
	mu    sync.Mutex
}

func NewModelStore(cache *PGCache, key string) *ModelStore {
	if key == "" {
		key = DefaultModelKey
	}
	return &ModelStore{cache: cache, key: key}
}

func (s *ModelStore) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheExpired) {
		return nil, domain.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return blob, nil
}

func (s *ModelStore) Save(ctx context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Set(ctx, s.key, blob, modelTTL); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}
