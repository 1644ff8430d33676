package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// Service owns the shared artifact. Sessions cache the Predictor they get
// back; Service itself holds no per-session state.
type Service struct {
	store   Store
	pool    *UnknownPool
	grid    []Params
	dim     int
	logger  *slog.Logger
	writeMu sync.Mutex
}

type Option func(*Service)

// WithUnknownPool enables unknown-class augmentation.
func WithUnknownPool(pool *UnknownPool) Option {
	return func(s *Service) {
		s.pool = pool
	}
}

func WithGrid(grid []Params) Option {
	return func(s *Service) {
		s.grid = grid
	}
}

// WithEmbeddingDim makes Load ignore artifacts trained on another
// embedding length, such as one written while a different provider was
// configured.
func WithEmbeddingDim(dim int) Option {
	return func(s *Service) {
		s.dim = dim
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		grid:   DefaultGrid,
		logger: logger.With("component", "classifier"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted model, or nil when none exists. A corrupt
// artifact is logged and treated as absent so predictions degrade to
// unknown.
func (s *Service) Load(ctx context.Context) (*KNN, error) {
	blob, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrModelNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	model, err := Unmarshal(blob)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable model", "error", err)
		return nil, nil
	}
	if s.dim > 0 && model.Dim() != s.dim {
		s.logger.WarnContext(ctx, "ignoring model for another embedding size",
			"error", domain.ErrDimensionMismatch,
			"model_dim", model.Dim(),
			"want_dim", s.dim,
		)
		return nil, nil
	}
	return model, nil
}

// Dataset builds the training set with augmentation applied when
// configured.
func (s *Service) Dataset(samples map[string]domain.Sample) (*Dataset, error) {
	ds, err := BuildDataset(samples, s.pool)
	if err != nil {
		return nil, err
	}
	if ds != nil && ds.Dropped > 0 {
		s.logger.Warn("dropping samples with a different embedding size",
			"error", domain.ErrDimensionMismatch,
			"dropped", ds.Dropped,
			"dim", ds.Dim,
		)
	}
	return ds, nil
}

// Fit trains on the samples and persists the winner. It returns
// domain.ErrInsufficientTrainingData when fewer than two distinct labels
// are available; callers clear their cached model in that case.
func (s *Service) Fit(ctx context.Context, samples map[string]domain.Sample) (*KNN, SearchResult, error) {
	ds, err := s.Dataset(samples)
	if err != nil {
		return nil, SearchResult{}, err
	}
	if ds == nil || ds.DistinctLabels() < 2 {
		return nil, SearchResult{}, domain.ErrInsufficientTrainingData
	}

	model, result, err := GridSearch(s.grid, ds.X, ds.Y)
	if err != nil {
		return nil, SearchResult{}, fmt.Errorf("grid search: %w", err)
	}

	blob, err := model.Marshal()
	if err != nil {
		return nil, SearchResult{}, err
	}

	s.writeMu.Lock()
	err = s.store.Save(ctx, blob)
	s.writeMu.Unlock()
	if err != nil {
		return nil, SearchResult{}, fmt.Errorf("save model: %w", err)
	}

	s.logger.InfoContext(ctx, "classifier fitted",
		"samples", len(ds.X),
		"labels", ds.DistinctLabels(),
		"params", result.Params.String(),
		"cv_accuracy", result.Accuracy,
	)

	return model, result, nil
}
