package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// SampleRepository memoises embeddings by the perceptual hash of the aligned
// crop so rebuilding the training set does not call the embedder again.
type SampleRepository struct {
	db DB
}

func NewSampleRepository(db DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Get returns domain.ErrSampleNotFound when hash has no stored embedding.
func (r *SampleRepository) Get(ctx context.Context, hash string) (*domain.Sample, error) {
	query := `
		SELECT label, embedding
		FROM samples
		WHERE hash = $1
	`

	var (
		label     string
		embedding *pgvector.Vector
	)
	err := r.db.QueryRow(ctx, query, hash).Scan(&label, &embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sample: %w", err)
	}

	sample := &domain.Sample{Label: domain.Label(label)}
	if embedding != nil {
		sample.Embedding = fromVector(*embedding)
	}
	return sample, nil
}

func (r *SampleRepository) Put(ctx context.Context, hash string, sample domain.Sample) error {
	query := `
		INSERT INTO samples (hash, label, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (hash) DO UPDATE
		SET label = EXCLUDED.label,
		    embedding = EXCLUDED.embedding,
		    updated_at = NOW()
	`

	if len(sample.Embedding) == 0 {
		return fmt.Errorf("put sample %s: %w", hash, domain.ErrBadRequest)
	}

	_, err := r.db.Exec(ctx, query, hash, string(sample.Label), toVector(sample.Embedding))
	if err != nil {
		return fmt.Errorf("put sample: %w", err)
	}
	return nil
}
