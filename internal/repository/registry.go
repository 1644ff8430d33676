package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// RegistryRepository stores registrations and feedback in Postgres.
type RegistryRepository struct {
	db  DB
	now func() time.Time
}

func NewRegistryRepository(db DB) *RegistryRepository {
	return &RegistryRepository{db: db, now: time.Now}
}

func (r *RegistryRepository) Append(ctx context.Context, rec domain.RegistrationRecord) error {
	query := `
		INSERT INTO registrations (id, name, mail, mobile, organization, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.Exec(ctx, query,
		string(rec.ID),
		rec.Name,
		rec.Contact,
		rec.Phone,
		rec.Organization,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	return nil
}

// Lookup returns the newest row for id; ids may repeat within one second.
func (r *RegistryRepository) Lookup(ctx context.Context, id domain.Label) (*domain.RegistrationRecord, error) {
	query := `
		SELECT id, name, mail, mobile, organization, created_at
		FROM registrations
		WHERE id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var (
		rec     domain.RegistrationRecord
		foundID string
	)
	err := r.db.QueryRow(ctx, query, string(id)).Scan(
		&foundID,
		&rec.Name,
		&rec.Contact,
		&rec.Phone,
		&rec.Organization,
		&rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup registration: %w", err)
	}

	rec.ID = domain.Label(foundID)
	return &rec, nil
}

func (r *RegistryRepository) AppendFeedback(ctx context.Context, rec domain.FeedbackRecord) error {
	query := `
		INSERT INTO feedback (result, actual_mail, predicted_mail, created_at)
		VALUES ($1, $2, $3, $4)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.Exec(ctx, query, rec.WasCorrect, rec.ActualContact, rec.PredictedContact, createdAt)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}
