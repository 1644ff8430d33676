// Package registry keeps the append-only record of enrolled people and the
// feedback collected on predictions.
package registry

import (
	"context"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// Registry is implemented by the CSV store in this package and by the
// Postgres repository.
type Registry interface {
	Append(ctx context.Context, rec domain.RegistrationRecord) error
	// Lookup returns domain.ErrRegistrationNotFound when id was never stored.
	Lookup(ctx context.Context, id domain.Label) (*domain.RegistrationRecord, error)
	AppendFeedback(ctx context.Context, rec domain.FeedbackRecord) error
}

var (
	UserHeader     = []string{"ID", "Name", "Mail", "Mobile", "Organization"}
	FeedbackHeader = []string{"Result", "ActualMail", "PredictedMail"}
)
