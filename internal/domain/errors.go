package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies produced by WithError still
// satisfy errors.Is against the predefined value.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service is not ready",
		StatusCode: 503,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many sessions opened, try again later",
		StatusCode: 429,
	}

	// Frame pipeline errors. These never end a session; they surface as a
	// WARNING message or a log line.
	ErrInvalidFrame = &AppError{
		Code:       "INVALID_FRAME",
		Message:    "Frame payload is not a jpeg data URL",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face found, please be present in front of the camera, alone!!",
		StatusCode: 422,
	}

	ErrInvalidIdentity = &AppError{
		Code:       "INVALID_IDENTITY",
		Message:    "Identity ids must be numeric",
		StatusCode: 422,
	}

	ErrMultipleFaces = &AppError{
		Code:       "MULTIPLE_FACES",
		Message:    "Please make sure only one person is in front of the camera",
		StatusCode: 422,
	}

	// Session errors
	ErrUnknownMessage = &AppError{
		Code:       "UNKNOWN_MESSAGE",
		Message:    "Unrecognized message type",
		StatusCode: 400,
	}

	ErrMalformedMessage = &AppError{
		Code:       "MALFORMED_MESSAGE",
		Message:    "Message payload could not be decoded",
		StatusCode: 400,
	}

	ErrSampleNotFound = &AppError{
		Code:       "SAMPLE_NOT_FOUND",
		Message:    "No sample stored under this hash",
		StatusCode: 404,
	}

	ErrNoPendingUser = &AppError{
		Code:       "NO_PENDING_USER",
		Message:    "Collection stopped before user details were received",
		StatusCode: 409,
	}

	ErrNoPrediction = &AppError{
		Code:       "NO_PREDICTION",
		Message:    "Feedback received before any prediction",
		StatusCode: 409,
	}

	// Classifier errors
	ErrInsufficientTrainingData = &AppError{
		Code:       "INSUFFICIENT_TRAINING_DATA",
		Message:    "At least two distinct identities are required to train",
		StatusCode: 422,
	}

	ErrDimensionMismatch = &AppError{
		Code:       "EMBEDDING_DIMENSION_MISMATCH",
		Message:    "Embeddings do not share one dimension",
		StatusCode: 422,
	}

	ErrModelNotFound = &AppError{
		Code:       "MODEL_NOT_FOUND",
		Message:    "No persisted classifier available",
		StatusCode: 404,
	}

	// Registry errors
	ErrRegistrationNotFound = &AppError{
		Code:       "REGISTRATION_NOT_FOUND",
		Message:    "No registration details for this identity",
		StatusCode: 404,
	}
)
