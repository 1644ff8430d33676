// Package session implements the per-connection protocol: the session state
// value, the closed set of client messages, and the router that applies
// each message to the state through the face pipeline.
package session

import (
	"slices"

	"github.com/saturnino-fabrica-de-software/facestream/internal/classifier"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

type Mode string

const (
	ModeEnrolling Mode = "ENROLLING"
	ModeIdle      Mode = "IDLE"
	ModeTesting   Mode = "TESTING"
)

// State belongs to exactly one connection and is only touched by that
// connection's read loop.
type State struct {
	ID   string
	Mode Mode

	// Samples is keyed by the perceptual hash of the aligned crop.
	Samples map[string]domain.Sample
	// KnownLabels lists identified labels in first-seen order.
	KnownLabels []domain.Label
	// People holds display names restored from the client, indexed by label.
	People []string

	// FrameCounter counts recognized messages and names captured files.
	FrameCounter int64

	PendingUser    *domain.UserInfo
	LastPrediction *domain.Label

	classifier       classifier.Predictor
	classifierLoaded bool

	// hashes captured into the temporary folder, relabelled on finalize
	pendingCaptures []string
}

func NewState(id string) *State {
	return &State{
		ID:      id,
		Mode:    ModeEnrolling,
		Samples: make(map[string]domain.Sample),
	}
}

// Classifier returns the cached model, nil when none is loaded or trained.
func (s *State) Classifier() classifier.Predictor {
	return s.classifier
}

func (s *State) predict(embedding []float64) domain.Label {
	if s.classifier == nil {
		return domain.UnknownLabel
	}
	return s.classifier.Predict(embedding)
}

func (s *State) addKnownLabel(l domain.Label) {
	if l.IsUnknown() || slices.Contains(s.KnownLabels, l) {
		return
	}
	s.KnownLabels = append(s.KnownLabels, l)
}

func (s *State) setClassifier(p classifier.Predictor) {
	s.classifier = p
	s.classifierLoaded = true
}
