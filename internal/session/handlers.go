package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facestream/internal/metrics"
)

func (r *Router) setMode(ctx context.Context, st *State, m SetMode) []Outbound {
	prev := st.Mode
	if m.Training {
		st.Mode = ModeEnrolling
		return nil
	}

	st.Mode = ModeIdle
	if prev == ModeEnrolling {
		r.refit(ctx, st)
	}
	return nil
}

func (r *Router) submitTestFrame(ctx context.Context, st *State, m SubmitTestFrame) []Outbound {
	st.Mode = ModeTesting
	r.ensureLoaded(ctx, st)

	out := r.runPipeline(ctx, st, frameInput{dataURL: m.DataURL})
	return append(out, Processed{})
}

func (r *Router) submitTrainFrame(ctx context.Context, st *State, m SubmitTrainFrame) []Outbound {
	if !isTemporaryID(m.ID) && !m.ID.IsNumeric() {
		r.logger.WarnContext(ctx, "rejecting frame", "session_id", st.ID, "id", m.ID, "error", domain.ErrInvalidIdentity)
		return []Outbound{Processed{}}
	}

	out := r.runPipeline(ctx, st, frameInput{
		dataURL:  m.DataURL,
		capture:  true,
		identity: m.Identity,
		id:       m.ID,
	})
	return append(out, Processed{})
}

// bulkEnroll rebuilds the session's training set from every image under
// the training root and refits.
func (r *Router) bulkEnroll(ctx context.Context, st *State) []Outbound {
	images, err := r.Store.ScanTraining()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to scan training images", "session_id", st.ID, "error", err)
		return nil
	}

	st.Samples = make(map[string]domain.Sample, len(images))
	st.KnownLabels = nil
	st.pendingCaptures = nil

	skipped := 0
	for _, ti := range images {
		img, err := imaging.LoadImage(ti.Path)
		if err != nil {
			skipped++
			r.logger.WarnContext(ctx, "skipping training image", "path", ti.Path, "error", err)
			continue
		}
		crop := imaging.ToRGBA(img)
		cropJPG, err := imaging.EncodeJPEG(crop)
		if err != nil {
			skipped++
			r.logger.WarnContext(ctx, "skipping training image", "path", ti.Path, "error", err)
			continue
		}

		hash := imaging.HashKey(crop)
		embedding, err := r.embed(ctx, hash, cropJPG)
		if err != nil {
			skipped++
			r.logger.WarnContext(ctx, "skipping training image", "path", ti.Path, "error", err)
			continue
		}

		st.Samples[hash] = domain.Sample{Embedding: embedding, Label: ti.Label}
		st.addKnownLabel(ti.Label)
	}

	r.logger.InfoContext(ctx, "training set rebuilt",
		"session_id", st.ID,
		"images", len(images),
		"samples", len(st.Samples),
		"skipped", skipped,
	)
	r.logAudit(ctx, audit.Event{
		SessionID: st.ID,
		EventType: audit.EventTrainingSetRebuilt,
		Success:   true,
		Metadata: map[string]string{
			"images":  strconv.Itoa(len(images)),
			"samples": strconv.Itoa(len(st.Samples)),
		},
	})

	r.refit(ctx, st)
	return nil
}

// finalize turns the pending user into a registry row and claims the
// session's temporary captures for the new id.
func (r *Router) finalize(ctx context.Context, st *State) []Outbound {
	if st.PendingUser == nil {
		r.logger.WarnContext(ctx, "ignoring stop acknowledgement", "session_id", st.ID, "error", domain.ErrNoPendingUser)
		return nil
	}

	at := r.now()
	id := domain.Label(at.Format(domain.RegistrationIDLayout))
	rec := domain.NewRegistrationRecord(id, *st.PendingUser, at)

	if err := r.Registry.Append(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "failed to store registration", "session_id", st.ID, "id", id, "error", err)
		r.logAudit(ctx, audit.Event{
			SessionID: st.ID,
			EventType: audit.EventRegistrationStored,
			Label:     id.String(),
			Success:   false,
			Error:     err.Error(),
		})
		return nil
	}

	moved, err := r.Store.Promote(st.ID, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to promote captures", "session_id", st.ID, "id", id, "error", err)
	}

	for _, hash := range st.pendingCaptures {
		sample, ok := st.Samples[hash]
		if !ok || !sample.Label.IsUnknown() {
			continue
		}
		sample.Label = id
		st.Samples[hash] = sample
	}
	st.pendingCaptures = nil
	st.addKnownLabel(id)
	st.PendingUser = nil

	r.logger.InfoContext(ctx, "registration stored", "session_id", st.ID, "id", id, "captures", moved)
	r.logAudit(ctx, audit.Event{
		SessionID: st.ID,
		EventType: audit.EventRegistrationStored,
		Label:     id.String(),
		Success:   true,
		Metadata:  map[string]string{"captures": strconv.Itoa(moved)},
	})

	return []Outbound{StoredPage2{ID: labelValue(id)}}
}

func (r *Router) feedback(ctx context.Context, st *State, m Feedback) []Outbound {
	if st.LastPrediction == nil {
		r.logger.WarnContext(ctx, "ignoring feedback", "session_id", st.ID, "error", domain.ErrNoPrediction)
		return nil
	}

	rec := domain.FeedbackRecord{
		WasCorrect:    m.Correct,
		ActualContact: m.Actual.String(),
		CreatedAt:     r.now(),
	}
	if m.Correct {
		rec.PredictedContact = rec.ActualContact
	} else {
		rec.PredictedContact = r.contactOf(ctx, *st.LastPrediction)
	}

	if err := r.Registry.AppendFeedback(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "failed to store feedback", "session_id", st.ID, "error", err)
		return nil
	}

	r.logAudit(ctx, audit.Event{
		SessionID: st.ID,
		EventType: audit.EventFeedbackRecorded,
		Label:     st.LastPrediction.String(),
		Success:   true,
		Metadata:  map[string]string{"correct": strconv.FormatBool(m.Correct)},
	})
	return nil
}

// contactOf resolves a label to the contact it was registered with,
// falling back to the label itself.
func (r *Router) contactOf(ctx context.Context, label domain.Label) string {
	if label.IsUnknown() {
		return label.String()
	}
	rec, err := r.Registry.Lookup(ctx, label)
	if err != nil {
		if !errors.Is(err, domain.ErrRegistrationNotFound) {
			r.logger.WarnContext(ctx, "registry lookup failed", "label", label, "error", err)
		}
		return label.String()
	}
	return rec.Contact
}

func (r *Router) updateLabel(ctx context.Context, st *State, m UpdateLabel) []Outbound {
	sample, ok := st.Samples[m.Hash]
	if !ok {
		r.logger.WarnContext(ctx, "cannot relabel sample", "session_id", st.ID, "hash", m.Hash, "error", domain.ErrSampleNotFound)
		return nil
	}

	sample.Label = m.Label
	st.Samples[m.Hash] = sample
	st.addKnownLabel(m.Label)

	if st.Mode != ModeEnrolling {
		r.refit(ctx, st)
	}
	return nil
}

func (r *Router) removeSample(ctx context.Context, st *State, m RemoveSample) []Outbound {
	sample, ok := st.Samples[m.Hash]
	if !ok {
		r.logger.WarnContext(ctx, "cannot remove sample", "session_id", st.ID, "hash", m.Hash, "error", domain.ErrSampleNotFound)
		return nil
	}
	delete(st.Samples, m.Hash)

	r.logAudit(ctx, audit.Event{
		SessionID: st.ID,
		EventType: audit.EventSampleRemoved,
		Label:     sample.Label.String(),
		Success:   true,
		Metadata:  map[string]string{"hash": m.Hash},
	})

	if st.Mode != ModeEnrolling {
		r.refit(ctx, st)
	}
	return nil
}

func (r *Router) requestProjection(ctx context.Context, st *State, m RequestProjection) []Outbound {
	ds, err := r.Classifier.Dataset(st.Samples)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to build projection dataset", "session_id", st.ID, "error", err)
		return nil
	}
	if ds == nil || ds.DistinctLabels() < 2 {
		r.logger.InfoContext(ctx, "not enough labels to project", "session_id", st.ID)
		return nil
	}

	people := m.People
	if len(people) == 0 {
		people = st.People
	}

	png, err := r.Projector.Render(ds, people)
	if err != nil {
		r.logger.ErrorContext(ctx, "projection failed", "session_id", st.ID, "error", err)
		return nil
	}
	return []Outbound{TSNEData{Content: imaging.PNGBytesDataURL(png)}}
}

// loadState restores a snapshot the client kept from an earlier
// connection.
func (r *Router) loadState(ctx context.Context, st *State, m LoadState) []Outbound {
	if dims := representationDims(m.Images); len(dims) > 1 {
		r.logger.WarnContext(ctx, "ignoring session state",
			"session_id", st.ID,
			"dims", dims,
			"error", domain.ErrDimensionMismatch,
		)
		return nil
	}

	if m.Training {
		st.Mode = ModeEnrolling
	} else {
		st.Mode = ModeIdle
	}

	st.Samples = make(map[string]domain.Sample, len(m.Images))
	st.KnownLabels = nil
	st.pendingCaptures = nil
	for _, img := range m.Images {
		if img.Hash == "" || len(img.Representation) == 0 {
			continue
		}
		st.Samples[img.Hash] = domain.Sample{Embedding: img.Representation, Label: img.Identity}
		st.addKnownLabel(img.Identity)
	}
	st.People = m.People

	r.logger.InfoContext(ctx, "session state restored", "session_id", st.ID, "samples", len(st.Samples), "training", m.Training)

	if !m.Training {
		r.refit(ctx, st)
	}
	return nil
}

// representationDims lists the distinct non-empty representation lengths
// in first-seen order.
func representationDims(images []StateImage) []int {
	var dims []int
	seen := make(map[int]bool)
	for _, img := range images {
		n := len(img.Representation)
		if n == 0 || seen[n] {
			continue
		}
		seen[n] = true
		dims = append(dims, n)
	}
	return dims
}

// ensureLoaded loads the persisted classifier at most once per session.
func (r *Router) ensureLoaded(ctx context.Context, st *State) {
	if st.classifierLoaded {
		return
	}

	model, err := r.Classifier.Load(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load classifier", "session_id", st.ID, "error", err)
		return
	}
	if model == nil {
		st.setClassifier(nil)
		return
	}
	st.setClassifier(model)
}

// refit trains on the session's samples. Too few labels clears the
// session's model; any other failure keeps the previous one.
func (r *Router) refit(ctx context.Context, st *State) {
	start := time.Now()
	model, result, err := r.Classifier.Fit(ctx, st.Samples)
	took := time.Since(start)

	switch {
	case errors.Is(err, domain.ErrInsufficientTrainingData):
		st.setClassifier(nil)
		r.metrics.Fit(metrics.FitSkipped, took)
		r.logger.InfoContext(ctx, "classifier not fitted", "session_id", st.ID, "reason", err)
		return
	case err != nil:
		r.metrics.Fit(metrics.FitFailed, took)
		r.logger.ErrorContext(ctx, "classifier fit failed", "session_id", st.ID, "error", err)
		r.logAudit(ctx, audit.Event{
			SessionID: st.ID,
			EventType: audit.EventClassifierFitted,
			Success:   false,
			Error:     err.Error(),
		})
		return
	}

	st.setClassifier(model)
	r.metrics.Fit(metrics.FitTrained, took)
	r.logAudit(ctx, audit.Event{
		SessionID: st.ID,
		EventType: audit.EventClassifierFitted,
		Success:   true,
		Metadata: map[string]string{
			"params":   result.Params.String(),
			"accuracy": strconv.FormatFloat(result.Accuracy, 'f', 3, 64),
			"samples":  strconv.Itoa(len(st.Samples)),
		},
	})
}
