package session

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

const (
	pathCapture = "capture"
	pathTesting = "testing"
)

// Warning reasons recorded in metrics.
const (
	reasonNoFace        = "no_face"
	reasonMultipleFaces = "multiple_faces"
)

// frameInput is what the pipeline needs from either frame message.
type frameInput struct {
	dataURL string
	capture bool
	// identity and id only apply to the capture path
	identity domain.Label
	id       domain.Label
}

// detection is a decoded frame with its single aligned face.
type detection struct {
	frame   *image.RGBA
	face    provider.DetectedFace
	crop    *image.RGBA
	cropJPG []byte
	hash    string
}

// runPipeline detects, aligns and hashes one frame, then follows the
// capture or testing path. Zero or several faces produce exactly one
// WARNING and leave st untouched.
func (r *Router) runPipeline(ctx context.Context, st *State, in frameInput) []Outbound {
	path := pathTesting
	if in.capture {
		path = pathCapture
	}
	start := time.Now()
	defer func() {
		r.metrics.ObservePipeline(path, time.Since(start))
	}()

	det, out, ok := r.detect(ctx, st, in.dataURL)
	if !ok {
		return out
	}

	if cached, hit := st.Samples[det.hash]; hit {
		r.logger.DebugContext(ctx, "cached face", "session_id", st.ID, "hash", det.hash, "label", cached.Label)
		if in.capture {
			return nil
		}
		label := cached.Label
		st.LastPrediction = &label
		r.metrics.Prediction(!label.IsUnknown())
		return r.identify(ctx, det, label)
	}

	if in.capture {
		r.capture(ctx, st, det, in)
		return nil
	}

	embedding, err := r.Embedder.Embed(ctx, det.cropJPG)
	if err != nil {
		r.logger.ErrorContext(ctx, "embedding failed", "session_id", st.ID, "error", err)
		return nil
	}

	label := st.predict(embedding)
	st.LastPrediction = &label
	r.metrics.Prediction(!label.IsUnknown())
	r.logger.DebugContext(ctx, "prediction", "session_id", st.ID, "label", label)

	return r.identify(ctx, det, label)
}

func (r *Router) detect(ctx context.Context, st *State, dataURL string) (*detection, []Outbound, bool) {
	img, err := imaging.DecodeJPEGDataURL(dataURL)
	if err != nil {
		r.logger.WarnContext(ctx, "rejecting frame", "session_id", st.ID, "error", err)
		return nil, nil, false
	}

	frame := imaging.Mirror(img)
	raw, err := imaging.EncodeJPEG(frame)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to re-encode frame", "session_id", st.ID, "error", err)
		return nil, nil, false
	}

	faces, err := r.Detector.DetectAll(ctx, raw)
	if err != nil {
		r.logger.ErrorContext(ctx, "face detection failed", "session_id", st.ID, "error", err)
		return nil, nil, false
	}
	switch {
	case len(faces) == 0:
		r.metrics.Warning(reasonNoFace)
		return nil, []Outbound{Warning{Message: domain.ErrNoFaceDetected.Message}}, false
	case len(faces) > 1:
		r.metrics.Warning(reasonMultipleFaces)
		return nil, []Outbound{Warning{Message: domain.ErrMultipleFaces.Message}}, false
	}

	face, err := r.Detector.DetectLargest(ctx, raw)
	if err != nil || face == nil {
		r.logger.WarnContext(ctx, "face lost on re-detection", "session_id", st.ID, "error", err)
		return nil, nil, false
	}

	crop, err := r.Aligner.Align(frame, face.Landmarks)
	if err != nil {
		r.logger.WarnContext(ctx, "alignment failed", "session_id", st.ID, "error", err)
		return nil, nil, false
	}
	cropJPG, err := imaging.EncodeJPEG(crop)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode crop", "session_id", st.ID, "error", err)
		return nil, nil, false
	}

	return &detection{
		frame:   frame,
		face:    *face,
		crop:    crop,
		cropJPG: cropJPG,
		hash:    imaging.HashKey(crop),
	}, nil, true
}

// capture persists the crop and stores its sample. Crops without a
// registration id wait in the session's capture folder under the unknown
// label until finalize relabels them.
func (r *Router) capture(ctx context.Context, st *State, det *detection, in frameInput) {
	if _, err := r.Store.SaveCapture(st.ID, in.id, st.FrameCounter, det.cropJPG); err != nil {
		r.logger.ErrorContext(ctx, "failed to save capture", "session_id", st.ID, "error", err)
		return
	}

	embedding, err := r.embed(ctx, det.hash, det.cropJPG)
	if err != nil {
		r.logger.ErrorContext(ctx, "embedding failed", "session_id", st.ID, "error", err)
		return
	}

	label := in.id
	if isTemporaryID(label) {
		label = domain.UnknownLabel
		st.pendingCaptures = append(st.pendingCaptures, det.hash)
	} else {
		st.addKnownLabel(label)
	}
	st.Samples[det.hash] = domain.Sample{Embedding: embedding, Label: label}

	r.logger.DebugContext(ctx, "face captured",
		"session_id", st.ID,
		"hash", det.hash,
		"label", label,
		"identity", in.identity,
	)
}

// identify emits IDENTITIES and ANNOTATED for a recognized label.
func (r *Router) identify(ctx context.Context, det *detection, label domain.Label) []Outbound {
	if label.IsUnknown() {
		return nil
	}

	msg := Identities{Identities: labelValue(label)}
	name := label.String()

	rec, err := r.Registry.Lookup(ctx, label)
	switch {
	case err == nil:
		msg.Name = &rec.Name
		msg.Mail = &rec.Contact
		msg.Company = &rec.Organization
		name = rec.Name
	case errors.Is(err, domain.ErrRegistrationNotFound):
		r.logger.DebugContext(ctx, "no registration details", "label", label)
	default:
		r.logger.WarnContext(ctx, "registry lookup failed", "label", label, "error", err)
	}

	out := []Outbound{msg}

	content, err := imaging.EncodePNGDataURL(imaging.Annotate(det.frame, det.face, name))
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to render annotated frame", "label", label, "error", err)
		return out
	}
	return append(out, Annotated{Content: content})
}

// embed consults the embedding memo before calling the network.
func (r *Router) embed(ctx context.Context, hash string, cropJPG []byte) ([]float64, error) {
	if r.memo != nil {
		sample, err := r.memo.Get(ctx, hash)
		if err == nil && len(sample.Embedding) > 0 {
			return sample.Embedding, nil
		}
		if err != nil && !errors.Is(err, domain.ErrSampleNotFound) {
			r.logger.WarnContext(ctx, "embedding memo read failed", "hash", hash, "error", err)
		}
	}

	embedding, err := r.Embedder.Embed(ctx, cropJPG)
	if err != nil {
		return nil, err
	}

	if r.memo != nil {
		if err := r.memo.Put(ctx, hash, domain.Sample{Embedding: embedding}); err != nil {
			r.logger.WarnContext(ctx, "embedding memo write failed", "hash", hash, "error", err)
		}
	}
	return embedding, nil
}

func isTemporaryID(id domain.Label) bool {
	return id == "" || id == "0" || id.IsUnknown()
}
