package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Provider implements provider.Detector using AWS Rekognition DetectFaces.
// Rekognition does not expose embeddings, so it is paired with another
// provider.Embedder.
type Provider struct {
	client      *Client
	auditLogger audit.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithAuditLogger sets the audit logger for the provider
func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

var _ provider.Detector = (*Provider)(nil)

func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewProviderWithClient(client, opts...), nil
}

func NewProviderWithClient(client *Client, opts ...ProviderOption) *Provider {
	p := &Provider{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// logAudit is fire-and-forget; audit failures never affect detection.
func (p *Provider) logAudit(ctx context.Context, success bool, err error, metadata map[string]string) {
	if p.auditLogger == nil {
		return
	}

	event := audit.Event{
		EventType: audit.EventFaceDetected,
		Provider:  "rekognition",
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	_ = p.auditLogger.Log(ctx, event)
}

func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// DetectAll returns an empty slice when no faces are found (not an error).
func (p *Provider) DetectAll(ctx context.Context, img []byte) ([]provider.DetectedFace, error) {
	meta := map[string]string{"image_size": strconv.Itoa(len(img))}

	if err := validateImage(img); err != nil {
		p.logAudit(ctx, false, err, meta)
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidImage, err)
		p.logAudit(ctx, false, err, meta)
		return nil, err
	}

	output, err := p.client.rekognition.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: img},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		err = parseAPIError(err)
		p.logAudit(ctx, false, err, meta)
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	width, height := float64(cfg.Width), float64(cfg.Height)
	faces := make([]provider.DetectedFace, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.Confidence != nil && *detail.Confidence < p.client.config.MinConfidence {
			continue
		}
		face, err := convertDetail(detail, width, height)
		if err != nil {
			p.logAudit(ctx, false, err, meta)
			return nil, err
		}
		faces = append(faces, face)
	}

	meta["faces_count"] = strconv.Itoa(len(faces))
	p.logAudit(ctx, true, nil, meta)

	return faces, nil
}

func (p *Provider) DetectLargest(ctx context.Context, img []byte) (*provider.DetectedFace, error) {
	faces, err := p.DetectAll(ctx, img)
	if err != nil {
		return nil, err
	}
	return provider.Largest(faces), nil
}

// convertDetail scales Rekognition's ratio coordinates to pixels.
func convertDetail(detail types.FaceDetail, width, height float64) (provider.DetectedFace, error) {
	face := provider.DetectedFace{}

	if box := detail.BoundingBox; box != nil {
		face.BoundingBox = provider.BoundingBox{
			X:      float64(deref(box.Left)) * width,
			Y:      float64(deref(box.Top)) * height,
			Width:  float64(deref(box.Width)) * width,
			Height: float64(deref(box.Height)) * height,
		}
	}
	if detail.Confidence != nil {
		face.Confidence = float64(*detail.Confidence) / 100
	}

	var outerA, outerB, nose *provider.Point
	for _, lm := range detail.Landmarks {
		pt := &provider.Point{
			X: float64(deref(lm.X)) * width,
			Y: float64(deref(lm.Y)) * height,
		}
		switch lm.Type {
		case types.LandmarkTypeLeftEyeLeft:
			outerA = pt
		case types.LandmarkTypeRightEyeRight:
			outerB = pt
		case types.LandmarkTypeNose:
			nose = pt
		}
	}
	if outerA == nil || outerB == nil || nose == nil {
		return face, ErrMissingLandmarks
	}

	// the aligner wants image-left first regardless of how AWS names sides
	if outerA.X > outerB.X {
		outerA, outerB = outerB, outerA
	}
	face.Landmarks = provider.Landmarks{
		LeftEyeOuter:  *outerA,
		RightEyeOuter: *outerB,
		Nose:          *nose,
	}

	return face, nil
}

func deref(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}
