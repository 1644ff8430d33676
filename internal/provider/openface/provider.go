package openface

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// Provider implements provider.Detector and provider.Embedder on top of
// the sidecar.
type Provider struct {
	client *Client
}

var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)

func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

func (p *Provider) DetectAll(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	resp, err := p.client.Detect(ctx, base64.StdEncoding.EncodeToString(image), false)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	return convertFaces(resp.Faces)
}

func (p *Provider) DetectLargest(ctx context.Context, image []byte) (*provider.DetectedFace, error) {
	resp, err := p.client.Detect(ctx, base64.StdEncoding.EncodeToString(image), true)
	if err != nil {
		return nil, fmt.Errorf("detect largest face: %w", err)
	}

	faces, err := convertFaces(resp.Faces)
	if err != nil {
		return nil, err
	}
	return provider.Largest(faces), nil
}

func (p *Provider) Embed(ctx context.Context, alignedJPEG []byte) ([]float64, error) {
	resp, err := p.client.Represent(ctx, base64.StdEncoding.EncodeToString(alignedJPEG))
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, provider.ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

func convertFaces(in []DetectedFace) ([]provider.DetectedFace, error) {
	faces := make([]provider.DetectedFace, 0, len(in))
	for _, f := range in {
		if len(f.Landmarks) < landmarkCount {
			return nil, fmt.Errorf("%w: got %d points", ErrMissingLandmarks, len(f.Landmarks))
		}
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(f.Box.X),
				Y:      float64(f.Box.Y),
				Width:  float64(f.Box.W),
				Height: float64(f.Box.H),
			},
			Landmarks: provider.Landmarks{
				LeftEyeOuter:  toPoint(f.Landmarks[landmarkLeftEyeOuter]),
				RightEyeOuter: toPoint(f.Landmarks[landmarkRightEyeOuter]),
				Nose:          toPoint(f.Landmarks[landmarkNoseTip]),
			},
			Confidence: f.Confidence,
		})
	}
	return faces, nil
}

func toPoint(p [2]float64) provider.Point {
	return provider.Point{X: p[0], Y: p[1]}
}
