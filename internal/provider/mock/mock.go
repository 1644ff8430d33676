package mock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"sync"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// EmbeddingDimension matches the 128-d OpenFace representation.
const EmbeddingDimension = 128

// Provider implements provider.Detector and provider.Embedder for tests and
// local development. Every frame yields faceCount identical centred faces.
type Provider struct {
	mu        sync.RWMutex
	faceCount int
}

var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)

func New() *Provider {
	return &Provider{faceCount: 1}
}

// SetFaceCount changes how many faces subsequent frames report.
func (p *Provider) SetFaceCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faceCount = n
}

func (p *Provider) DetectAll(ctx context.Context, img []byte) ([]provider.DetectedFace, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, domain.ErrInvalidFrame.WithError(fmt.Errorf("decode config: %w", err))
	}

	p.mu.RLock()
	n := p.faceCount
	p.mu.RUnlock()

	faces := make([]provider.DetectedFace, 0, n)
	for i := 0; i < n; i++ {
		faces = append(faces, centredFace(float64(cfg.Width), float64(cfg.Height)))
	}
	return faces, nil
}

func (p *Provider) DetectLargest(ctx context.Context, img []byte) (*provider.DetectedFace, error) {
	faces, err := p.DetectAll(ctx, img)
	if err != nil {
		return nil, err
	}
	return provider.Largest(faces), nil
}

// Embed derives a unit vector from the crop's sha256 so equal crops embed
// equally.
func (p *Provider) Embed(ctx context.Context, alignedJPEG []byte) ([]float64, error) {
	if len(alignedJPEG) == 0 {
		return nil, provider.ErrEmptyEmbedding
	}
	return generateEmbedding(alignedJPEG), nil
}

func centredFace(w, h float64) provider.DetectedFace {
	box := provider.BoundingBox{X: w * 0.25, Y: h * 0.2, Width: w * 0.5, Height: h * 0.6}
	return provider.DetectedFace{
		BoundingBox: box,
		Landmarks: provider.Landmarks{
			LeftEyeOuter:  provider.Point{X: box.X + box.Width*0.2, Y: box.Y + box.Height*0.3},
			RightEyeOuter: provider.Point{X: box.X + box.Width*0.8, Y: box.Y + box.Height*0.3},
			Nose:          provider.Point{X: box.X + box.Width*0.5, Y: box.Y + box.Height*0.6},
		},
		Confidence: 0.99,
	}
}

func generateEmbedding(data []byte) []float64 {
	hash := sha256.Sum256(data)
	embedding := make([]float64, EmbeddingDimension)

	for i := range embedding {
		embedding[i] = (float64(hash[i%len(hash)])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] /= norm
	}
	return embedding
}
