package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/openface"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/rekognition"
)

// ProviderType defines supported face provider backends
type ProviderType string

const (
	// ProviderTypeOpenFace is the HTTP sidecar hosting dlib + OpenFace
	ProviderTypeOpenFace ProviderType = "openface"
	// ProviderTypeRekognition detects with AWS and embeds with the sidecar
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is deterministic and needs no external service
	ProviderTypeMock ProviderType = "mock"
)

// Providers bundles the two halves of the inference pipeline.
type Providers struct {
	Detector provider.Detector
	Embedder provider.Embedder
}

// NewProviders builds the detector/embedder pair selected by PROVIDER_TYPE.
//
// Environment variables:
//   - PROVIDER_TYPE: "openface", "rekognition" or "mock" (default: "openface")
//   - OPENFACE_URL: sidecar URL (default: "http://localhost:5000")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
func NewProviders(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (*Providers, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeOpenFace, "":
		of := createOpenFaceProvider(cfg)
		return &Providers{Detector: of, Embedder: of}, nil

	case ProviderTypeRekognition:
		rekog, err := rekognition.NewProvider(ctx, rekognition.Config{
			Region:        cfg.AWSRegion,
			MinConfidence: rekognition.DefaultConfig().MinConfidence,
		}, rekognition.WithAuditLogger(auditLogger))
		if err != nil {
			return nil, fmt.Errorf("create rekognition provider: %w", err)
		}
		// Rekognition has no embedding API; the sidecar still embeds.
		return &Providers{Detector: rekog, Embedder: createOpenFaceProvider(cfg)}, nil

	case ProviderTypeMock:
		m := mock.New()
		return &Providers{Detector: m, Embedder: m}, nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeOpenFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

func createOpenFaceProvider(cfg *config.Config) *openface.Provider {
	ofConfig := openface.DefaultConfig()
	if cfg.OpenFaceURL != "" {
		ofConfig.BaseURL = cfg.OpenFaceURL
	}
	return openface.NewProvider(ofConfig)
}
