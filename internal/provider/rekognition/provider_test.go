package rekognition

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/audit"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func landmark(kind types.LandmarkType, x, y float32) types.Landmark {
	return types.Landmark{Type: kind, X: aws.Float32(x), Y: aws.Float32(y)}
}

func faceDetail(left, top, width, height, confidence float32) types.FaceDetail {
	return types.FaceDetail{
		BoundingBox: &types.BoundingBox{
			Left:   aws.Float32(left),
			Top:    aws.Float32(top),
			Width:  aws.Float32(width),
			Height: aws.Float32(height),
		},
		Confidence: aws.Float32(confidence),
		Landmarks: []types.Landmark{
			landmark(types.LandmarkTypeLeftEyeLeft, left+width*0.8, top+height*0.3),
			landmark(types.LandmarkTypeRightEyeRight, left+width*0.2, top+height*0.3),
			landmark(types.LandmarkTypeNose, left+width*0.5, top+height*0.6),
		},
	}
}

func newTestProvider(api RekognitionAPI) *Provider {
	return NewProviderWithClient(NewClientWithAPI(api, DefaultConfig()), WithAuditLogger(&audit.NoOpLogger{}))
}

func TestProviderImplementsInterface(t *testing.T) {
	var _ provider.Detector = (*Provider)(nil)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, float32(90), cfg.MinConfidence)
}

func TestProvider_DetectAll(t *testing.T) {
	img := testJPEG(t, 200, 100)

	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			assert.Equal(t, img, params.Image.Bytes)
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					faceDetail(0.25, 0.1, 0.5, 0.8, 99.5),
					faceDetail(0, 0, 0.1, 0.1, 40),
				},
			}, nil
		},
	}

	faces, err := newTestProvider(api).DetectAll(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, faces, 1, "low confidence detections are dropped")

	face := faces[0]
	assert.InDelta(t, 50, face.BoundingBox.X, 0.01)
	assert.InDelta(t, 10, face.BoundingBox.Y, 0.01)
	assert.InDelta(t, 100, face.BoundingBox.Width, 0.01)
	assert.InDelta(t, 80, face.BoundingBox.Height, 0.01)
	assert.InDelta(t, 0.995, face.Confidence, 0.001)

	// outer eye corners come back ordered by x
	assert.Less(t, face.Landmarks.LeftEyeOuter.X, face.Landmarks.RightEyeOuter.X)
	assert.InDelta(t, 70, face.Landmarks.LeftEyeOuter.X, 0.01)
	assert.InDelta(t, 130, face.Landmarks.RightEyeOuter.X, 0.01)
	assert.InDelta(t, 100, face.Landmarks.Nose.X, 0.01)
	assert.InDelta(t, 58, face.Landmarks.Nose.Y, 0.01)
}

func TestProvider_DetectAll_NoFaces(t *testing.T) {
	faces, err := newTestProvider(&mockRekognitionAPI{}).DetectAll(context.Background(), testJPEG(t, 64, 64))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestProvider_DetectAll_Errors(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		apiErr  error
		wantErr error
	}{
		{
			name:    "empty image",
			image:   nil,
			wantErr: ErrInvalidImage,
		},
		{
			name:    "too small",
			image:   []byte("tiny"),
			wantErr: ErrInvalidImage,
		},
		{
			name:    "not a jpeg",
			image:   bytes.Repeat([]byte{1}, 500),
			wantErr: ErrInvalidImage,
		},
		{
			name:    "access denied",
			apiErr:  &smithy.GenericAPIError{Code: errCodeAccessDenied, Message: "denied"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "invalid image format",
			apiErr:  &smithy.GenericAPIError{Code: errCodeInvalidImage, Message: "bad"},
			wantErr: ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := tt.image
			if img == nil && tt.apiErr != nil {
				img = testJPEG(t, 64, 64)
			}

			api := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tt.apiErr
				},
			}

			_, err := newTestProvider(api).DetectAll(context.Background(), img)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProvider_DetectAll_MissingLandmarks(t *testing.T) {
	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			detail := faceDetail(0.1, 0.1, 0.5, 0.5, 99)
			detail.Landmarks = detail.Landmarks[:1]
			return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{detail}}, nil
		},
	}

	_, err := newTestProvider(api).DetectAll(context.Background(), testJPEG(t, 64, 64))
	assert.ErrorIs(t, err, ErrMissingLandmarks)
}

func TestProvider_DetectLargest(t *testing.T) {
	api := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					faceDetail(0, 0, 0.2, 0.2, 99),
					faceDetail(0.4, 0.2, 0.5, 0.6, 99),
				},
			}, nil
		},
	}

	face, err := newTestProvider(api).DetectLargest(context.Background(), testJPEG(t, 100, 100))
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.InDelta(t, 40, face.BoundingBox.X, 0.01)
}
