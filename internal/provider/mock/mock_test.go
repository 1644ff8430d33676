package mock

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

func frame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 320, 240)), nil))
	return buf.Bytes()
}

func TestProvider_DetectAll(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		name      string
		faceCount int
		wantFaces int
	}{
		{"single face by default", 1, 1},
		{"no face", 0, 0},
		{"crowd", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.SetFaceCount(tt.faceCount)
			faces, err := p.DetectAll(ctx, frame(t))
			require.NoError(t, err)
			assert.Len(t, faces, tt.wantFaces)
		})
	}
}

func TestProvider_DetectAll_InvalidImage(t *testing.T) {
	_, err := New().DetectAll(context.Background(), []byte("garbage"))
	assert.ErrorIs(t, err, domain.ErrInvalidFrame)
}

func TestProvider_DetectLargest(t *testing.T) {
	p := New()

	face, err := p.DetectLargest(context.Background(), frame(t))
	require.NoError(t, err)
	require.NotNil(t, face)
	assert.Equal(t, 80.0, face.BoundingBox.X)
	assert.Less(t, face.Landmarks.LeftEyeOuter.X, face.Landmarks.RightEyeOuter.X)

	p.SetFaceCount(0)
	face, err = p.DetectLargest(context.Background(), frame(t))
	require.NoError(t, err)
	assert.Nil(t, face)
}

func TestProvider_Embed(t *testing.T) {
	p := New()
	ctx := context.Background()

	a, err := p.Embed(ctx, []byte("crop-a"))
	require.NoError(t, err)
	assert.Len(t, a, EmbeddingDimension)

	again, err := p.Embed(ctx, []byte("crop-a"))
	require.NoError(t, err)
	assert.Equal(t, a, again)

	b, err := p.Embed(ctx, []byte("crop-b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	norm := 0.0
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	_, err = p.Embed(ctx, nil)
	assert.Error(t, err)
}
