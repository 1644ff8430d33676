package provider

import (
	"context"
	"errors"
)

// Detector finds faces and the anchor landmarks used for alignment.
// Coordinates are absolute pixels in the submitted image.
type Detector interface {
	// DetectAll returns every face found in a JPEG image.
	DetectAll(ctx context.Context, image []byte) ([]DetectedFace, error)

	// DetectLargest returns the face with the biggest bounding box, or nil
	// when there is none.
	DetectLargest(ctx context.Context, image []byte) (*DetectedFace, error)
}

// Embedder turns an aligned face crop into a fixed-length representation.
type Embedder interface {
	Embed(ctx context.Context, alignedJPEG []byte) ([]float64, error)
}

// ErrEmptyEmbedding is returned when a backend answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Point is a pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Landmarks holds the three anchors the aligner maps onto its template:
// outer eye corners and the nose tip.
type Landmarks struct {
	LeftEyeOuter  Point `json:"left_eye_outer"`
	RightEyeOuter Point `json:"right_eye_outer"`
	Nose          Point `json:"nose"`
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Landmarks   Landmarks   `json:"landmarks"`
	Confidence  float64     `json:"confidence"`
}

// Largest picks the face with the biggest box. Backends without a native
// "largest face" call use it to implement DetectLargest.
func Largest(faces []DetectedFace) *DetectedFace {
	if len(faces) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].BoundingBox.Area() > faces[best].BoundingBox.Area() {
			best = i
		}
	}
	face := faces[best]
	return &face
}
