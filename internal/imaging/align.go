package imaging

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"

	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// DefaultDim is the side of the canonical crop fed to the embedder.
const DefaultDim = 96

// Normalised template positions (fractions of the crop side) for the outer
// eye corners and the nose tip of the mean dlib face.
var template = [3]provider.Point{
	{X: 0.1946, Y: 0.1693},
	{X: 0.8053, Y: 0.1693},
	{X: 0.5000, Y: 0.5700},
}

var ErrDegenerateLandmarks = errors.New("landmarks are collinear")

// Aligner warps faces onto a fixed template so embeddings are comparable.
type Aligner struct {
	Dim int
}

func NewAligner(dim int) *Aligner {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Aligner{Dim: dim}
}

// Align maps the three anchor landmarks onto the template with an exact
// affine transform and samples a Dim x Dim crop.
func (a *Aligner) Align(img image.Image, lm provider.Landmarks) (*image.RGBA, error) {
	src := [3]provider.Point{lm.LeftEyeOuter, lm.RightEyeOuter, lm.Nose}
	dst := [3]provider.Point{}
	for i, p := range template {
		dst[i] = provider.Point{X: p.X * float64(a.Dim), Y: p.Y * float64(a.Dim)}
	}

	s2d, err := affineFromPoints(src, dst)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, a.Dim, a.Dim))
	draw.BiLinear.Transform(out, s2d, img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// affineFromPoints solves [x y 1] * M = [x' y'] for the 3x2 matrix M.
func affineFromPoints(src, dst [3]provider.Point) (f64.Aff3, error) {
	p := mat.NewDense(3, 3, []float64{
		src[0].X, src[0].Y, 1,
		src[1].X, src[1].Y, 1,
		src[2].X, src[2].Y, 1,
	})
	q := mat.NewDense(3, 2, []float64{
		dst[0].X, dst[0].Y,
		dst[1].X, dst[1].Y,
		dst[2].X, dst[2].Y,
	})

	if det := mat.Det(p); det > -1e-9 && det < 1e-9 {
		return f64.Aff3{}, ErrDegenerateLandmarks
	}

	var m mat.Dense
	if err := m.Solve(p, q); err != nil {
		return f64.Aff3{}, fmt.Errorf("solve affine: %w", err)
	}

	return f64.Aff3{
		m.At(0, 0), m.At(1, 0), m.At(2, 0),
		m.At(0, 1), m.At(1, 1), m.At(2, 1),
	}, nil
}
