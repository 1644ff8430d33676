package imaging

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"sort"
)

const (
	hashSampleSize = 32
	hashBandSize   = 8
)

// PHash computes a 64-bit DCT perceptual hash. Visually identical crops
// produce the same value, which makes it the sample dedup key.
func PHash(img image.Image) uint64 {
	gray := grayscale(Resize(img, hashSampleSize, hashSampleSize))
	coeffs := dct2D(gray, hashSampleSize)

	// low frequency band, DC term dropped and the next coefficient outside
	// the band appended so there are still 64 values
	band := make([]float64, 0, hashBandSize*hashBandSize)
	for u := 0; u < hashBandSize; u++ {
		for v := 0; v < hashBandSize; v++ {
			if u == 0 && v == 0 {
				continue
			}
			band = append(band, coeffs[u*hashSampleSize+v])
		}
	}
	band = append(band, coeffs[hashBandSize])

	median := medianOf(band)

	var hash uint64
	for i, c := range band {
		if c > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// HashKey formats the hash the way sample keys are stored and sent.
func HashKey(img image.Image) string {
	return fmt.Sprintf("%016x", PHash(img))
}

func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// grayscale returns BT.601 luma in row-major order.
func grayscale(img *image.RGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			out[y*w+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return out
}

// dct2D is a separable DCT-II over an n x n row-major block.
func dct2D(in []float64, n int) []float64 {
	cos := make([]float64, n*n)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			cos[k*n+i] = math.Cos(math.Pi * float64(k) * (2*float64(i) + 1) / (2 * float64(n)))
		}
	}

	rows := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for k := 0; k < n; k++ {
			var sum float64
			for x := 0; x < n; x++ {
				sum += in[y*n+x] * cos[k*n+x]
			}
			rows[y*n+k] = sum
		}
	}

	out := make([]float64, n*n)
	for x := 0; x < n; x++ {
		for k := 0; k < n; k++ {
			var sum float64
			for y := 0; y < n; y++ {
				sum += rows[y*n+x] * cos[k*n+y]
			}
			out[k*n+x] = sum
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
