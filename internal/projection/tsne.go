package projection

import (
	"math"
	"math/rand"
)

// TSNEConfig controls the exact (O(n^2)) t-SNE used for session-sized sets.
type TSNEConfig struct {
	Perplexity      float64
	Iterations      int
	LearningRate    float64
	Exaggeration    float64
	ExaggerationEnd int
	Seed            int64
}

func DefaultTSNEConfig() TSNEConfig {
	return TSNEConfig{
		Perplexity:      30,
		Iterations:      500,
		LearningRate:    200,
		Exaggeration:    12,
		ExaggerationEnd: 100,
		Seed:            1,
	}
}

// embed2D maps x to two dimensions.
func embed2D(x [][]float64, cfg TSNEConfig) [][2]float64 {
	n := len(x)
	out := make([][2]float64, n)
	if n < 2 {
		return out
	}

	perplexity := math.Min(cfg.Perplexity, float64(n-1)/3)
	if perplexity < 1 {
		perplexity = 1
	}
	p := jointProbabilities(x, perplexity)

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := range out {
		out[i] = [2]float64{rng.NormFloat64() * 1e-4, rng.NormFloat64() * 1e-4}
	}

	velocity := make([][2]float64, n)
	gains := make([][2]float64, n)
	for i := range gains {
		gains[i] = [2]float64{1, 1}
	}
	num := make([]float64, n*n)

	for iter := 0; iter < cfg.Iterations; iter++ {
		exaggeration := 1.0
		momentum := 0.8
		if iter < cfg.ExaggerationEnd {
			exaggeration = cfg.Exaggeration
			momentum = 0.5
		}

		// Student-t affinities in the embedding
		var sumQ float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := out[i][0] - out[j][0]
				dy := out[i][1] - out[j][1]
				q := 1 / (1 + dx*dx + dy*dy)
				num[i*n+j] = q
				num[j*n+i] = q
				sumQ += 2 * q
			}
		}
		sumQ = math.Max(sumQ, 1e-12)

		for i := 0; i < n; i++ {
			var grad [2]float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := num[i*n+j]
				mult := (exaggeration*p[i*n+j] - q/sumQ) * q
				grad[0] += 4 * mult * (out[i][0] - out[j][0])
				grad[1] += 4 * mult * (out[i][1] - out[j][1])
			}

			for dim := 0; dim < 2; dim++ {
				if (grad[dim] > 0) != (velocity[i][dim] > 0) {
					gains[i][dim] += 0.2
				} else {
					gains[i][dim] = math.Max(gains[i][dim]*0.8, 0.01)
				}
				velocity[i][dim] = momentum*velocity[i][dim] - cfg.LearningRate*gains[i][dim]*grad[dim]
			}
		}

		var mean [2]float64
		for i := range out {
			out[i][0] += velocity[i][0]
			out[i][1] += velocity[i][1]
			mean[0] += out[i][0] / float64(n)
			mean[1] += out[i][1] / float64(n)
		}
		for i := range out {
			out[i][0] -= mean[0]
			out[i][1] -= mean[1]
		}
	}

	return out
}

// jointProbabilities returns the symmetrised input affinities, with each
// row's Gaussian bandwidth found by binary search on the perplexity.
func jointProbabilities(x [][]float64, perplexity float64) []float64 {
	n := len(x)
	dist := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			for k := range x[i] {
				diff := x[i][k] - x[j][k]
				d += diff * diff
			}
			dist[i*n+j] = d
			dist[j*n+i] = d
		}
	}

	target := math.Log(perplexity)
	cond := make([]float64, n*n)
	row := make([]float64, n)

	for i := 0; i < n; i++ {
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for step := 0; step < 64; step++ {
			var sum float64
			for j := 0; j < n; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-dist[i*n+j] * beta)
				sum += row[j]
			}
			if sum == 0 {
				sum = 1e-12
			}

			var entropy float64
			for j := 0; j < n; j++ {
				if j == i || row[j] == 0 {
					continue
				}
				pj := row[j] / sum
				entropy -= pj * math.Log(pj)
				row[j] = pj
			}

			diff := entropy - target
			if math.Abs(diff) < 1e-5 {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		copy(cond[i*n:(i+1)*n], row)
	}

	p := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/(2*float64(n)), 1e-12)
		}
	}
	return p
}
