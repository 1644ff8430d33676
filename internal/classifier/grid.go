package classifier

import (
	"fmt"
	"math/rand"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const (
	maxFolds = 5
	foldSeed = 42
)

// DefaultGrid is searched on every fit. Order matters: on equal scores the
// earlier entry wins.
var DefaultGrid = buildGrid(
	[]int{1, 3, 5, 7},
	[]Metric{MetricEuclidean, MetricCosine},
	[]Weighting{WeightUniform, WeightDistance},
)

func buildGrid(ks []int, metrics []Metric, weightings []Weighting) []Params {
	grid := make([]Params, 0, len(ks)*len(metrics)*len(weightings))
	for _, k := range ks {
		for _, m := range metrics {
			for _, w := range weightings {
				grid = append(grid, Params{K: k, Metric: m, Weighting: w})
			}
		}
	}
	return grid
}

// SearchResult reports the winning parameters and their CV accuracy.
type SearchResult struct {
	Params   Params
	Accuracy float64
	Folds    int
}

// GridSearch cross-validates every grid entry and refits the best one on
// the full data set.
func GridSearch(grid []Params, x [][]float64, y []domain.Label) (*KNN, SearchResult, error) {
	if len(x) == 0 {
		return nil, SearchResult{}, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, SearchResult{}, fmt.Errorf("got %d vectors and %d labels", len(x), len(y))
	}
	if len(grid) == 0 {
		return nil, SearchResult{}, fmt.Errorf("empty parameter grid")
	}

	vectors := make([][]float32, len(x))
	for i, v := range x {
		vectors[i] = toFloat32(v)
	}

	folds := assignFolds(len(x))
	nFolds := 0
	for _, f := range folds {
		if f+1 > nFolds {
			nFolds = f + 1
		}
	}

	best := SearchResult{Accuracy: -1, Folds: nFolds}
	for _, params := range grid {
		acc, ok := crossValidate(params, vectors, y, folds, nFolds)
		if !ok {
			continue
		}
		if acc > best.Accuracy {
			best.Params = params
			best.Accuracy = acc
		}
	}

	if best.Accuracy < 0 {
		// every k was larger than the training folds; fall back to 1-NN
		best.Params = Params{K: 1, Metric: MetricEuclidean, Weighting: WeightUniform}
		best.Accuracy = 0
	}

	model := newKNNFromVectors(best.Params, vectors, append([]domain.Label(nil), y...))
	return model, best, nil
}

// assignFolds deals shuffled indices round-robin into min(5, n) folds.
func assignFolds(n int) []int {
	k := maxFolds
	if n < k {
		k = n
	}
	order := rand.New(rand.NewSource(foldSeed)).Perm(n)
	folds := make([]int, n)
	for pos, idx := range order {
		folds[idx] = pos % k
	}
	return folds
}

// crossValidate returns mean accuracy over folds. It reports false when k
// exceeds the smallest training split, since that entry cannot be scored.
func crossValidate(params Params, vectors [][]float32, y []domain.Label, folds []int, nFolds int) (float64, bool) {
	if nFolds < 2 {
		return 0, false
	}

	var total float64
	for f := 0; f < nFolds; f++ {
		var trainX [][]float32
		var trainY []domain.Label
		var testIdx []int
		for i := range vectors {
			if folds[i] == f {
				testIdx = append(testIdx, i)
				continue
			}
			trainX = append(trainX, vectors[i])
			trainY = append(trainY, y[i])
		}
		if params.K > len(trainX) || len(testIdx) == 0 {
			return 0, false
		}

		model := newKNNFromVectors(params, trainX, trainY)
		correct := 0
		for _, i := range testIdx {
			if model.predict32(vectors[i]) == y[i] {
				correct++
			}
		}
		total += float64(correct) / float64(len(testIdx))
	}

	return total / float64(nFolds), true
}
