package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/coder/hnsw"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const (
	// training sets are small enough that search at this ef is exact
	graphMaxNeighbors = 16
	graphEfSearch     = 64
)

type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

type Weighting string

const (
	WeightUniform  Weighting = "uniform"
	WeightDistance Weighting = "distance"
)

// Params is one point of the hyperparameter grid.
type Params struct {
	K         int       `json:"k"`
	Metric    Metric    `json:"metric"`
	Weighting Weighting `json:"weighting"`
}

func (p Params) String() string {
	return fmt.Sprintf("k=%d metric=%s weighting=%s", p.K, p.Metric, p.Weighting)
}

var ErrEmptyTrainingSet = errors.New("empty training set")

var ErrMixedDimensions = errors.New("training vectors differ in length")

// Predictor is what a session holds once a classifier is available.
type Predictor interface {
	Predict(embedding []float64) domain.Label
}

// KNN is a k-nearest-neighbour classifier backed by an HNSW graph.
type KNN struct {
	params  Params
	dim     int
	vectors [][]float32
	labels  []domain.Label
	graph   *hnsw.Graph[int]
}

var _ Predictor = (*KNN)(nil)

// NewKNN indexes the training vectors. Labels must be parallel to x.
func NewKNN(params Params, x [][]float64, y []domain.Label) (*KNN, error) {
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d vectors and %d labels", len(x), len(y))
	}
	if params.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", params.K)
	}

	vectors := make([][]float32, len(x))
	for i, v := range x {
		if len(v) == 0 || len(v) != len(x[0]) {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrMixedDimensions, i, len(v), len(x[0]))
		}
		vectors[i] = toFloat32(v)
	}

	return newKNNFromVectors(params, vectors, append([]domain.Label(nil), y...)), nil
}

func newKNNFromVectors(params Params, vectors [][]float32, labels []domain.Label) *KNN {
	g := hnsw.NewGraph[int]()
	g.M = graphMaxNeighbors
	g.Ml = 1.0 / float64(graphMaxNeighbors)
	g.EfSearch = graphEfSearch
	g.Distance = distanceFunc(params.Metric)
	// fixed seed keeps level assignment, and so predictions, reproducible
	g.Rng = rand.New(rand.NewSource(int64(len(vectors))))

	for i, v := range vectors {
		g.Add(hnsw.MakeNode(i, v))
	}

	return &KNN{
		params:  params,
		dim:     len(vectors[0]),
		vectors: vectors,
		labels:  labels,
		graph:   g,
	}
}

func (m *KNN) Params() Params {
	return m.params
}

// Dim is the embedding length the model was trained on.
func (m *KNN) Dim() int {
	return m.dim
}

func (m *KNN) Len() int {
	return len(m.labels)
}

// Labels returns the distinct labels the model can predict.
func (m *KNN) Labels() []domain.Label {
	seen := make(map[domain.Label]struct{})
	var out []domain.Label
	for _, l := range m.labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

// Predict votes among the k nearest neighbours. Ties go to the label whose
// nearest member is closest. An embedding of another length is unknown.
func (m *KNN) Predict(embedding []float64) domain.Label {
	if m == nil || len(m.labels) == 0 || len(embedding) != m.dim {
		return domain.UnknownLabel
	}
	return m.predict32(toFloat32(embedding))
}

func (m *KNN) predict32(query []float32) domain.Label {
	dist := distanceFunc(m.params.Metric)
	neighbours := m.graph.Search(query, m.params.K)
	if len(neighbours) == 0 {
		return domain.UnknownLabel
	}

	votes := make(map[domain.Label]float64)
	closest := make(map[domain.Label]float64)
	var order []domain.Label

	for _, n := range neighbours {
		label := m.labels[n.Key]
		d := float64(dist(query, n.Value))

		weight := 1.0
		if m.params.Weighting == WeightDistance {
			if d <= 1e-12 {
				// an exact match dominates everything else
				return label
			}
			weight = 1 / d
		}

		if _, ok := votes[label]; !ok {
			order = append(order, label)
			closest[label] = math.Inf(1)
		}
		votes[label] += weight
		closest[label] = math.Min(closest[label], d)
	}

	best := order[0]
	for _, label := range order[1:] {
		switch {
		case votes[label] > votes[best]:
			best = label
		case votes[label] == votes[best] && closest[label] < closest[best]:
			best = label
		}
	}
	return best
}

func distanceFunc(metric Metric) hnsw.DistanceFunc {
	if metric == MetricCosine {
		return hnsw.CosineDistance
	}
	return hnsw.EuclideanDistance
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
