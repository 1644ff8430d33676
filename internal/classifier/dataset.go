package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// UnknownPool is a bundled set of embeddings of people nobody enrolled.
// It is read at most once per process and never mutated afterwards.
type UnknownPool struct {
	path    string
	once    sync.Once
	vectors [][]float64
	err     error
}

func NewUnknownPool(path string) *UnknownPool {
	return &UnknownPool{path: path}
}

// NewStaticUnknownPool wraps vectors that are already in memory.
func NewStaticUnknownPool(vectors [][]float64) *UnknownPool {
	p := &UnknownPool{vectors: vectors}
	p.once.Do(func() {})
	return p
}

func (p *UnknownPool) Vectors() ([][]float64, error) {
	p.once.Do(func() {
		data, err := os.ReadFile(p.path)
		if err != nil {
			p.err = fmt.Errorf("read unknown pool: %w", err)
			return
		}
		if err := json.Unmarshal(data, &p.vectors); err != nil {
			p.err = fmt.Errorf("decode unknown pool: %w", err)
		}
	})
	return p.vectors, p.err
}

// Dataset is the training matrix derived from session samples. Every row
// has length Dim.
type Dataset struct {
	X   [][]float64
	Y   []domain.Label
	Dim int
	// Dropped counts samples left out because their length differed from Dim.
	Dropped int
}

// DistinctLabels counts unique labels, unknown included.
func (d *Dataset) DistinctLabels() int {
	seen := make(map[domain.Label]struct{}, len(d.Y))
	for _, l := range d.Y {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// BuildDataset turns samples into a training set. It returns nil when no
// sample carries a real identity. Samples whose embedding length differs
// from the most common one are dropped. With a pool, unknown examples are
// added until there are about as many unknowns as the average identity has
// samples.
func BuildDataset(samples map[string]domain.Sample, pool *UnknownPool) (*Dataset, error) {
	keys := make([]string, 0, len(samples))
	for k := range samples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ds := &Dataset{Dim: dominantDim(samples, keys)}
	identities := make(map[domain.Label]struct{})
	identified, unknown := 0, 0

	for _, k := range keys {
		s := samples[k]
		if len(s.Embedding) != ds.Dim {
			ds.Dropped++
			continue
		}
		label := s.Label
		if label == "" {
			label = domain.UnknownLabel
		}
		ds.X = append(ds.X, s.Embedding)
		ds.Y = append(ds.Y, label)

		if label.IsUnknown() {
			unknown++
			continue
		}
		identified++
		identities[label] = struct{}{}
	}

	if len(identities) == 0 {
		return nil, nil
	}

	if pool == nil {
		return ds, nil
	}

	toAdd := identified/len(identities) - unknown
	if toAdd <= 0 {
		return ds, nil
	}

	vectors, err := pool.Vectors()
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if toAdd == 0 {
			break
		}
		if len(v) != ds.Dim {
			continue
		}
		ds.X = append(ds.X, v)
		ds.Y = append(ds.Y, domain.UnknownLabel)
		toAdd--
	}

	return ds, nil
}

// dominantDim is the most common non-zero embedding length. Ties go to the
// length seen first in key order.
func dominantDim(samples map[string]domain.Sample, keys []string) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, k := range keys {
		n := len(samples[k].Embedding)
		if n == 0 {
			continue
		}
		counts[n]++
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}
