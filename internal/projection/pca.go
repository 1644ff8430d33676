package projection

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// maxPCAComponents caps the PCA stage before t-SNE.
const maxPCAComponents = 50

var ErrPCAFailed = errors.New("principal component analysis did not converge")

// reduce centres x and projects it onto at most maxPCAComponents principal
// directions. Fewer rows or columns lower the component count.
func reduce(x [][]float64) ([][]float64, error) {
	n := len(x)
	d := len(x[0])

	data := mat.NewDense(n, d, nil)
	for i, row := range x {
		data.SetRow(i, row)
	}

	k := min(maxPCAComponents, d, n)
	if n < 2 || d <= k {
		return centre(x), nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, ErrPCAFailed
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centred := mat.NewDense(n, d, nil)
	for i, row := range centre(x) {
		centred.SetRow(i, row)
	}

	var proj mat.Dense
	proj.Mul(centred, vecs.Slice(0, d, 0, k))

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}
	return out, nil
}

func centre(x [][]float64) [][]float64 {
	n, d := len(x), len(x[0])
	mean := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v / float64(n)
		}
	}
	out := make([][]float64, n)
	for i, row := range x {
		out[i] = make([]float64, d)
		for j, v := range row {
			out[i][j] = v - mean[j]
		}
	}
	return out
}
