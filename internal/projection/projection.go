package projection

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/saturnino-fabrica-de-software/facestream/internal/classifier"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

var ErrNotEnoughLabels = errors.New("projection needs at least two distinct labels")

const plotSize = 5 * vg.Inch

// Projector renders a 2-D map of the training set.
type Projector struct {
	tsne TSNEConfig
}

func NewProjector(cfg TSNEConfig) *Projector {
	return &Projector{tsne: cfg}
}

// Render returns PNG bytes. people names numeric labels that index into
// it; other labels are printed as they are.
func (p *Projector) Render(ds *classifier.Dataset, people []string) ([]byte, error) {
	if ds == nil || ds.DistinctLabels() < 2 {
		return nil, ErrNotEnoughLabels
	}

	reduced, err := reduce(ds.X)
	if err != nil {
		return nil, err
	}
	points := embed2D(reduced, p.tsne)

	groups := make(map[domain.Label]plotter.XYs)
	var order []domain.Label
	for i, label := range ds.Y {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], plotter.XY{X: points[i][0], Y: points[i][1]})
	}

	plt := plot.New()
	plt.Title.Text = "Training set"
	plt.HideAxes()
	plt.Legend.Top = true

	for i, label := range order {
		scatter, err := plotter.NewScatter(groups[label])
		if err != nil {
			return nil, fmt.Errorf("scatter %s: %w", label, err)
		}
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Color = rainbow(i, len(order))

		plt.Add(scatter)
		plt.Legend.Add(LegendName(label, people), scatter)
	}

	w, err := plt.WriterTo(plotSize, plotSize, "png")
	if err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write plot: %w", err)
	}
	return buf.Bytes(), nil
}

// LegendName resolves how a label is shown in the legend.
func LegendName(label domain.Label, people []string) string {
	if label.IsUnknown() {
		return "Unknown"
	}
	if idx, err := strconv.Atoi(string(label)); err == nil && idx >= 0 && idx < len(people) {
		return people[idx]
	}
	return string(label)
}

// rainbow spreads n hues evenly around the colour wheel.
func rainbow(i, n int) color.Color {
	h := float64(i) / float64(max(n, 1)) * 6
	x := 1 - math.Abs(math.Mod(h, 2)-1)

	var r, g, b float64
	switch int(h) {
	case 0:
		r, g = 1, x
	case 1:
		r, g = x, 1
	case 2:
		g, b = 1, x
	case 3:
		g, b = x, 1
	case 4:
		r, b = x, 1
	default:
		r, b = 1, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
