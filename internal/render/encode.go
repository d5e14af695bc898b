package render

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/patelnilay251/backend-data-forge/internal/figure"
)

// MIMEType of every encoded image.
const MIMEType = "image/png"

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 5 * vg.Inch
)

var barWidth = vg.Points(20)

// Encode renders a figure to PNG bytes. All plotting state is local to the
// call; nothing persists between encodes.
func Encode(fig *figure.Figure) ([]byte, error) {
	if err := fig.Validate(); err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel

	switch fig.Kind {
	case figure.KindBar:
		bars, err := plotter.NewBarChart(plotter.Values(fig.Y), barWidth)
		if err != nil {
			return nil, fmt.Errorf("building bar chart: %w", err)
		}
		p.Add(bars)
		p.NominalX(fig.Labels...)

	case figure.KindLine:
		line, err := plotter.NewLine(xyPoints(fig.X, fig.Y))
		if err != nil {
			return nil, fmt.Errorf("building line chart: %w", err)
		}
		p.Add(line)

	case figure.KindScatter:
		scatter, err := plotter.NewScatter(xyPoints(fig.X, fig.Y))
		if err != nil {
			return nil, fmt.Errorf("building scatter chart: %w", err)
		}
		p.Add(scatter)

	case figure.KindHistogram:
		hist, err := plotter.NewHist(plotter.Values(fig.Values), fig.Bins)
		if err != nil {
			return nil, fmt.Errorf("building histogram: %w", err)
		}
		p.Add(hist)

	default:
		return nil, fmt.Errorf("unsupported chart kind: %s", fig.Kind)
	}

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("encoding figure: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding figure: %w", err)
	}
	return buf.Bytes(), nil
}

func xyPoints(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range pts {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}
