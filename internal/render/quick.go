package render

import (
	"fmt"
	"log/slog"

	"github.com/go-gota/gota/series"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/figure"
)

const defaultHistBins = 10

// QuickChart derives a chart straight from the dataset without running any
// snippet: x is the first column, y the first numeric column.
func (p *Pipeline) QuickChart(ds *dataset.Dataset, chartType string) (*Result, error) {
	kind := figure.Kind(chartType)
	switch kind {
	case figure.KindBar, figure.KindLine, figure.KindScatter, figure.KindHistogram:
	default:
		return nil, apperror.ValidationFailed("chart_type",
			fmt.Sprintf("unsupported chart type %q (supported: %v)", chartType, figure.Kinds()))
	}

	if ds.Rows() == 0 {
		return nil, apperror.NoFigure("the dataset is empty")
	}
	numeric := ds.NumericColumns()
	if len(numeric) == 0 {
		return nil, apperror.NoFigure("no numeric columns available for charting")
	}

	xcol := ds.Columns()[0]
	ycol := numeric[0]
	df := ds.Frame()
	ys := df.Col(ycol).Float()

	fig := &figure.Figure{
		Kind:   kind,
		Title:  fmt.Sprintf("%s of %s", kind, ycol),
		XLabel: xcol,
		YLabel: ycol,
	}
	switch kind {
	case figure.KindBar:
		fig.Labels = df.Col(xcol).Records()
		fig.Y = ys
	case figure.KindLine, figure.KindScatter:
		fig.X = axisValues(df.Col(xcol))
		fig.Y = ys
	case figure.KindHistogram:
		fig.XLabel = ycol
		fig.Values = ys
		fig.Bins = defaultHistBins
	}

	png, err := Encode(fig)
	if err != nil {
		return nil, apperror.ExecutionFailed("encoding figure: " + err.Error())
	}

	p.logger.Info("quick chart rendered",
		slog.String("kind", string(kind)),
		slog.String("y", ycol),
	)
	return &Result{ImageBytes: png, MIMEType: MIMEType}, nil
}

// axisValues uses the column's floats when it is numeric, positional indices
// otherwise.
func axisValues(s series.Series) []float64 {
	if s.Type() == series.Int || s.Type() == series.Float {
		return s.Float()
	}
	xs := make([]float64, s.Len())
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
