package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/patelnilay251/backend-data-forge/internal/figure"
)

// figureValue is the Starlark handle for a produced chart.
type figureValue struct {
	fig *figure.Figure
}

var _ starlark.Value = figureValue{}

func (v figureValue) String() string        { return fmt.Sprintf("figure(%s)", v.fig.Kind) }
func (v figureValue) Type() string          { return "figure" }
func (v figureValue) Freeze()               {}
func (v figureValue) Truth() starlark.Bool  { return starlark.True }
func (v figureValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: figure") }

// plotModule builds the plotting capability for a single run. Every builtin
// writes the chart it constructs into slot, the per-call output channel the
// render pipeline reads; the last plot call wins.
func plotModule(slot **figure.Figure) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "plot",
		Members: starlark.StringDict{
			"bar":     starlark.NewBuiltin("plot.bar", plotBar(slot)),
			"line":    starlark.NewBuiltin("plot.line", plotXY(slot, figure.KindLine)),
			"scatter": starlark.NewBuiltin("plot.scatter", plotXY(slot, figure.KindScatter)),
			"hist":    starlark.NewBuiltin("plot.hist", plotHist(slot)),
		},
	}
}

func unpackFrame(b *starlark.Builtin, v starlark.Value) (*Frame, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("%s: frame must be a frame, got %s", b.Name(), v.Type())
	}
	return f, nil
}

func plotBar(slot **figure.Figure) frameMethod {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var frameV starlark.Value
		var x, y, title string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "frame", &frameV, "x", &x, "y", &y, "title?", &title); err != nil {
			return nil, err
		}
		f, err := unpackFrame(b, frameV)
		if err != nil {
			return nil, err
		}
		labels, err := f.stringColumn(x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ys, err := f.floatColumn(y)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		fig := &figure.Figure{
			Kind:   figure.KindBar,
			Title:  title,
			XLabel: x,
			YLabel: y,
			Labels: labels,
			Y:      ys,
		}
		*slot = fig
		return figureValue{fig}, nil
	}
}

func plotXY(slot **figure.Figure, kind figure.Kind) frameMethod {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var frameV starlark.Value
		var x, y, title string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "frame", &frameV, "x", &x, "y", &y, "title?", &title); err != nil {
			return nil, err
		}
		f, err := unpackFrame(b, frameV)
		if err != nil {
			return nil, err
		}
		xs, err := f.axisColumn(x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ys, err := f.floatColumn(y)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		fig := &figure.Figure{
			Kind:   kind,
			Title:  title,
			XLabel: x,
			YLabel: y,
			X:      xs,
			Y:      ys,
		}
		*slot = fig
		return figureValue{fig}, nil
	}
}

func plotHist(slot **figure.Figure) frameMethod {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var frameV starlark.Value
		var column, title string
		bins := 10
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "frame", &frameV, "column", &column, "bins?", &bins, "title?", &title); err != nil {
			return nil, err
		}
		f, err := unpackFrame(b, frameV)
		if err != nil {
			return nil, err
		}
		if bins <= 0 {
			return nil, fmt.Errorf("%s: bins must be positive, got %d", b.Name(), bins)
		}
		values, err := f.floatColumn(column)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		fig := &figure.Figure{
			Kind:   figure.KindHistogram,
			Title:  title,
			XLabel: column,
			Values: values,
			Bins:   bins,
		}
		*slot = fig
		return figureValue{fig}, nil
	}
}
