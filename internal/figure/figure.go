// Package figure defines the chart value object that sandboxed snippets
// produce and the render pipeline consumes. A snippet writes its Figure into
// an explicit per-call output slot instead of mutating global plotting state,
// so unrelated requests can never observe a leftover chart.
package figure

import "fmt"

// Kind identifies the chart type.
type Kind string

const (
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindHistogram Kind = "histogram"
)

// Kinds lists every supported chart kind.
func Kinds() []Kind {
	return []Kind{KindBar, KindLine, KindScatter, KindHistogram}
}

// Figure is a fully-specified chart, ready to encode.
//
// Which fields matter depends on Kind: bar charts use Labels + Y, line and
// scatter charts use X + Y, histograms use Values + Bins.
type Figure struct {
	Kind   Kind
	Title  string
	XLabel string
	YLabel string

	X      []float64 // line, scatter
	Y      []float64 // line, scatter, bar
	Labels []string  // bar: nominal x-axis labels
	Values []float64 // histogram
	Bins   int       // histogram
}

// Validate reports whether the figure carries a consistent data payload.
func (f *Figure) Validate() error {
	switch f.Kind {
	case KindBar:
		if len(f.Y) == 0 {
			return fmt.Errorf("bar chart has no values")
		}
		if len(f.Labels) != len(f.Y) {
			return fmt.Errorf("bar chart has %d labels for %d values", len(f.Labels), len(f.Y))
		}
	case KindLine, KindScatter:
		if len(f.X) == 0 || len(f.Y) == 0 {
			return fmt.Errorf("%s chart has no points", f.Kind)
		}
		if len(f.X) != len(f.Y) {
			return fmt.Errorf("%s chart has %d x values for %d y values", f.Kind, len(f.X), len(f.Y))
		}
	case KindHistogram:
		if len(f.Values) == 0 {
			return fmt.Errorf("histogram has no values")
		}
		if f.Bins <= 0 {
			return fmt.Errorf("histogram bin count must be positive, got %d", f.Bins)
		}
	default:
		return fmt.Errorf("unsupported chart kind: %s", f.Kind)
	}
	return nil
}
