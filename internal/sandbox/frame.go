package sandbox

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.starlark.net/starlark"
)

// Frame is the Starlark view of a dataset. Every method derives a new frame
// or a plain value; nothing mutates the underlying dataframe, so rebinding
// inside a snippet can never leak back into the store.
type Frame struct {
	df dataframe.DataFrame
}

// NewFrame wraps a dataframe for use inside the evaluation scope.
func NewFrame(df dataframe.DataFrame) *Frame {
	return &Frame{df: df}
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
)

func (f *Frame) String() string        { return f.df.String() }
func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Freeze()               {} // frames are already immutable
func (f *Frame) Truth() starlark.Bool  { return starlark.Bool(f.df.Nrow() > 0) }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }

func (f *Frame) Attr(name string) (starlark.Value, error) {
	impl, ok := frameMethods[name]
	if !ok {
		return nil, nil // no such attribute
	}
	return starlark.NewBuiltin(name, impl).BindReceiver(f), nil
}

func (f *Frame) AttrNames() []string {
	names := make([]string, 0, len(frameMethods))
	for name := range frameMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type frameMethod = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

var frameMethods = map[string]frameMethod{
	"col":      frameCol,
	"describe": frameDescribe,
	"filter":   frameFilter,
	"head":     frameHead,
	"max":      frameStat,
	"mean":     frameStat,
	"median":   frameStat,
	"min":      frameStat,
	"names":    frameNames,
	"ncol":     frameNcol,
	"nrow":     frameNrow,
	"records":  frameRecords,
	"select":   frameSelect,
	"sort":     frameSort,
	"stddev":   frameStat,
	"sum":      frameStat,
	"tail":     frameTail,
	"types":    frameTypes,
}

func recvFrame(b *starlark.Builtin) *Frame {
	return b.Receiver().(*Frame)
}

func frameNames(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	elems := make([]starlark.Value, 0, f.df.Ncol())
	for _, name := range f.df.Names() {
		elems = append(elems, starlark.String(name))
	}
	return starlark.NewList(elems), nil
}

func frameTypes(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	elems := make([]starlark.Value, 0, f.df.Ncol())
	for _, t := range f.df.Types() {
		elems = append(elems, starlark.String(string(t)))
	}
	return starlark.NewList(elems), nil
}

func frameNrow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(recvFrame(b).df.Nrow()), nil
}

func frameNcol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(recvFrame(b).df.Ncol()), nil
}

func frameHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	return subsetRange(f, 0, n)
}

func frameTail(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	start := f.df.Nrow() - n
	if start < 0 {
		start = 0
	}
	return subsetRange(f, start, f.df.Nrow())
}

func subsetRange(f *Frame, start, end int) (starlark.Value, error) {
	if end > f.df.Nrow() {
		end = f.df.Nrow()
	}
	if start >= end {
		return NewFrame(f.df.Subset([]int{})), nil
	}
	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	sub := f.df.Subset(idx)
	if sub.Err != nil {
		return nil, sub.Err
	}
	return NewFrame(sub), nil
}

func frameCol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	s, err := f.column(name)
	if err != nil {
		return nil, err
	}
	return seriesToList(s), nil
}

func frameSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: at least one column name is required", b.Name())
	}
	names := make([]string, 0, len(args))
	for _, arg := range args {
		s, ok := starlark.AsString(arg)
		if !ok {
			return nil, fmt.Errorf("%s: column names must be strings, got %s", b.Name(), arg.Type())
		}
		names = append(names, s)
	}
	f := recvFrame(b)
	sel := f.df.Select(names)
	if sel.Err != nil {
		return nil, sel.Err
	}
	return NewFrame(sel), nil
}

var comparators = map[string]series.Comparator{
	"==": series.Eq,
	"!=": series.Neq,
	">":  series.Greater,
	">=": series.GreaterEq,
	"<":  series.Less,
	"<=": series.LessEq,
	"in": series.In,
}

func frameFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column, op string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "op", &op, "value", &value); err != nil {
		return nil, err
	}
	comp, ok := comparators[op]
	if !ok {
		return nil, fmt.Errorf("%s: unknown comparator %q (use ==, !=, >, >=, <, <=, in)", b.Name(), op)
	}
	comparando, err := toGoValue(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	f := recvFrame(b)
	filtered := f.df.Filter(dataframe.F{Colname: column, Comparator: comp, Comparando: comparando})
	if filtered.Err != nil {
		return nil, filtered.Err
	}
	return NewFrame(filtered), nil
}

func frameSort(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column string
	reverse := false
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "reverse?", &reverse); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	order := dataframe.Sort(column)
	if reverse {
		order = dataframe.RevSort(column)
	}
	sorted := f.df.Arrange(order)
	if sorted.Err != nil {
		return nil, sorted.Err
	}
	return NewFrame(sorted), nil
}

// frameStat serves mean, median, min, max, stddev, and sum; the builtin name
// selects the statistic.
func frameStat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &name); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	s, err := f.column(name)
	if err != nil {
		return nil, err
	}
	if s.Type() != series.Int && s.Type() != series.Float {
		return nil, fmt.Errorf("%s: column %q is not numeric", b.Name(), name)
	}

	var v float64
	switch b.Name() {
	case "mean":
		v = s.Mean()
	case "median":
		v = s.Median()
	case "min":
		v = s.Min()
	case "max":
		v = s.Max()
	case "stddev":
		v = s.StdDev()
	case "sum":
		v = s.Sum()
	default:
		return nil, fmt.Errorf("unknown statistic %q", b.Name())
	}
	return starlark.Float(v), nil
}

func frameDescribe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(recvFrame(b).df.Describe().String()), nil
}

func frameRecords(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	f := recvFrame(b)
	rows := f.df.Maps()
	names := f.df.Names()
	elems := make([]starlark.Value, 0, len(rows))
	for _, row := range rows {
		d := starlark.NewDict(len(row))
		// insert in column order so reprs are deterministic
		for _, name := range names {
			if err := d.SetKey(starlark.String(name), toStarlarkValue(row[name])); err != nil {
				return nil, err
			}
		}
		elems = append(elems, d)
	}
	return starlark.NewList(elems), nil
}

func (f *Frame) column(name string) (series.Series, error) {
	for _, n := range f.df.Names() {
		if n == name {
			s := f.df.Col(name)
			if s.Err != nil {
				return series.Series{}, s.Err
			}
			return s, nil
		}
	}
	return series.Series{}, fmt.Errorf("unknown column %q", name)
}

// stringColumn returns the column's values rendered as strings.
func (f *Frame) stringColumn(name string) ([]string, error) {
	s, err := f.column(name)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// floatColumn returns a numeric column's values as floats.
func (f *Frame) floatColumn(name string) ([]float64, error) {
	s, err := f.column(name)
	if err != nil {
		return nil, err
	}
	if s.Type() != series.Int && s.Type() != series.Float {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	return s.Float(), nil
}

// axisColumn returns the column as floats when numeric, or positional
// indices when it is not, for use as a line/scatter x-axis.
func (f *Frame) axisColumn(name string) ([]float64, error) {
	s, err := f.column(name)
	if err != nil {
		return nil, err
	}
	if s.Type() == series.Int || s.Type() == series.Float {
		return s.Float(), nil
	}
	xs := make([]float64, s.Len())
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs, nil
}
