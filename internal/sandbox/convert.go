package sandbox

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/series"
	"go.starlark.net/starlark"
)

// seriesToList converts a dataframe column to a Starlark list. Missing
// values become None.
func seriesToList(s series.Series) *starlark.List {
	elems := make([]starlark.Value, s.Len())
	for i := range elems {
		elems[i] = elemValue(s, i)
	}
	return starlark.NewList(elems)
}

func elemValue(s series.Series, i int) starlark.Value {
	e := s.Elem(i)
	if e.IsNA() {
		return starlark.None
	}
	switch s.Type() {
	case series.Int:
		n, err := e.Int()
		if err != nil {
			return starlark.None
		}
		return starlark.MakeInt(n)
	case series.Float:
		f := e.Float()
		if math.IsNaN(f) {
			return starlark.None
		}
		return starlark.Float(f)
	case series.Bool:
		b, err := e.Bool()
		if err != nil {
			return starlark.None
		}
		return starlark.Bool(b)
	default:
		return starlark.String(e.String())
	}
}

// toStarlarkValue converts a Go value from the dataframe layer (row maps)
// to its Starlark counterpart.
func toStarlarkValue(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case float64:
		if math.IsNaN(x) {
			return starlark.None
		}
		return starlark.Float(x)
	case string:
		return starlark.String(x)
	default:
		return starlark.String(fmt.Sprint(x))
	}
}

// toGoValue converts a Starlark scalar to a Go value the dataframe layer can
// compare against.
func toGoValue(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		n, err := starlark.AsInt32(x)
		if err != nil {
			return nil, err
		}
		return n, nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case *starlark.List:
		// comparator "in" takes a list of candidates
		vals := make([]string, 0, x.Len())
		for i := 0; i < x.Len(); i++ {
			s, ok := starlark.AsString(x.Index(i))
			if !ok {
				s = x.Index(i).String()
			}
			vals = append(vals, s)
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("unsupported comparison value of type %s", v.Type())
	}
}
