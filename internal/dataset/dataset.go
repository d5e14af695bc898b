// Package dataset parses uploaded tabular files into in-memory datasets and
// answers schema questions about them.
//
// A Dataset is an ordered set of named, homogeneous columns backed by a gota
// dataframe. Column types (string, int, float, bool) are inferred during
// parsing; missing values become NaN markers. Every operation that derives a
// new view returns a fresh dataframe, so a Dataset is safe to share between
// concurrent readers.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
)

// DefaultPreviewRows is how many rows Summary includes by default.
const DefaultPreviewRows = 5

// Dataset is an immutable, in-memory tabular dataset.
type Dataset struct {
	df dataframe.DataFrame
}

// Summary describes a dataset's schema: column names, inferred types, row
// count, and a small preview of the leading rows.
type Summary struct {
	Columns []string         `json:"column_names"`
	Types   []string         `json:"types"`
	Rows    int              `json:"rows"`
	Preview []map[string]any `json:"preview"`
}

// Parse reads delimited text into a Dataset.
//
// The first row is the header and is mandatory: empty or duplicate column
// names are rejected. Every data row must have the same field count as the
// header; the returned ParseError names the offending line.
func Parse(raw []byte) (*Dataset, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperror.ParseFailed("uploaded file is empty")
	}

	header, hasData, err := readHeader(raw)
	if err != nil {
		return nil, err
	}

	// The dataframe reader rejects inputs with no data rows, but a
	// header-only upload is a valid zero-row dataset.
	if !hasData {
		cols := make([]series.Series, len(header))
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		return &Dataset{df: dataframe.New(cols...)}, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(raw),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		return nil, apperror.ParseFailed(df.Err.Error())
	}

	return &Dataset{df: df}, nil
}

// readHeader validates the header row before the bytes go to the dataframe
// reader, which would otherwise rename duplicates silently, and reports
// whether any data row follows it.
func readHeader(raw []byte) (header []string, hasData bool, err error) {
	r := csv.NewReader(bytes.NewReader(raw))
	header, err = r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, apperror.ParseFailed("uploaded file has no header row")
		}
		return nil, false, apperror.ParseFailed(err.Error())
	}

	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, false, apperror.ParseFailed(fmt.Sprintf("header column %d has an empty name", i+1))
		}
		if _, dup := seen[name]; dup {
			return nil, false, apperror.ParseFailed(fmt.Sprintf("duplicate column name %q in header", name))
		}
		seen[name] = struct{}{}
	}

	// Malformed data rows are left for the dataframe reader, which names
	// the offending line; only a clean EOF means header-only input.
	_, err = r.Read()
	if errors.Is(err, io.EOF) {
		return header, false, nil
	}
	return header, true, nil
}

// Frame returns the backing dataframe. The returned value shares column
// storage but dataframe operations never mutate it in place.
func (d *Dataset) Frame() dataframe.DataFrame {
	return d.df
}

// Rows returns the number of data rows.
func (d *Dataset) Rows() int {
	return d.df.Nrow()
}

// Cols returns the number of columns.
func (d *Dataset) Cols() int {
	return d.df.Ncol()
}

// Columns returns the ordered column names.
func (d *Dataset) Columns() []string {
	return d.df.Names()
}

// Summary reports schema information plus a preview of up to previewRows
// leading rows. previewRows <= 0 selects DefaultPreviewRows.
func (d *Dataset) Summary(previewRows int) Summary {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	if previewRows > d.df.Nrow() {
		previewRows = d.df.Nrow()
	}

	types := make([]string, 0, d.df.Ncol())
	for _, t := range d.df.Types() {
		types = append(types, string(t))
	}

	preview := []map[string]any{}
	if previewRows > 0 {
		idx := make([]int, previewRows)
		for i := range idx {
			idx[i] = i
		}
		head := d.df.Subset(idx)
		if head.Err == nil {
			preview = head.Maps()
		}
	}

	return Summary{
		Columns: d.df.Names(),
		Types:   types,
		Rows:    d.df.Nrow(),
		Preview: preview,
	}
}

// NumericColumns returns the names of int and float typed columns, in order.
func (d *Dataset) NumericColumns() []string {
	names := d.df.Names()
	var numeric []string
	for i, t := range d.df.Types() {
		if t == series.Int || t == series.Float {
			numeric = append(numeric, names[i])
		}
	}
	return numeric
}
