// Package frame provides the typed columnar table that flows through
// mlplay pipelines.
//
// A Frame holds an ordered set of uniquely named columns. Each column is
// either Numeric (float64, NaN = missing) or Categorical (string,
// "" = missing). Operations never mutate the receiver: Drop, Select and
// Take return new frames that may share column storage with the original.
package frame

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Frame is an ordered collection of equally sized columns.
type Frame struct {
	columns []*Series
	index   map[string]int
	nRows   int
}

// New builds a frame from the given columns.
// Column names must be non-empty and unique, and all columns must have the same length.
func New(columns ...*Series) (*Frame, error) {
	f := &Frame{
		columns: make([]*Series, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, errors.NewValidationError("column", "column name must not be empty", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewDuplicateColumnError(c.Name)
		}
		if i == 0 {
			f.nRows = c.Len()
		} else if c.Len() != f.nRows {
			return nil, errors.NewDimensionError("frame.New", f.nRows, c.Len(), 0)
		}
		f.index[c.Name] = len(f.columns)
		f.columns = append(f.columns, c)
	}
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nRows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Dims returns (rows, columns), mirroring mat.Matrix.
func (f *Frame) Dims() (int, int) { return f.nRows, len(f.columns) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Columns returns the underlying series in order.
func (f *Frame) Columns() []*Series {
	out := make([]*Series, len(f.columns))
	copy(out, f.columns)
	return out
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Series, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewMissingColumnError("Frame.Column", name)
	}
	return f.columns[i], nil
}

// Missing returns the names that are not columns of f, preserving order.
func (f *Frame) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Drop returns a frame without the named columns.
// Every name must exist; otherwise a MissingColumnError listing the absent names is returned.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	if missing := f.Missing(names...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError("Frame.Drop", missing...)
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := make([]*Series, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := drop[c.Name]; !ok {
			kept = append(kept, c)
		}
	}
	return f.derive(kept), nil
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if missing := f.Missing(names...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError("Frame.Select", missing...)
	}
	cols := make([]*Series, len(names))
	for i, n := range names {
		cols[i] = f.columns[f.index[n]]
	}
	return New(cols...)
}

// Take returns a frame holding the given rows in order.
func (f *Frame) Take(rows []int) *Frame {
	cols := make([]*Series, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.Take(rows)
	}
	out := f.derive(cols)
	out.nRows = len(rows)
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.nRows {
		n = f.nRows
	}
	return f.Take(seq(0, n))
}

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame {
	if n > f.nRows {
		n = f.nRows
	}
	return f.Take(seq(f.nRows-n, f.nRows))
}

// NumericColumns returns the names of numeric columns in order.
func (f *Frame) NumericColumns() []string {
	return f.namesOf(Numeric)
}

// CategoricalColumns returns the names of every non-numeric column in order.
func (f *Frame) CategoricalColumns() []string {
	return f.namesOf(Categorical)
}

// WithColumn returns a frame with s appended, or replacing the column of the same name.
func (f *Frame) WithColumn(s *Series) (*Frame, error) {
	if s.Len() != f.nRows && len(f.columns) > 0 {
		return nil, errors.NewDimensionError("Frame.WithColumn", f.nRows, s.Len(), 0)
	}
	cols := f.Columns()
	if i, ok := f.index[s.Name]; ok {
		cols[i] = s
	} else {
		cols = append(cols, s)
	}
	return New(cols...)
}

// Dense converts a numeric-only frame into a row-major matrix.
func (f *Frame) Dense() (*mat.Dense, error) {
	if cat := f.CategoricalColumns(); len(cat) > 0 {
		return nil, errors.NewValueError("Frame.Dense",
			"categorical columns must be encoded before fitting: "+strings.Join(cat, ", "))
	}
	if f.nRows == 0 || len(f.columns) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	data := make([]float64, f.nRows*len(f.columns))
	for j, c := range f.columns {
		for i, v := range c.Floats {
			data[i*len(f.columns)+j] = v
		}
	}
	return mat.NewDense(f.nRows, len(f.columns), data), nil
}

// FromDense builds a numeric frame from a matrix and column names.
func FromDense(names []string, m mat.Matrix) (*Frame, error) {
	r, c := m.Dims()
	if len(names) != c {
		return nil, errors.NewDimensionError("frame.FromDense", c, len(names), 1)
	}
	cols := make([]*Series, c)
	for j := 0; j < c; j++ {
		vals := make([]float64, r)
		for i := 0; i < r; i++ {
			vals[i] = m.At(i, j)
		}
		cols[j] = NewNumeric(names[j], vals)
	}
	return New(cols...)
}

// HStack concatenates the columns of several frames with equal row counts.
func HStack(frames ...*Frame) (*Frame, error) {
	var cols []*Series
	rows := -1
	for _, fr := range frames {
		if fr == nil {
			continue
		}
		if rows >= 0 && fr.nRows != rows {
			return nil, errors.NewDimensionError("frame.HStack", rows, fr.nRows, 0)
		}
		rows = fr.nRows
		cols = append(cols, fr.columns...)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 && rows > 0 {
		out.nRows = rows
	}
	return out, nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	cols := make([]*Series, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.Clone()
	}
	return f.derive(cols)
}

// Records returns the rows formatted as strings, header excluded.
func (f *Frame) Records() [][]string {
	out := make([][]string, f.nRows)
	for i := 0; i < f.nRows; i++ {
		row := make([]string, len(f.columns))
		for j, c := range f.columns {
			row[j] = c.Value(i)
		}
		out[i] = row
	}
	return out
}

func (f *Frame) derive(cols []*Series) *Frame {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Name] = i
	}
	return &Frame{columns: cols, index: index, nRows: f.nRows}
}

func (f *Frame) namesOf(kind Kind) []string {
	var names []string
	for _, c := range f.columns {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}

func seq(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}
