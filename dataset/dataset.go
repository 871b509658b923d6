// Package dataset loads a delimited upload into a frame and tracks the
// chosen target column through the run.
package dataset

import (
	"io"
	"os"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

// Loaded is a parsed upload together with the column choices offered to
// the user.
type Loaded struct {
	Frame *frame.Frame
	// ColumnSelector lists the columns with the last one moved to index 1,
	// since targets usually sit in the first or last column.
	ColumnSelector []string
	// IDSelector is "" (no identifier column) followed by ColumnSelector.
	IDSelector []string
}

// Load reads delimited text with a header row.
func Load(r io.Reader, opts ...frame.CSVOption) (*Loaded, error) {
	f, err := frame.ReadCSV(r, opts...)
	if err != nil {
		return nil, err
	}
	if f.NCols() == 0 {
		return nil, errors.NewParseError(1, "header has no columns", errors.ErrEmptyData)
	}
	sel := ColumnSelector(f.Names())
	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, f.NRows(),
		log.FeaturesKey, f.NCols(),
	)
	return &Loaded{
		Frame:          f,
		ColumnSelector: sel,
		IDSelector:     append([]string{""}, sel...),
	}, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts ...frame.CSVOption) (*Loaded, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer fh.Close()
	return Load(fh, opts...)
}

// ColumnSelector moves the last name to the second position.
func ColumnSelector(names []string) []string {
	n := len(names)
	if n < 3 {
		return append([]string(nil), names...)
	}
	out := make([]string, 0, n)
	out = append(out, names[0], names[n-1])
	return append(out, names[1:n-1]...)
}

// IDSelectorFor returns the identifier choices once target is chosen.
func (l *Loaded) IDSelectorFor(target string) []string {
	out := make([]string, 0, len(l.IDSelector))
	for _, c := range l.IDSelector {
		if c != target || c == "" {
			out = append(out, c)
		}
	}
	return out
}

// Dataset is a table plus the name of its target column. The target is
// never part of the feature table.
type Dataset struct {
	Frame  *frame.Frame
	Target string
}

// New checks that target exists in f.
func New(f *frame.Frame, target string) (*Dataset, error) {
	if target == "" {
		return nil, errors.NewValidationError("target", "a target column is required", target)
	}
	if !f.Has(target) {
		return nil, errors.NewMissingColumnError("dataset.New", target)
	}
	return &Dataset{Frame: f, Target: target}, nil
}

// DropID removes the identifier column in place. An empty name is a no-op.
func (d *Dataset) DropID(name string) error {
	if name == "" {
		return nil
	}
	if name == d.Target {
		return errors.NewValidationError("id_column", "identifier column cannot be the target", name)
	}
	f, err := d.Frame.Drop(name)
	if err != nil {
		return err
	}
	d.Frame = f
	return nil
}

// XY splits the table into the feature frame and the target series.
func (d *Dataset) XY() (*frame.Frame, *frame.Series, error) {
	y, err := d.Frame.Column(d.Target)
	if err != nil {
		return nil, nil, err
	}
	X, err := d.Frame.Drop(d.Target)
	if err != nil {
		return nil, nil, err
	}
	if X.NCols() == 0 {
		return nil, nil, errors.NewValueError("dataset.XY", "no feature columns besides the target")
	}
	return X, y, nil
}

// Preview returns the first and last n rows, or the whole table when it
// has at most 2n rows.
func Preview(f *frame.Frame, n int) *frame.Frame {
	if f.NRows() <= 2*n {
		return f
	}
	rows := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		rows = append(rows, i)
	}
	for i := f.NRows() - n; i < f.NRows(); i++ {
		rows = append(rows, i)
	}
	return f.Take(rows)
}
