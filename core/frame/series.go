package frame

import (
	"math"
	"sort"
	"strconv"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns hold float64 values; NaN marks a missing cell.
	Numeric Kind = iota
	// Categorical columns hold strings; "" marks a missing cell.
	Categorical
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Series is a single named column. Exactly one of Floats or Strings is
// populated, according to Kind.
type Series struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// NewNumeric creates a numeric series. The values slice is used as is.
func NewNumeric(name string, values []float64) *Series {
	return &Series{Name: name, Kind: Numeric, Floats: values}
}

// NewCategorical creates a categorical series. The values slice is used as is.
func NewCategorical(name string, values []string) *Series {
	return &Series{Name: name, Kind: Categorical, Strings: values}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s.Kind == Numeric {
		return len(s.Floats)
	}
	return len(s.Strings)
}

// IsNumeric reports whether the series stores float64 values.
func (s *Series) IsNumeric() bool {
	return s.Kind == Numeric
}

// IsMissing reports whether row i is missing.
func (s *Series) IsMissing(i int) bool {
	if s.Kind == Numeric {
		return math.IsNaN(s.Floats[i])
	}
	return s.Strings[i] == ""
}

// MissingCount returns the number of missing cells.
func (s *Series) MissingCount() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.IsMissing(i) {
			n++
		}
	}
	return n
}

// Value returns row i formatted as a string. Missing cells render as "".
func (s *Series) Value(i int) string {
	if s.Kind == Categorical {
		return s.Strings[i]
	}
	v := s.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Values returns every row formatted with Value.
func (s *Series) Values() []string {
	if s.Kind == Categorical {
		out := make([]string, len(s.Strings))
		copy(out, s.Strings)
		return out
	}
	out := make([]string, len(s.Floats))
	for i := range s.Floats {
		out[i] = s.Value(i)
	}
	return out
}

// Rename returns a shallow copy of the series under a new name.
func (s *Series) Rename(name string) *Series {
	return &Series{Name: name, Kind: s.Kind, Floats: s.Floats, Strings: s.Strings}
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	c := &Series{Name: s.Name, Kind: s.Kind}
	if s.Floats != nil {
		c.Floats = make([]float64, len(s.Floats))
		copy(c.Floats, s.Floats)
	}
	if s.Strings != nil {
		c.Strings = make([]string, len(s.Strings))
		copy(c.Strings, s.Strings)
	}
	return c
}

// Take returns a new series holding the given rows in order.
func (s *Series) Take(rows []int) *Series {
	c := &Series{Name: s.Name, Kind: s.Kind}
	if s.Kind == Numeric {
		c.Floats = make([]float64, len(rows))
		for i, r := range rows {
			c.Floats[i] = s.Floats[r]
		}
		return c
	}
	c.Strings = make([]string, len(rows))
	for i, r := range rows {
		c.Strings[i] = s.Strings[r]
	}
	return c
}

// Unique returns the sorted distinct non-missing values formatted with Value.
// Numeric values are ordered numerically, strings lexically.
func (s *Series) Unique() []string {
	if s.Kind == Numeric {
		seen := make(map[float64]struct{})
		var vals []float64
		for _, v := range s.Floats {
			if math.IsNaN(v) {
				continue
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				vals = append(vals, v)
			}
		}
		sort.Float64s(vals)
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return out
	}

	seen := make(map[string]struct{})
	var out []string
	for _, v := range s.Strings {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
