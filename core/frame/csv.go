package frame

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// missingTokens are cell values read as missing regardless of column kind.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
}

// candidateDelimiters are tried in order when no delimiter is configured.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t', '|'.
	Delimiter rune
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// CSVOption configures ReadCSV.
type CSVOption func(*CSVOptions)

// WithDelimiter fixes the field delimiter.
func WithDelimiter(d rune) CSVOption {
	return func(o *CSVOptions) { o.Delimiter = d }
}

// WithMaxRows limits the number of data rows read.
func WithMaxRows(n int) CSVOption {
	return func(o *CSVOptions) { o.MaxRows = n }
}

// IsMissingToken reports whether a raw cell is read as missing.
func IsMissingToken(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// ReadCSV parses delimited UTF-8 text with a header row.
//
// A column is numeric when every non-missing cell parses as a finite
// float; otherwise it is categorical, so "inf" or "Infinity" cells keep
// their column categorical. Malformed input (empty stream, empty or
// duplicate header names, rows with the wrong number of fields) returns a
// ParseError, DuplicateColumnError or ValidationError.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Frame, error) {
	o := CSVOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	br := bufio.NewReader(r)
	delim := o.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewParseError(0, "empty input", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.NewParseError(1, "invalid header", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i, h := range header {
		if !utf8.ValidString(h) {
			return nil, errors.NewParseError(1, "invalid UTF-8 in header", nil)
		}
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, errors.NewParseError(1, "empty column name at position "+strconv.Itoa(i+1), nil)
		}
	}

	cells := make([][]string, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewParseError(line, "malformed row", err)
		}
		if len(rec) != len(header) {
			return nil, errors.NewParseError(line,
				"expected "+strconv.Itoa(len(header))+" fields, got "+strconv.Itoa(len(rec)), nil)
		}
		for j, cell := range rec {
			if !utf8.ValidString(cell) {
				return nil, errors.NewParseError(line, "invalid UTF-8 in column "+strconv.Quote(header[j]), nil)
			}
			cells[j] = append(cells[j], strings.TrimSpace(cell))
		}
		if o.MaxRows > 0 && len(cells[0]) >= o.MaxRows {
			break
		}
	}

	cols := make([]*Series, len(header))
	for j, name := range header {
		cols[j] = inferSeries(name, cells[j])
	}
	return New(cols...)
}

// inferSeries returns a numeric series when every non-missing cell parses as a finite float.
func inferSeries(name string, cells []string) *Series {
	floats := make([]float64, len(cells))
	numeric := true
	for i, c := range cells {
		if IsMissingToken(c) {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsInf(v, 0) {
			numeric = false
			break
		}
		floats[i] = v
	}
	if numeric {
		return NewNumeric(name, floats)
	}

	strs := make([]string, len(cells))
	for i, c := range cells {
		if !IsMissingToken(c) {
			strs[i] = c
		}
	}
	return NewCategorical(name, strs)
}

// sniffDelimiter picks the candidate that splits the header line into the
// most fields, defaulting to comma.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		n := bytes.Count(head, []byte(string(d)))
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// WriteCSV writes the frame with a header row using comma delimiters.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := cw.WriteAll(f.Records()); err != nil {
		return errors.Wrap(err, "write rows")
	}
	return nil
}
