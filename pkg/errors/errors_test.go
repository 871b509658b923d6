package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "estimator failed",
			err:     fmt.Errorf("singular matrix"),
			wantMsg: "mlplay: Fit: estimator failed: singular matrix",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "mlplay: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 3, 5, 1)

	want := "mlplay: Predict: dimension mismatch on axis 1 (features). Expected 3, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Pipeline", "Predict")

	want := "mlplay: Pipeline: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestMissingColumnError(t *testing.T) {
	err := NewMissingColumnError("ColumnDropper.Transform", "id", "name")

	want := "mlplay: ColumnDropper.Transform: columns not found: [id, name]"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	// センチネルとの比較
	if !Is(err, ErrMissingColumn) {
		t.Error("Expected Is(err, ErrMissingColumn) to be true")
	}

	wrapped := Wrap(err, "feature engineering")
	if !Is(wrapped, ErrMissingColumn) {
		t.Error("wrapping must keep the sentinel reachable")
	}

	var mcErr *MissingColumnError
	if !As(wrapped, &mcErr) {
		t.Fatal("Error should be castable to *MissingColumnError")
	}
	if len(mcErr.Columns) != 2 {
		t.Errorf("Columns = %v", mcErr.Columns)
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		line    int
		reason  string
		cause   error
		wantMsg string
	}{
		{
			name:    "with line",
			line:    4,
			reason:  "wrong number of fields",
			wantMsg: "mlplay: parse error on line 4: wrong number of fields",
		},
		{
			name:    "without line with cause",
			reason:  "empty input",
			cause:   ErrEmptyData,
			wantMsg: "mlplay: parse error: empty input: empty data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewParseError(tt.line, tt.reason, tt.cause)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if tt.cause != nil && !Is(err, tt.cause) {
				t.Error("cause should be reachable")
			}
		})
	}
}

func TestUnknownEstimatorError(t *testing.T) {
	err := NewUnknownEstimatorError("os.system", []string{"linear_regression", "linear_svc"})

	if !strings.Contains(err.Error(), `unknown estimator "os.system"`) {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var ueErr *UnknownEstimatorError
	if !As(err, &ueErr) {
		t.Error("Error should be castable to *UnknownEstimatorError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("test_size", "train_size + test_size must equal 1", 0.3)

	want := "mlplay: validation failed for parameter 'test_size': train_size + test_size must equal 1 (got: 0.3)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("LogisticRegression", 100, "gradient norm above tol")

	want := "LogisticRegression failed to converge after 100 iterations: gradient norm above tol"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}
}

func TestWarn_UsesHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("LinearSVC", 10, ""))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows", "Split", 2)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Split: expected 2 rows") {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestCheckFinite(t *testing.T) {
	m := denseStub{rows: 2, cols: 2, data: []float64{1, 2, 3, 4}}
	if err := CheckFinite("Fit", m); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	m.data[3] = nan()
	err := CheckFinite("Fit", m)
	if err == nil {
		t.Fatal("expected error for NaN input")
	}
	var valErr *ValueError
	if !As(err, &valErr) {
		t.Errorf("expected ValueError, got %T", err)
	}
}

type denseStub struct {
	rows, cols int
	data       []float64
}

func (d denseStub) At(i, j int) float64 { return d.data[i*d.cols+j] }
func (d denseStub) Dims() (int, int)    { return d.rows, d.cols }

func nan() float64 {
	zero := 0.0
	return zero / zero
}
