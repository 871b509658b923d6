package svm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func TestLinearSVC_Binary(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0, 0.5, 0.2, 0.1, 0.8, 0.4, 0.4,
		3, 3, 3.5, 2.8, 2.9, 3.6, 3.2, 3.1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	svc := NewLinearSVC()
	require.NoError(t, svc.Fit(X, y))
	assert.Len(t, svc.Coef, 1)

	pred, err := svc.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	dec, err := svc.DecisionFunction(mat.NewDense(2, 2, []float64{0, 0, 4, 4}))
	require.NoError(t, err)
	assert.Less(t, dec.At(0, 0), 0.0)
	assert.Greater(t, dec.At(1, 0), 0.0)
}

func TestLinearSVC_OneVsRest(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0.2, 0.1, 0.1, 0.3,
		5, 0, 5.2, 0.3, 4.9, 0.1,
		0, 5, 0.3, 5.1, 0.1, 4.8,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	svc := NewLinearSVC()
	require.NoError(t, svc.Fit(X, y))
	assert.Len(t, svc.Coef, 3)

	pred, err := svc.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	proba, err := svc.PredictProba(X)
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1)+proba.At(i, 2), 1e-9)
	}
}

func TestLinearSVR(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{1, 3, 5, 7, 9, 11})

	svr := NewLinearSVR()
	require.NoError(t, svr.SetParams(map[string]interface{}{"C": 100.0}))
	require.NoError(t, svr.Fit(X, y))

	assert.InDelta(t, 2.0, svr.Coef[0], 0.05)
	assert.InDelta(t, 1.0, svr.Intercept, 0.2)

	pred, err := svr.Predict(mat.NewDense(1, 1, []float64{10}))
	require.NoError(t, err)
	assert.InDelta(t, 21.0, pred.At(0, 0), 0.5)
}

func TestLinearSVM_Errors(t *testing.T) {
	var nf *errors.NotFittedError
	_, err := NewLinearSVC().Predict(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.As(err, &nf))
	_, err = NewLinearSVR().Predict(mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.As(err, &nf))

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewLinearSVC().SetParams(map[string]interface{}{"kernel": "rbf"}), &ve))
	assert.True(t, errors.As(NewLinearSVR().SetParams(map[string]interface{}{"C": -1}), &ve))
}
