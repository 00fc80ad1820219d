package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearlySeparable returns a training set where label = 1 iff feature 0
// is positive, so a correctly-trained logistic model should
// separate it with high accuracy.
func linearlySeparable(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		f0 := float64(i%20) - 10
		X[i] = []float64{f0, float64(i % 3)}
		if f0 > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestBaselineLogistic_PredictProbaBeforeTrainErrors(t *testing.T) {
	m := NewBaselineLogistic(0, 0)
	_, err := m.PredictProba([]float64{1, 2})
	assert.Error(t, err)
}

func TestBaselineLogistic_TrainThenPredictSeparatesClasses(t *testing.T) {
	X, y := linearlySeparable(200)
	m := NewBaselineLogistic(0.1, 500)
	require.NoError(t, m.Train(X, y))

	pHigh, err := m.PredictProba([]float64{9, 1})
	require.NoError(t, err)
	pLow, err := m.PredictProba([]float64{-9, 1})
	require.NoError(t, err)

	assert.Greater(t, pHigh, 0.5)
	assert.Less(t, pLow, 0.5)
}

func TestBaselineLogistic_SaveLoadRoundTrips(t *testing.T) {
	X, y := linearlySeparable(100)
	m := NewBaselineLogistic(0.1, 200)
	require.NoError(t, m.Train(X, y))

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	loaded := NewBaselineLogistic(0, 0)
	require.NoError(t, loaded.Load(path))

	want, err := m.PredictProba([]float64{5, 1})
	require.NoError(t, err)
	got, err := loaded.PredictProba([]float64{5, 1})
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)
}

func TestBaselineLogistic_ZeroVarianceColumnDoesNotDivideByZero(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}}
	y := []float64{0, 0, 1, 1}
	m := NewBaselineLogistic(0.1, 50)
	require.NoError(t, m.Train(X, y))

	_, err := m.PredictProba([]float64{2.5, 5})
	assert.NoError(t, err)
}
