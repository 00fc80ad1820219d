package models

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
)

// BaselineLogistic is a standard-score-scaled logistic regression
// predictor, trained by batch gradient descent. It is the floor model
// every ensemble member is compared against (spec §4.4).
type BaselineLogistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Stds    []float64 `json:"stds"`

	learningRate float64
	epochs       int
}

// NewBaselineLogistic returns an untrained predictor with the given
// gradient-descent hyperparameters.
func NewBaselineLogistic(learningRate float64, epochs int) *BaselineLogistic {
	if learningRate <= 0 {
		learningRate = 0.05
	}
	if epochs <= 0 {
		epochs = 200
	}
	return &BaselineLogistic{learningRate: learningRate, epochs: epochs}
}

// Train fits weights via full-batch gradient descent on standardized
// features (gonum/stat.MeanStdDev for scaling), per-column.
func (m *BaselineLogistic) Train(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("baseline: no training rows")
	}
	nFeatures := len(X[0])
	m.Means = make([]float64, nFeatures)
	m.Stds = make([]float64, nFeatures)
	for j := 0; j < nFeatures; j++ {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		m.Means[j] = mean
		m.Stds[j] = std
	}

	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i] = m.scale(row)
	}

	m.Weights = make([]float64, nFeatures)
	m.Bias = 0
	n := float64(len(scaled))
	for epoch := 0; epoch < m.epochs; epoch++ {
		gradW := make([]float64, nFeatures)
		var gradB float64
		for i, row := range scaled {
			pred := sigmoid(dot(row, m.Weights) + m.Bias)
			errTerm := pred - y[i]
			for j, v := range row {
				gradW[j] += errTerm * v
			}
			gradB += errTerm
		}
		for j := range m.Weights {
			m.Weights[j] -= m.learningRate * gradW[j] / n
		}
		m.Bias -= m.learningRate * gradB / n
	}
	return nil
}

// PredictProba returns the sigmoid of the linear score on standardized x.
func (m *BaselineLogistic) PredictProba(x []float64) (float64, error) {
	if len(m.Weights) == 0 {
		return 0, fmt.Errorf("baseline: model not trained")
	}
	return sigmoid(dot(m.scale(x), m.Weights) + m.Bias), nil
}

func (m *BaselineLogistic) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - m.Means[i]) / m.Stds[i]
	}
	return out
}

// Save writes the model's parameters as JSON.
func (m *BaselineLogistic) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("baseline: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads parameters previously written by Save.
func (m *BaselineLogistic) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("baseline: read %s: %w", path, err)
	}
	return json.Unmarshal(data, m)
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// sharpe computes an annualization-free Sharpe ratio (mean/stddev) over a
// slice of per-trade returns, 0 when there's insufficient variance to
// measure (spec §4.5's evaluation protocol).
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return mean / std
}
