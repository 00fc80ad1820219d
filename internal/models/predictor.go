// Package models implements the predictor contract, the baseline
// logistic-regression predictor, and the on-disk model registry that
// tracks every trained model's metadata and rolling performance.
package models

import "github.com/nse-trader/core/internal/domain"

// Predictor is the contract every model family implements, whether a
// baseline statistical model or a future heavier one (spec's Non-goals
// exclude training LSTM/XGBoost models in this core, but the interface
// is shaped so such a model could be dropped in without touching the
// ensemble or strategy layers).
type Predictor interface {
	// Train fits the model on X (rows of features, already cleaned and
	// time-ordered) against binary labels y (1 = forward return positive).
	Train(X [][]float64, y []float64) error
	// PredictProba returns P(label=1) for a single feature row.
	PredictProba(x []float64) (float64, error)
	Save(path string) error
	Load(path string) error
}

// WalkForwardResult is one fold of a walk-forward evaluation.
type WalkForwardResult struct {
	FoldIndex   int
	TrainSize   int
	TestSize    int
	Accuracy    float64
	WinRate     float64
	SharpeRatio float64
}

// WalkForwardEvaluate trains on an expanding window and evaluates on the
// next foldSize rows, repeating until the data is exhausted — never
// training on future data relative to its test fold (spec §4.5).
func WalkForwardEvaluate(newPredictor func() Predictor, rows []domain.FeatureRow, labelKey string, featureKeys []string, foldSize, minTrain int) ([]WalkForwardResult, error) {
	X, y := toMatrix(rows, featureKeys, labelKey)
	var results []WalkForwardResult
	for trainEnd := minTrain; trainEnd+foldSize <= len(X); trainEnd += foldSize {
		p := newPredictor()
		if err := p.Train(X[:trainEnd], y[:trainEnd]); err != nil {
			return results, err
		}
		testX, testY := X[trainEnd:trainEnd+foldSize], y[trainEnd:trainEnd+foldSize]
		var correct int
		var wins int
		returns := make([]float64, 0, foldSize)
		for i, x := range testX {
			proba, err := p.PredictProba(x)
			if err != nil {
				return results, err
			}
			predicted := 0.0
			if proba >= 0.5 {
				predicted = 1.0
			}
			if predicted == testY[i] {
				correct++
			}
			if predicted == 1 {
				if testY[i] == 1 {
					wins++
				}
				returns = append(returns, proba-0.5)
			}
		}
		results = append(results, WalkForwardResult{
			FoldIndex:   len(results),
			TrainSize:   trainEnd,
			TestSize:    foldSize,
			Accuracy:    float64(correct) / float64(foldSize),
			WinRate:     ratio(wins, len(returns)),
			SharpeRatio: sharpe(returns),
		})
	}
	return results, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func toMatrix(rows []domain.FeatureRow, featureKeys []string, labelKey string) ([][]float64, []float64) {
	X := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, row := range rows {
		label, ok := row[labelKey]
		if !ok {
			continue
		}
		x := make([]float64, len(featureKeys))
		for i, k := range featureKeys {
			x[i] = row[k]
		}
		X = append(X, x)
		if label > 0 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return X, y
}
