// Package ensemble combines per-model predictions into a single
// probability/confidence pair, weighted by each model's composite
// performance score (spec §4.6).
package ensemble

import (
	"fmt"
	"math"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/models"
)

// WeightedMember pairs a model's prediction with its registry entry so
// the ensemble can weight by composite score.
type WeightedMember struct {
	Prediction domain.Prediction
	Entry      models.Entry
}

// Result is the combined ensemble output.
type Result struct {
	Probability float64
	Confidence  float64
	Method      config.EnsembleMethod
	MemberCount int
}

// Manager combines ensemble members under the configured method.
type Manager struct {
	method config.EnsembleMethod
}

// NewManager returns a manager using method as its combination strategy.
func NewManager(method config.EnsembleMethod) *Manager {
	return &Manager{method: method}
}

// Combine produces a single probability/confidence pair from members.
// Stacking is not implemented as a distinct method in this core — spec
// §4.6 treats it as falling back to weighted_average when no stacking
// model is registered, so EnsembleVoting and EnsembleWeightedAverage are
// the only two live branches; an unrecognized method also falls back to
// weighted_average.
func (m *Manager) Combine(members []WeightedMember) (Result, error) {
	if len(members) == 0 {
		return Result{}, fmt.Errorf("ensemble: no members to combine")
	}

	switch m.method {
	case config.EnsembleVoting:
		return m.vote(members), nil
	default:
		return m.weightedAverage(members), nil
	}
}

func (m *Manager) weightedAverage(members []WeightedMember) Result {
	var weightedSum, totalWeight float64
	probs := make([]float64, len(members))
	for i, mem := range members {
		w := mem.Entry.CompositeScore()
		if w <= 0 {
			w = 0.01 // every model keeps a minimal voice
		}
		weightedSum += w * mem.Prediction.Probability
		totalWeight += w
		probs[i] = mem.Prediction.Probability
	}
	proba := weightedSum / totalWeight
	return Result{
		Probability: proba,
		Confidence:  m.confidence(members, probs),
		Method:      config.EnsembleWeightedAverage,
		MemberCount: len(members),
	}
}

// voteFor buckets a probability into a discrete vote (spec §4.6).
func voteFor(p float64) float64 {
	switch {
	case p >= 0.6:
		return 1
	case p >= 0.5:
		return 0.5
	case p >= 0.4:
		return -0.5
	default:
		return -1
	}
}

func (m *Manager) vote(members []WeightedMember) Result {
	var voteSum float64
	probs := make([]float64, len(members))
	for i, mem := range members {
		voteSum += voteFor(mem.Prediction.Probability)
		probs[i] = mem.Prediction.Probability
	}
	avgVote := voteSum / float64(len(members))
	proba := (avgVote + 1) / 2
	return Result{
		Probability: proba,
		Confidence:  m.confidence(members, probs),
		Method:      config.EnsembleVoting,
		MemberCount: len(members),
	}
}

// confidence is 1 - 2*stddev(p_i) clipped to [0,1] (spec §4.6): high
// agreement across models yields high confidence. A single-model ensemble
// caps confidence at 0.5 since there is no cross-model agreement to measure.
func (m *Manager) confidence(members []WeightedMember, probs []float64) float64 {
	if len(members) == 1 {
		return 0.5
	}
	confidence := 1 - 2*stddev(probs)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func stddev(probs []float64) float64 {
	var mean float64
	for _, p := range probs {
		mean += p
	}
	mean /= float64(len(probs))

	var variance float64
	for _, p := range probs {
		d := p - mean
		variance += d * d
	}
	variance /= float64(len(probs))
	return math.Sqrt(variance)
}
