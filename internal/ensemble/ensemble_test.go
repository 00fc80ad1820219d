package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/models"
)

func member(proba, accuracy, sharpe, winRate float64) WeightedMember {
	return WeightedMember{
		Prediction: domain.Prediction{ModelID: "m", Probability: proba},
		Entry:      models.Entry{Accuracy: accuracy, SharpeRatio: sharpe, WinRate: winRate},
	}
}

func TestCombine_NoMembersErrors(t *testing.T) {
	m := NewManager(config.EnsembleWeightedAverage)
	_, err := m.Combine(nil)
	assert.Error(t, err)
}

func TestCombine_SingleMemberCapsConfidenceAtHalf(t *testing.T) {
	m := NewManager(config.EnsembleWeightedAverage)
	res, err := m.Combine([]WeightedMember{member(0.95, 0.6, 1.5, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, 0.95, res.Probability)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, 1, res.MemberCount)
}

func TestCombine_WeightedAverageFavorsHigherCompositeScore(t *testing.T) {
	m := NewManager(config.EnsembleWeightedAverage)
	strong := member(0.9, 0.8, 2.5, 0.7) // high composite score
	weak := member(0.1, 0.1, 0.0, 0.1)   // low composite score

	res, err := m.Combine([]WeightedMember{strong, weak})
	require.NoError(t, err)
	assert.Greater(t, res.Probability, 0.5, "higher-scored member should pull the average toward its prediction")
}

func TestCombine_AgreementRaisesConfidence(t *testing.T) {
	m := NewManager(config.EnsembleWeightedAverage)
	agreeing, err := m.Combine([]WeightedMember{member(0.8, 0.6, 1.5, 0.5), member(0.82, 0.6, 1.5, 0.5)})
	require.NoError(t, err)

	disagreeing, err := m.Combine([]WeightedMember{member(0.9, 0.6, 1.5, 0.5), member(0.2, 0.6, 1.5, 0.5)})
	require.NoError(t, err)

	assert.Greater(t, agreeing.Confidence, disagreeing.Confidence)
}

func TestCombine_UnrecognizedMethodFallsBackToWeightedAverage(t *testing.T) {
	m := NewManager(config.EnsembleMethod("stacking"))
	res, err := m.Combine([]WeightedMember{member(0.7, 0.5, 1, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, config.EnsembleWeightedAverage, res.Method)
}

func TestCombine_VoteBucketsAndAveragesVotes(t *testing.T) {
	m := NewManager(config.EnsembleVoting)
	res, err := m.Combine([]WeightedMember{
		member(0.9, 0.5, 1, 0.5), // buckets to vote +1
		member(0.8, 0.5, 1, 0.5), // buckets to vote +1
		member(0.1, 0.5, 1, 0.5), // buckets to vote -1
	})
	require.NoError(t, err)
	wantVote := (1.0 + 1.0 - 1.0) / 3.0
	assert.InDelta(t, (wantVote+1)/2, res.Probability, 1e-9)
	assert.Equal(t, config.EnsembleVoting, res.Method)
}
