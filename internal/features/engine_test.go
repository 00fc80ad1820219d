package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/domain"
)

func syntheticSeries(n int) domain.OHLCVSeries {
	bars := make([]domain.OHLCVBar, n)
	price := 100.0
	ts := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price += math.Sin(float64(i)/3) * 0.5
		bars[i] = domain.OHLCVBar{
			T: ts.Add(time.Duration(i) * 24 * time.Hour),
			Open: price, High: price + 1, Low: price - 1, Close: price + 0.2,
			Volume: 1000 + float64(i%10)*10,
		}
	}
	return domain.OHLCVSeries{Ticker: "TEST.NS", Interval: domain.Interval1Day, Bars: bars}
}

func TestMakeFeatures_EmptySeriesErrors(t *testing.T) {
	_, err := MakeFeatures(domain.OHLCVSeries{Ticker: "TEST.NS"})
	assert.Error(t, err)
}

func TestMakeFeatures_ProducesOneRowPerBar(t *testing.T) {
	series := syntheticSeries(80)
	frame, err := MakeFeatures(series)
	require.NoError(t, err)
	assert.Len(t, frame.Rows, 80)
	assert.Len(t, frame.Bars, 80)
}

func TestCleanFrame_DropsWarmupAndInvalidRows(t *testing.T) {
	series := syntheticSeries(80)
	frame, err := MakeFeatures(series)
	require.NoError(t, err)

	clean := CleanFrame(frame)
	assert.NotEmpty(t, clean.Rows)
	assert.LessOrEqual(t, len(clean.Rows), 30) // at most 80 - 50 warmup rows

	for _, row := range clean.Rows {
		for k, v := range row {
			assert.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "feature %s is NaN/Inf", k)
		}
	}
}

func TestCleanFrame_ShortSeriesReturnsEmptyFrame(t *testing.T) {
	series := syntheticSeries(10)
	frame, err := MakeFeatures(series)
	require.NoError(t, err)

	clean := CleanFrame(frame)
	assert.Empty(t, clean.Rows)
	assert.Equal(t, frame.Ticker, clean.Ticker)
}

func TestAddForwardReturnLabel_ComputesHorizonReturn(t *testing.T) {
	series := syntheticSeries(80)
	frame, err := MakeFeatures(series)
	require.NoError(t, err)

	AddForwardReturnLabel(frame, 5)

	entry := frame.Bars[0].Close
	exit := frame.Bars[5].Close
	want := (exit - entry) / entry
	assert.InDelta(t, want, frame.Rows[0]["forward_return"], 1e-9)

	// The last `horizon` rows have no future bar to label.
	for i := len(frame.Rows) - 5; i < len(frame.Rows); i++ {
		_, ok := frame.Rows[i]["forward_return"]
		assert.False(t, ok)
	}
}
