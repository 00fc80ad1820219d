// Package features computes the technical-indicator feature set that
// feeds the predictor models, via github.com/markcheno/go-talib for the
// indicator math and gonum.org/v1/gonum/stat for the rolling VWAP, which
// talib doesn't cover; opening range and volume ratios are plain
// arithmetic.
package features

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/nse-trader/core/internal/domain"
)

// Frame is a row-oriented feature table: one domain.FeatureRow per
// bar, aligned to the same index as the source series.
type Frame struct {
	Ticker domain.Ticker
	Rows   []domain.FeatureRow
	Bars   []domain.OHLCVBar
}

// MakeFeatures computes the full indicator set over series. Indicators
// needing N bars of warmup leave their first N rows at zero rather than
// NaN — CleanFrame trims the warmup region before it reaches a model.
func MakeFeatures(series domain.OHLCVSeries) (Frame, error) {
	n := len(series.Bars)
	if n == 0 {
		return Frame{}, fmt.Errorf("features: empty series for %s", series.Ticker)
	}

	open, high, low, close, volume := splitColumns(series.Bars)

	sma20 := talib.Sma(close, 20)
	sma50 := talib.Sma(close, 50)
	ema12 := talib.Ema(close, 12)
	ema26 := talib.Ema(close, 26)
	rsi14 := talib.Rsi(close, 14)
	macd, macdSignal, macdHist := talib.Macd(close, 12, 26, 9)
	bbUpper, bbMiddle, bbLower := talib.Bbands(close, 20, 2, 2, talib.SMA)
	atr14 := talib.Atr(high, low, close, 14)
	adx14 := talib.Adx(high, low, close, 14)
	obv := talib.Obv(close, volume)

	returns := make([]float64, n)
	for i := 1; i < n; i++ {
		if close[i-1] != 0 {
			returns[i] = (close[i] - close[i-1]) / close[i-1]
		}
	}

	volSMA20 := talib.Sma(volume, 20)
	vwap := rollingVWAP(series.Bars, 20)
	openingRangeHigh, openingRangeLow := openingRange(series.Bars)

	rows := make([]domain.FeatureRow, n)
	for i := 0; i < n; i++ {
		row := domain.FeatureRow{
			"open": open[i], "high": high[i], "low": low[i], "close": close[i], "volume": volume[i],
			"return_1d":  returns[i],
			"sma_20":     sma20[i],
			"sma_50":     sma50[i],
			"ema_12":     ema12[i],
			"ema_26":     ema26[i],
			"rsi_14":     rsi14[i],
			"macd":       macd[i],
			"macd_signal": macdSignal[i],
			"macd_hist":  macdHist[i],
			"bb_upper":   bbUpper[i],
			"bb_middle":  bbMiddle[i],
			"bb_lower":   bbLower[i],
			"atr_14":     atr14[i],
			"adx_14":     adx14[i],
			"obv":        obv[i],
			"volume_sma_20": volSMA20[i],
			"vwap":          vwap[i],
		}
		if volSMA20[i] > 0 {
			row["volume_ratio"] = volume[i] / volSMA20[i]
		}
		if atr14[i] > 0 && close[i] > 0 {
			row["atr_pct"] = atr14[i] / close[i]
		}
		if close[i] != 0 {
			row["bb_width"] = (bbUpper[i] - bbLower[i]) / close[i]
		}
		row["opening_range_high"] = openingRangeHigh
		row["opening_range_low"] = openingRangeLow
		rows[i] = row
	}

	return Frame{Ticker: series.Ticker, Rows: rows, Bars: series.Bars}, nil
}

// AddForwardReturnLabel annotates each row (except the last horizon bars)
// with the forward return over horizon bars, used as the training label
// for the directional classifiers.
func AddForwardReturnLabel(f Frame, horizon int) {
	n := len(f.Rows)
	for i := 0; i+horizon < n; i++ {
		entry := f.Bars[i].Close
		exit := f.Bars[i+horizon].Close
		if entry != 0 {
			f.Rows[i]["forward_return"] = (exit - entry) / entry
		}
	}
}

// CleanFrame drops the warmup rows (the longest indicator lookback, 50
// bars for sma_50) and any row containing a NaN/Inf value, so models
// never see an indicator still in its warmup period.
func CleanFrame(f Frame) Frame {
	const warmup = 50
	if len(f.Rows) <= warmup {
		return Frame{Ticker: f.Ticker}
	}
	rows := make([]domain.FeatureRow, 0, len(f.Rows)-warmup)
	bars := make([]domain.OHLCVBar, 0, len(f.Rows)-warmup)
	for i := warmup; i < len(f.Rows); i++ {
		if hasInvalid(f.Rows[i]) {
			continue
		}
		rows = append(rows, f.Rows[i])
		bars = append(bars, f.Bars[i])
	}
	return Frame{Ticker: f.Ticker, Rows: rows, Bars: bars}
}

func hasInvalid(row domain.FeatureRow) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func splitColumns(bars []domain.OHLCVBar) (open, high, low, close, volume []float64) {
	n := len(bars)
	open, high, low, close, volume = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		open[i], high[i], low[i], close[i], volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	return
}

func rollingVWAP(bars []domain.OHLCVBar, window int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	for i := range bars {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var pv, vol []float64
		for j := start; j <= i; j++ {
			typical := (bars[j].High + bars[j].Low + bars[j].Close) / 3
			pv = append(pv, typical*bars[j].Volume)
			vol = append(vol, bars[j].Volume)
		}
		totalVol := stat.Mean(vol, nil) * float64(len(vol))
		if totalVol > 0 {
			out[i] = (stat.Mean(pv, nil) * float64(len(pv))) / totalVol
		}
	}
	return out
}

func openingRange(bars []domain.OHLCVBar) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	first := bars[0]
	return first.High, first.Low
}
