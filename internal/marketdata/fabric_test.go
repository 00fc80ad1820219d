package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/domain"
)

type fakeSource struct {
	name       string
	ohlcv      []domain.OHLCVBar
	ohlcvErr   error
	quotes     map[domain.InstrumentKey]domain.Quote
	quotesErr  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchOHLCV(ctx context.Context, key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error) {
	if f.ohlcvErr != nil {
		return nil, f.ohlcvErr
	}
	return f.ohlcv, nil
}

func (f *fakeSource) FetchQuote(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	if f.quotesErr != nil {
		return nil, f.quotesErr
	}
	return f.quotes, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ticker domain.Ticker) (domain.InstrumentKey, error) {
	if ticker == "UNKNOWN.NS" {
		return "", errors.New("no mapping")
	}
	return domain.InstrumentKey("KEY_" + string(ticker)), nil
}

func (fakeResolver) ReverseResolve(key domain.InstrumentKey) (domain.Ticker, error) {
	if key == "KEY_TCS.NS" {
		return "TCS.NS", nil
	}
	return "", errors.New("no mapping")
}

func validBars() []domain.OHLCVBar {
	return []domain.OHLCVBar{
		{T: time.Now().Add(-2 * time.Hour), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{T: time.Now().Add(-time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 1200},
	}
}

func TestDataFabric_GetOHLCV_UsesFirstSucceedingSource(t *testing.T) {
	failing := &fakeSource{name: "broker", ohlcvErr: errors.New("down")}
	working := &fakeSource{name: "exchange_api", ohlcv: validBars()}
	f := NewDataFabric([]Source{failing, working}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	series, err := f.GetOHLCV(context.Background(), "TCS.NS", domain.Interval1Day, time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "exchange_api", series.Source)
}

func TestDataFabric_GetOHLCV_FallsBackToStaleCacheWhenAllSourcesFail(t *testing.T) {
	cache := NewDiskCache(t.TempDir())
	from, to := time.Now().Add(-24*time.Hour), time.Now()
	require.NoError(t, cache.Put("TCS.NS", domain.Interval1Day, from, to, domain.OHLCVSeries{
		Ticker: "TCS.NS", Interval: domain.Interval1Day, Bars: validBars(), Source: "exchange_api",
	}))
	// Force a stale entry directly, since a just-written one is still fresh.
	entry := cacheEntry{FetchedAt: time.Now().Add(-72 * time.Hour), Series: domain.OHLCVSeries{Ticker: "TCS.NS", Bars: validBars()}}
	require.NoError(t, cache.store("TCS.NS", domain.Interval1Day, from, to).Save(&entry))

	failing := &fakeSource{name: "broker", ohlcvErr: errors.New("down")}
	f := NewDataFabric([]Source{failing}, cache, fakeResolver{}, zerolog.Nop())

	series, err := f.GetOHLCV(context.Background(), "TCS.NS", domain.Interval1Day, from, to)
	require.NoError(t, err)
	assert.True(t, series.IsStale)
}

func TestDataFabric_GetOHLCV_NoSourceNoCacheErrors(t *testing.T) {
	failing := &fakeSource{name: "broker", ohlcvErr: errors.New("down")}
	f := NewDataFabric([]Source{failing}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	_, err := f.GetOHLCV(context.Background(), "TCS.NS", domain.Interval1Day, time.Now().Add(-24*time.Hour), time.Now())
	assert.Error(t, err)
}

func TestDataFabric_GetOHLCV_UnresolvableTickerFallsBackToStaleOrErrors(t *testing.T) {
	f := NewDataFabric(nil, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())
	_, err := f.GetOHLCV(context.Background(), "UNKNOWN.NS", domain.Interval1Day, time.Now().Add(-24*time.Hour), time.Now())
	assert.Error(t, err)
}

func TestDataFabric_GetQuote_FailsOverAcrossSources(t *testing.T) {
	failing := &fakeSource{name: "broker", quotesErr: errors.New("down")}
	working := &fakeSource{name: "exchange_api", quotes: map[domain.InstrumentKey]domain.Quote{
		"KEY_TCS.NS": {LastPrice: 101},
	}}
	f := NewDataFabric([]Source{failing, working}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	quotes, err := f.GetQuote(context.Background(), []domain.Ticker{"TCS.NS"})
	require.NoError(t, err)
	q, ok := quotes["TCS.NS"]
	require.True(t, ok)
	assert.Equal(t, 101.0, q.LastPrice)
}

func TestDataFabric_GetQuote_FallsBackToLastKnownQuoteMarkedStale(t *testing.T) {
	first := &fakeSource{name: "s1", quotes: map[domain.InstrumentKey]domain.Quote{"KEY_TCS.NS": {LastPrice: 100}}}
	f := NewDataFabric([]Source{first}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	_, err := f.GetQuote(context.Background(), []domain.Ticker{"TCS.NS"})
	require.NoError(t, err)

	failingNow := &fakeSource{name: "s1", quotesErr: errors.New("down")}
	f.sources = []Source{failingNow}
	quotes, err := f.GetQuote(context.Background(), []domain.Ticker{"TCS.NS"})
	require.NoError(t, err)
	q, ok := quotes["TCS.NS"]
	require.True(t, ok)
	assert.True(t, q.IsStale)
}

func TestDataFabric_GetQuote_NoQuotesAnywhereErrors(t *testing.T) {
	failing := &fakeSource{name: "s1", quotesErr: errors.New("down")}
	f := NewDataFabric([]Source{failing}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	_, err := f.GetQuote(context.Background(), []domain.Ticker{"TCS.NS"})
	assert.Error(t, err)
}

func TestDataFabric_IngestQuote_WarmsLastKnownQuoteCache(t *testing.T) {
	failing := &fakeSource{name: "s1", quotesErr: errors.New("down")}
	f := NewDataFabric([]Source{failing}, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())

	f.IngestQuote(domain.StreamTick{InstrumentKey: "KEY_TCS.NS", LTP: 123.4, Ts: time.Now()})

	quotes, err := f.GetQuote(context.Background(), []domain.Ticker{"TCS.NS"})
	require.NoError(t, err)
	q, ok := quotes["TCS.NS"]
	require.True(t, ok)
	assert.Equal(t, 123.4, q.LastPrice)
	assert.True(t, q.IsStale)
}

func TestDataFabric_IngestQuote_UnresolvableKeyIsIgnored(t *testing.T) {
	f := NewDataFabric(nil, NewDiskCache(t.TempDir()), fakeResolver{}, zerolog.Nop())
	f.IngestQuote(domain.StreamTick{InstrumentKey: "NO_MAPPING", LTP: 1})
	assert.Empty(t, f.lastQuotes)
}
