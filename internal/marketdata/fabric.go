// Package marketdata implements the data fabric: a prioritized,
// failover-aware facade over broker, exchange, and offline-historical
// sources, backed by a TTL disk cache with stale-cache fallback
// (spec §4.1).
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nse-trader/core/internal/core/errs"
	"github.com/nse-trader/core/internal/domain"
)

// Resolver resolves tickers to broker-native instrument keys and back.
type Resolver interface {
	Resolve(ticker domain.Ticker) (domain.InstrumentKey, error)
	ReverseResolve(key domain.InstrumentKey) (domain.Ticker, error)
}

// DataFabric tries sources in priority order — [Broker, Exchange-API,
// Fallback-Historical] by construction convention — and falls back to a
// stale cache entry only once every source has failed.
type DataFabric struct {
	sources  []Source
	cache    *DiskCache
	resolver Resolver
	log      zerolog.Logger

	quoteMu    sync.Mutex
	lastQuotes map[domain.Ticker]domain.Quote
}

// NewDataFabric returns a fabric trying sources in the given priority
// order.
func NewDataFabric(sources []Source, cache *DiskCache, resolver Resolver, log zerolog.Logger) *DataFabric {
	return &DataFabric{
		sources:    sources,
		cache:      cache,
		resolver:   resolver,
		log:        log.With().Str("component", "data_fabric").Logger(),
		lastQuotes: make(map[domain.Ticker]domain.Quote),
	}
}

// GetOHLCV returns validated OHLCV history for ticker, serving from cache
// when fresh, failing over across sources otherwise, and falling back to
// a stale cache entry if every source fails.
func (f *DataFabric) GetOHLCV(ctx context.Context, ticker domain.Ticker, interval domain.Interval, from, to time.Time) (domain.OHLCVSeries, error) {
	if cap := interval.MaxHistory(); to.Sub(from) > cap {
		from = to.Add(-cap)
	}

	if series, fresh, found := f.cache.Get(ticker, interval, from, to); found && fresh {
		return series, nil
	}

	key, err := f.resolver.Resolve(ticker)
	if err != nil {
		return f.staleOrError(ticker, interval, from, to, err)
	}

	var lastErr error
	for _, src := range f.sources {
		bars, err := src.FetchOHLCV(ctx, key, interval, from, to)
		if err != nil {
			f.log.Warn().Err(err).Str("source", src.Name()).Str("ticker", string(ticker)).Msg("ohlcv source failed, trying next")
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			lastErr = fmt.Errorf("%s: empty series for %s", src.Name(), ticker)
			continue
		}
		series := domain.OHLCVSeries{Ticker: ticker, Interval: interval, Bars: bars, Source: src.Name()}
		warnings, verr := series.Validate()
		if verr != nil {
			f.log.Warn().Err(verr).Str("source", src.Name()).Msg("ohlcv series failed validation, trying next source")
			lastErr = verr
			continue
		}
		for _, w := range warnings {
			f.log.Warn().Str("ticker", string(ticker)).Msg(w)
		}
		if err := f.cache.Put(ticker, interval, from, to, series); err != nil {
			f.log.Warn().Err(err).Msg("failed to persist ohlcv cache entry")
		}
		return series, nil
	}

	return f.staleOrError(ticker, interval, from, to, lastErr)
}

func (f *DataFabric) staleOrError(ticker domain.Ticker, interval domain.Interval, from, to time.Time, cause error) (domain.OHLCVSeries, error) {
	if series, _, found := f.cache.Get(ticker, interval, from, to); found {
		series.IsStale = true
		f.log.Warn().Str("ticker", string(ticker)).Msg("all sources failed, serving stale cache")
		return series, nil
	}
	return domain.OHLCVSeries{}, errs.Wrap(errs.ErrDataUnavailable, fmt.Sprintf("no source or cache available for %s: %v", ticker, cause))
}

// GetQuote returns live quotes for tickers, failing over across sources
// and falling back to the last successfully fetched quote (marked stale)
// for any ticker no source could serve.
func (f *DataFabric) GetQuote(ctx context.Context, tickers []domain.Ticker) (map[domain.Ticker]domain.Quote, error) {
	keys := make([]domain.InstrumentKey, 0, len(tickers))
	keyToTicker := make(map[domain.InstrumentKey]domain.Ticker, len(tickers))
	for _, t := range tickers {
		key, err := f.resolver.Resolve(t)
		if err != nil {
			f.log.Warn().Err(err).Str("ticker", string(t)).Msg("cannot resolve ticker to instrument key")
			continue
		}
		keys = append(keys, key)
		keyToTicker[key] = t
	}

	result := make(map[domain.Ticker]domain.Quote, len(tickers))
	remaining := make(map[domain.InstrumentKey]bool, len(keys))
	for _, k := range keys {
		remaining[k] = true
	}

	for _, src := range f.sources {
		if len(remaining) == 0 {
			break
		}
		pending := make([]domain.InstrumentKey, 0, len(remaining))
		for k := range remaining {
			pending = append(pending, k)
		}
		quotes, err := src.FetchQuote(ctx, pending)
		if err != nil {
			f.log.Warn().Err(err).Str("source", src.Name()).Msg("quote source failed, trying next")
			continue
		}
		for k, q := range quotes {
			ticker := keyToTicker[k]
			q.Ticker = ticker
			q.Source = src.Name()
			result[ticker] = q
			delete(remaining, k)
		}
	}

	f.quoteMu.Lock()
	for k := range remaining {
		ticker := keyToTicker[k]
		if last, ok := f.lastQuotes[ticker]; ok {
			last.IsStale = true
			result[ticker] = last
		}
	}
	for t, q := range result {
		if !q.IsStale {
			f.lastQuotes[t] = q
		}
	}
	f.quoteMu.Unlock()

	if len(result) == 0 && len(tickers) > 0 {
		return nil, errs.Wrap(errs.ErrDataUnavailable, "no quotes available from any source")
	}
	return result, nil
}

// IngestQuote folds a live tick from the optional streaming feed into the
// fabric's last-known-quote cache, so GetQuote's stale-fallback path stays
// warm even between polled refreshes (spec §4.1's streaming enrichment).
func (f *DataFabric) IngestQuote(tick domain.StreamTick) {
	ticker, err := f.resolver.ReverseResolve(tick.InstrumentKey)
	if err != nil {
		f.log.Warn().Err(err).Str("instrument_key", string(tick.InstrumentKey)).Msg("cannot resolve stream tick to ticker")
		return
	}
	f.quoteMu.Lock()
	defer f.quoteMu.Unlock()
	f.lastQuotes[ticker] = domain.Quote{
		Ticker:    ticker,
		LastPrice: tick.LTP,
		Open:      tick.OHLC.Open,
		High:      tick.OHLC.High,
		Low:       tick.OHLC.Low,
		Close:     tick.OHLC.Close,
		Volume:    tick.Volume,
		Source:    "stream",
		Ts:        tick.Ts,
	}
}
