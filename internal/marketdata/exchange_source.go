package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nse-trader/core/internal/domain"
)

// ExchangeAPISource fetches OHLCV/quotes directly from the exchange's
// public market-data API, used when the broker session is unavailable
// or fails (spec §4.1, second priority). It uses a plain net/http client:
// the pack's only HTTP-client idiom is the teacher's hand-rolled,
// rate-limited Tradernet client (internal/clients/tradernet/sdk/client.go),
// which is purpose-built around broker authentication and not reusable
// for an unauthenticated public endpoint — see DESIGN.md.
type ExchangeAPISource struct {
	baseURL string
	http    *http.Client
}

// NewExchangeAPISource returns a source hitting baseURL for historical
// candles and quotes.
func NewExchangeAPISource(baseURL string) *ExchangeAPISource {
	return &ExchangeAPISource{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (s *ExchangeAPISource) Name() string { return "exchange_api" }

type exchangeCandle struct {
	T      int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

func (s *ExchangeAPISource) FetchOHLCV(ctx context.Context, key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error) {
	q := url.Values{}
	q.Set("symbol", string(key))
	q.Set("interval", string(interval))
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var candles []exchangeCandle
	if err := s.getJSON(ctx, "/v1/candles?"+q.Encode(), &candles); err != nil {
		return nil, err
	}
	bars := make([]domain.OHLCVBar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, domain.OHLCVBar{
			T: time.Unix(c.T, 0).UTC(), Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		})
	}
	return bars, nil
}

type exchangeQuote struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prev_close"`
	Volume    float64 `json:"volume"`
}

func (s *ExchangeAPISource) FetchQuote(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	symbols := make([]string, 0, len(keys))
	for _, k := range keys {
		symbols = append(symbols, string(k))
	}
	q := url.Values{}
	for _, sym := range symbols {
		q.Add("symbol", sym)
	}

	var quotes []exchangeQuote
	if err := s.getJSON(ctx, "/v1/quotes?"+q.Encode(), &quotes); err != nil {
		return nil, err
	}
	out := make(map[domain.InstrumentKey]domain.Quote, len(quotes))
	now := time.Now().UTC()
	for _, qt := range quotes {
		key := domain.InstrumentKey(qt.Symbol)
		out[key] = domain.Quote{
			LastPrice: qt.LastPrice,
			Open:      qt.Open,
			High:      qt.High,
			Low:       qt.Low,
			Close:     qt.PrevClose,
			Volume:    qt.Volume,
			Change:    qt.LastPrice - qt.PrevClose,
			ChangePct: changePct(qt.LastPrice, qt.PrevClose),
			Source:    s.Name(),
			Ts:        now,
		}
	}
	return out, nil
}

func changePct(last, prevClose float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return (last - prevClose) / prevClose * 100
}

func (s *ExchangeAPISource) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("exchange_api: build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("exchange_api: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("exchange_api: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
