package marketdata

import (
	"context"
	"time"

	"github.com/nse-trader/core/internal/domain"
)

// Source is one upstream capable of serving OHLCV history and quotes.
// The data fabric tries sources in priority order and fails over on any
// error (spec §4.1): [Broker, Exchange-API, Fallback-Historical].
type Source interface {
	Name() string
	FetchOHLCV(ctx context.Context, key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error)
	FetchQuote(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error)
}

// BrokerSource adapts a domain.BrokerClient to the Source interface. It
// is the highest-priority source: live broker data is always preferred
// when the session is authenticated.
type BrokerSource struct {
	client domain.BrokerClient
}

// NewBrokerSource wraps an authenticated broker client as a data source.
func NewBrokerSource(client domain.BrokerClient) *BrokerSource {
	return &BrokerSource{client: client}
}

func (s *BrokerSource) Name() string { return "broker" }

func (s *BrokerSource) FetchOHLCV(ctx context.Context, key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error) {
	if !s.client.IsConnected() {
		return nil, errDisconnected
	}
	return s.client.GetHistoricalCandles(key, interval, from, to)
}

func (s *BrokerSource) FetchQuote(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	if !s.client.IsConnected() {
		return nil, errDisconnected
	}
	return s.client.GetQuote(keys)
}

var errDisconnected = disconnectedError{}

type disconnectedError struct{}

func (disconnectedError) Error() string { return "broker source: not connected" }
