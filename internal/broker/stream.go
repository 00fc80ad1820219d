package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nse-trader/core/internal/domain"
)

// StreamClient subscribes to the broker's live tick feed over a
// websocket connection, optional infrastructure the spec names but does
// not require the core to depend on for correctness (spec §4.9's
// streaming is an optimization over polling GetQuote).
type StreamClient struct {
	url string
	log zerolog.Logger
}

// NewStreamClient returns a client for the given websocket URL.
func NewStreamClient(url string, log zerolog.Logger) *StreamClient {
	return &StreamClient{url: url, log: log.With().Str("component", "broker_stream").Logger()}
}

type subscribeMsg struct {
	Action      string   `json:"action"`
	Instruments []string `json:"instruments"`
}

// Subscribe opens the stream and forwards ticks to out until ctx is
// cancelled or the connection drops. Reconnection is the caller's
// responsibility — Subscribe returns on any connection error so a
// supervising goroutine can retry with backoff.
func (s *StreamClient) Subscribe(ctx context.Context, keys []domain.InstrumentKey, out chan<- domain.StreamTick) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("broker stream: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	instruments := make([]string, len(keys))
	for i, k := range keys {
		instruments[i] = string(k)
	}
	if err := wsjson.Write(ctx, conn, subscribeMsg{Action: "subscribe", Instruments: instruments}); err != nil {
		return fmt.Errorf("broker stream: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return fmt.Errorf("broker stream: read: %w", err)
		}
		var tick struct {
			Symbol string  `json:"symbol"`
			LTP    float64 `json:"ltp"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume float64 `json:"volume"`
		}
		if err := json.Unmarshal(raw, &tick); err != nil {
			s.log.Warn().Err(err).Msg("dropping malformed stream tick")
			continue
		}
		st := domain.StreamTick{
			InstrumentKey: domain.InstrumentKey(tick.Symbol),
			LTP:           tick.LTP,
			OHLC:          domain.OHLCVBar{Open: tick.Open, High: tick.High, Low: tick.Low, Close: tick.Close, Volume: tick.Volume, T: time.Now().UTC()},
			Volume:        tick.Volume,
			Ts:            time.Now().UTC(),
		}
		select {
		case out <- st:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
