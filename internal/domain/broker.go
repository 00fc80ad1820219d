package domain

import "time"

// BrokerClient is the opaque capability this core depends on (spec §6).
// OAuth handshake and session lifecycle are not part of this contract —
// callers obtain an already-authenticated client.
type BrokerClient interface {
	// Authenticate exchanges an auth code for access/refresh tokens.
	Authenticate(authCode string) (accessToken string, refreshToken string, err error)
	// RefreshToken exchanges a refresh token for a new access token.
	RefreshToken(refreshToken string) (accessToken string, newRefreshToken string, err error)

	GetProfile() (BrokerProfile, error)
	GetHoldings() ([]Position, error)
	GetPositions() ([]Position, error)
	GetOrders() ([]BrokerOrder, error)

	PlaceOrder(req PlaceOrderRequest) (orderID string, err error)
	ModifyOrder(orderID string, newStopPrice float64) error
	CancelOrder(orderID string) error

	GetQuote(instrumentKeys []InstrumentKey) (map[InstrumentKey]Quote, error)
	GetHistoricalCandles(key InstrumentKey, interval Interval, from, to time.Time) ([]OHLCVBar, error)

	IsConnected() bool
}

// BrokerProfile is the broker account profile.
type BrokerProfile struct {
	ClientID string
	Name     string
}

// BrokerOrder is a broker-side order record.
type BrokerOrder struct {
	OrderID  string
	Symbol   Ticker
	Side     Side
	Quantity int
	Status   string
	Price    float64
}

// PlaceOrderRequest is the broker order placement request (spec §6).
type PlaceOrderRequest struct {
	InstrumentKey InstrumentKey
	Side          Side
	Quantity      int
	OrderType     OrderType
	Price         float64 // limit price, ignored for MARKET
	TriggerPrice  float64 // stop-trigger price, 0 if none
	Product       Product
	Validity      string // "DAY"
	Tag           string
}

// StreamTick is a single message from the optional streaming feed.
type StreamTick struct {
	InstrumentKey InstrumentKey
	LTP           float64
	OHLC          OHLCVBar
	Volume        float64
	Ts            time.Time
}
