// Package broker implements domain.BrokerClient against a generic
// REST broker API, grounded on the teacher's rate-limited request-queue
// pattern (internal/clients/tradernet/sdk/client.go): a single worker
// goroutine drains a buffered job channel so every authenticated call is
// serialized and spaced out, regardless of how many goroutines call in.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nse-trader/core/internal/core/errs"
	"github.com/nse-trader/core/internal/domain"
)

const rateLimitDelay = 300 * time.Millisecond

type job struct {
	req    *http.Request
	respCh chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// Client is a rate-limited, authenticated REST broker client.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	connected    bool

	jobs chan job
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewClient starts the worker goroutine and returns a ready client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "broker_client").Logger(),
		jobs:    make(chan job, 256),
		stop:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.worker()
	return c
}

// Close stops the worker goroutine, waiting for in-flight jobs to drain.
func (c *Client) Close() {
	close(c.stop)
	c.wg.Wait()
}

func (c *Client) worker() {
	defer c.wg.Done()
	ticker := time.NewTicker(rateLimitDelay)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case j := <-c.jobs:
			<-ticker.C
			resp, err := c.http.Do(j.req)
			if err != nil {
				j.respCh <- jobResult{err: fmt.Errorf("%w: %v", errs.ErrTransient, err)}
				continue
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				j.respCh <- jobResult{err: fmt.Errorf("%w: %v", errs.ErrTransient, readErr)}
				continue
			}
			if resp.StatusCode == http.StatusUnauthorized {
				j.respCh <- jobResult{body: body, err: errs.ErrAuthFailure}
				continue
			}
			if resp.StatusCode >= 500 {
				j.respCh <- jobResult{body: body, err: fmt.Errorf("%w: status %d", errs.ErrTransient, resp.StatusCode)}
				continue
			}
			if resp.StatusCode >= 400 {
				j.respCh <- jobResult{body: body, err: fmt.Errorf("broker request failed with status %d: %s", resp.StatusCode, body)}
				continue
			}
			j.respCh <- jobResult{body: body}
		}
	}
}

func (c *Client) enqueue(ctx context.Context, method, path string, payload interface{}, authorized bool) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("broker: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		c.mu.RLock()
		token := c.accessToken
		c.mu.RUnlock()
		if token == "" {
			return nil, errs.Wrap(errs.ErrAuthFailure, "no access token, authenticate first")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	respCh := make(chan jobResult, 1)
	select {
	case c.jobs <- job{req: req, respCh: respCh}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-respCh:
		return res.body, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Authenticate exchanges an auth code for tokens, per domain.BrokerClient.
func (c *Client) Authenticate(authCode string) (string, string, error) {
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	body, err := c.enqueue(context.Background(), http.MethodPost, "/auth/token", map[string]string{"code": authCode}, false)
	if err != nil {
		return "", "", err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", "", fmt.Errorf("broker: decode auth response: %w", err)
	}
	c.mu.Lock()
	c.accessToken, c.refreshToken, c.connected = out.AccessToken, out.RefreshToken, true
	c.mu.Unlock()
	return out.AccessToken, out.RefreshToken, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(refreshToken string) (string, string, error) {
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	body, err := c.enqueue(context.Background(), http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, false)
	if err != nil {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		return "", "", err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", "", fmt.Errorf("broker: decode refresh response: %w", err)
	}
	c.mu.Lock()
	c.accessToken, c.refreshToken, c.connected = out.AccessToken, out.RefreshToken, true
	c.mu.Unlock()
	return out.AccessToken, out.RefreshToken, nil
}

// IsConnected reports whether the client holds a live access token.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetProfile fetches the broker account profile.
func (c *Client) GetProfile() (domain.BrokerProfile, error) {
	var out domain.BrokerProfile
	body, err := c.enqueue(context.Background(), http.MethodGet, "/profile", nil, true)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("broker: decode profile: %w", err)
	}
	return out, nil
}

// GetHoldings fetches long-term holdings.
func (c *Client) GetHoldings() ([]domain.Position, error) {
	return c.getPositions("/holdings")
}

// GetPositions fetches open intraday/delivery positions.
func (c *Client) GetPositions() ([]domain.Position, error) {
	return c.getPositions("/positions")
}

func (c *Client) getPositions(path string) ([]domain.Position, error) {
	var out []domain.Position
	body, err := c.enqueue(context.Background(), http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("broker: decode %s: %w", path, err)
	}
	return out, nil
}

// GetOrders fetches the order book.
func (c *Client) GetOrders() ([]domain.BrokerOrder, error) {
	var out []domain.BrokerOrder
	body, err := c.enqueue(context.Background(), http.MethodGet, "/orders", nil, true)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("broker: decode orders: %w", err)
	}
	return out, nil
}

// PlaceOrder submits req and returns the broker order ID.
func (c *Client) PlaceOrder(req domain.PlaceOrderRequest) (string, error) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	body, err := c.enqueue(context.Background(), http.MethodPost, "/orders", req, true)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("broker: decode place order response: %w", err)
	}
	return out.OrderID, nil
}

// ModifyOrder updates an existing order's stop price.
func (c *Client) ModifyOrder(orderID string, newStopPrice float64) error {
	_, err := c.enqueue(context.Background(), http.MethodPut, "/orders/"+orderID, map[string]float64{"trigger_price": newStopPrice}, true)
	return err
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(orderID string) error {
	_, err := c.enqueue(context.Background(), http.MethodDelete, "/orders/"+orderID, nil, true)
	return err
}

// GetQuote fetches live quotes for the given instrument keys.
func (c *Client) GetQuote(keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	var out map[domain.InstrumentKey]domain.Quote
	body, err := c.enqueue(context.Background(), http.MethodPost, "/quotes", map[string]interface{}{"instruments": keys}, true)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("broker: decode quotes: %w", err)
	}
	return out, nil
}

// GetHistoricalCandles fetches OHLCV history for key over [from, to].
func (c *Client) GetHistoricalCandles(key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error) {
	var out []domain.OHLCVBar
	path := fmt.Sprintf("/candles?symbol=%s&interval=%s&from=%s&to=%s", key, interval, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	body, err := c.enqueue(context.Background(), http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("broker: decode candles: %w", err)
	}
	return out, nil
}
