package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nse-trader/core/internal/domain"
)

// InstrumentMaster resolves tickers to broker-native instrument keys from
// a CSV master file (ticker,instrument_key,exchange), with a small
// hard-coded fallback map for the index tickers the core always needs
// (^NSEI, ^BSESN, ^NSEBANK) in case the master file hasn't been refreshed yet.
type InstrumentMaster struct {
	mu       sync.RWMutex
	forward  map[domain.Ticker]domain.InstrumentKey
	backward map[domain.InstrumentKey]domain.Ticker
}

var fallbackInstruments = map[domain.Ticker]domain.InstrumentKey{
	"^NSEI":   "NSE_INDEX|Nifty 50",
	"^BSESN":  "BSE_INDEX|SENSEX",
	"^NSEBANK": "NSE_INDEX|Nifty Bank",
}

// NewInstrumentMaster returns a master seeded with the hard-coded index
// fallbacks; call LoadCSV to populate it from a broker-supplied master.
func NewInstrumentMaster() *InstrumentMaster {
	m := &InstrumentMaster{
		forward:  make(map[domain.Ticker]domain.InstrumentKey),
		backward: make(map[domain.InstrumentKey]domain.Ticker),
	}
	for t, k := range fallbackInstruments {
		m.forward[t] = k
		m.backward[k] = t
	}
	return m
}

// LoadCSV adds the mappings parsed from path, overwriting any existing
// entry for the same ticker or key; mappings the file omits, including
// the hard-coded fallbacks, are kept.
func (m *InstrumentMaster) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("instrument_master: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("instrument_master: parse %s: %w", path, err)
	}
	if len(rows) > 0 && strings.EqualFold(rows[0][0], "ticker") {
		rows = rows[1:]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		ticker := domain.Ticker(strings.TrimSpace(row[0]))
		key := domain.InstrumentKey(strings.TrimSpace(row[1]))
		m.forward[ticker] = key
		m.backward[key] = ticker
	}
	return nil
}

// Resolve returns the instrument key for ticker.
func (m *InstrumentMaster) Resolve(ticker domain.Ticker) (domain.InstrumentKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.forward[ticker]
	if !ok {
		return "", fmt.Errorf("instrument_master: no instrument key for ticker %s", ticker)
	}
	return key, nil
}

// ReverseResolve returns the ticker for a broker-native instrument key.
func (m *InstrumentMaster) ReverseResolve(key domain.InstrumentKey) (domain.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ticker, ok := m.backward[key]
	if !ok {
		return "", fmt.Errorf("instrument_master: no ticker for instrument key %s", key)
	}
	return ticker, nil
}
