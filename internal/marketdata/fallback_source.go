package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nse-trader/core/internal/domain"
)

// FallbackHistoricalSource serves OHLCV from CSV snapshots on disk — the
// last-resort source in the failover chain (spec §4.1) used when both
// the broker and the exchange API are unreachable. It never serves
// quotes; FetchQuote always errors so the fabric moves straight to its
// stale-cache fallback for live prices.
type FallbackHistoricalSource struct {
	dir string
}

// NewFallbackHistoricalSource returns a source reading CSVs from dir,
// named <key-slug>_<interval>.csv, where the slug is the instrument key
// lower-cased with '|' and '.' replaced by '_', with columns
// timestamp,open,high,low,close,volume.
func NewFallbackHistoricalSource(dir string) *FallbackHistoricalSource {
	return &FallbackHistoricalSource{dir: dir}
}

func (s *FallbackHistoricalSource) Name() string { return "fallback_historical" }

func (s *FallbackHistoricalSource) FetchOHLCV(ctx context.Context, key domain.InstrumentKey, interval domain.Interval, from, to time.Time) ([]domain.OHLCVBar, error) {
	slug := strings.ToLower(strings.NewReplacer("|", "_", ".", "_").Replace(string(key)))
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", slug, interval))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fallback_historical: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("fallback_historical: parse %s: %w", path, err)
	}
	if len(rows) > 0 && rows[0][0] == "timestamp" {
		rows = rows[1:]
	}

	bars := make([]domain.OHLCVBar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		bar := domain.OHLCVBar{
			T:      ts,
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (s *FallbackHistoricalSource) FetchQuote(ctx context.Context, keys []domain.InstrumentKey) (map[domain.InstrumentKey]domain.Quote, error) {
	return nil, fmt.Errorf("fallback_historical: quotes not available")
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
