package marketdata

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/persistence"
)

// cacheEntry is the on-disk envelope for one cached series, carrying its
// own fetch time so TTL expiry is computed on read rather than relying on
// filesystem mtimes (grounded on the teacher's internal/clientdata/ttl.go
// TTL-table convention, generalized from named tables to a TTL-per-interval
// function since OHLCV TTLs vary by bar granularity, spec §3).
type cacheEntry struct {
	FetchedAt time.Time          `json:"fetched_at"`
	Series    domain.OHLCVSeries `json:"series"`
}

// DiskCache is a TTL-aware on-disk cache for OHLCV series, keyed by
// (ticker, interval, from, to). Each key maps to its own JSON file under
// dataDir/cache/ohlcv, written atomically via persistence.JSONStore.
type DiskCache struct {
	dataDir string
}

// NewDiskCache returns a cache rooted at dataDir/cache/ohlcv.
func NewDiskCache(dataDir string) *DiskCache {
	return &DiskCache{dataDir: filepath.Join(dataDir, "cache", "ohlcv")}
}

func cacheKey(ticker domain.Ticker, interval domain.Interval, from, to time.Time) string {
	raw := fmt.Sprintf("%s|%s|%s|%s", ticker, interval, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	sum := sha1.Sum([]byte(raw))
	slug := strings.ToLower(strings.ReplaceAll(string(ticker), ".", "_"))
	return fmt.Sprintf("%s_%s_%s", slug, interval, hex.EncodeToString(sum[:])[:12])
}

func (c *DiskCache) store(ticker domain.Ticker, interval domain.Interval, from, to time.Time) *persistence.JSONStore {
	return persistence.NewJSONStore(c.dataDir, cacheKey(ticker, interval, from, to))
}

// Get returns the cached series if present. fresh reports whether the
// entry is still within its interval's TTL; a stale entry is still
// returned so callers can use it as a last-resort fallback (spec §4.1).
func (c *DiskCache) Get(ticker domain.Ticker, interval domain.Interval, from, to time.Time) (series domain.OHLCVSeries, fresh bool, found bool) {
	var entry cacheEntry
	store := c.store(ticker, interval, from, to)
	if err := store.Load(&entry); err != nil {
		return domain.OHLCVSeries{}, false, false
	}
	if entry.FetchedAt.IsZero() {
		return domain.OHLCVSeries{}, false, false
	}
	age := time.Since(entry.FetchedAt)
	return entry.Series, age <= interval.CacheTTL(), true
}

// Put writes series to the cache, stamping the current fetch time.
func (c *DiskCache) Put(ticker domain.Ticker, interval domain.Interval, from, to time.Time, series domain.OHLCVSeries) error {
	entry := cacheEntry{FetchedAt: time.Now().UTC(), Series: series}
	return c.store(ticker, interval, from, to).Save(&entry)
}
