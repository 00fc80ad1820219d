package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nse-trader/core/internal/persistence"
)

// Entry is one model's registry record: identity, where its parameters
// live on disk, and its latest rolling performance — the inputs the
// ensemble manager needs for composite-score weighting (spec §4.6).
type Entry struct {
	ModelID     string    `json:"model_id"`
	Ticker      string    `json:"ticker"`
	Timeframe   string    `json:"timeframe"`
	Family      string    `json:"family"` // "baseline_logistic", ...
	Path        string    `json:"path"`
	Accuracy    float64   `json:"accuracy"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	WinRate     float64   `json:"win_rate"`
	SampleSize  int       `json:"sample_size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// catalog is the on-disk shape of the whole registry.
type catalog struct {
	Entries map[string]Entry `json:"entries"`
}

// Registry is the JSON-backed model catalog (grounded on the teacher's
// atomic-blob persistence convention — see internal/persistence).
type Registry struct {
	store *persistence.JSONStore
}

// NewRegistry returns a registry persisted under dataDir/model_registry.json.
func NewRegistry(dataDir string) *Registry {
	return &Registry{store: persistence.NewJSONStore(dataDir, "model_registry")}
}

// Register adds a newly trained model and returns its generated ID.
func (r *Registry) Register(ticker, timeframe, family, path string, accuracy, sharpeRatio, winRate float64, sampleSize int) (string, error) {
	id := uuid.NewString()
	var c catalog
	err := r.store.Update(&c, func() error {
		if c.Entries == nil {
			c.Entries = make(map[string]Entry)
		}
		now := time.Now().UTC()
		c.Entries[id] = Entry{
			ModelID: id, Ticker: ticker, Timeframe: timeframe, Family: family, Path: path,
			Accuracy: accuracy, SharpeRatio: sharpeRatio, WinRate: winRate, SampleSize: sampleSize,
			CreatedAt: now, UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("registry: register: %w", err)
	}
	return id, nil
}

// UpdatePerformance overwrites an entry's rolling metrics after a
// walk-forward re-evaluation or live accuracy refresh.
func (r *Registry) UpdatePerformance(modelID string, accuracy, sharpeRatio, winRate float64, sampleSize int) error {
	var c catalog
	return r.store.Update(&c, func() error {
		entry, ok := c.Entries[modelID]
		if !ok {
			return fmt.Errorf("registry: unknown model %s", modelID)
		}
		entry.Accuracy, entry.SharpeRatio, entry.WinRate, entry.SampleSize = accuracy, sharpeRatio, winRate, sampleSize
		entry.UpdatedAt = time.Now().UTC()
		c.Entries[modelID] = entry
		return nil
	})
}

// ForTicker returns every registered model for ticker at timeframe.
func (r *Registry) ForTicker(ticker, timeframe string) ([]Entry, error) {
	var c catalog
	if err := r.store.Load(&c); err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}
	var out []Entry
	for _, e := range c.Entries {
		if e.Ticker == ticker && e.Timeframe == timeframe {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns a single entry by ID.
func (r *Registry) Get(modelID string) (Entry, bool, error) {
	var c catalog
	if err := r.store.Load(&c); err != nil {
		return Entry{}, false, fmt.Errorf("registry: load: %w", err)
	}
	e, ok := c.Entries[modelID]
	return e, ok, nil
}

// CompositeScore computes the ensemble weighting input named in spec §4.6:
// 0.4*accuracy + 0.4*normalized_sharpe + 0.2*win_rate, where
// normalized_sharpe maps a Sharpe ratio into [0, 1] via a fixed ceiling
// of 3.0 (a Sharpe at or above 3 scores a full 1.0).
func (e Entry) CompositeScore() float64 {
	const sharpeCeiling = 3.0
	normalizedSharpe := e.SharpeRatio / sharpeCeiling
	if normalizedSharpe < 0 {
		normalizedSharpe = 0
	}
	if normalizedSharpe > 1 {
		normalizedSharpe = 1
	}
	return 0.4*e.Accuracy + 0.4*normalizedSharpe + 0.2*e.WinRate
}
