package persistence

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nse-trader/core/internal/domain"
)

// Journal is the trade journal, backed by the pure-Go modernc.org/sqlite
// driver (grounded on the teacher's internal/database/db.go, which uses
// the same driver over mattn/go-sqlite3 for exactly this reason: no cgo
// toolchain dependency in production images).
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if absent) the trade journal database at
// dataDir/journal.db and applies the teacher's pragma tuning: WAL mode
// for concurrent readers during a writer's transaction, and a busy
// timeout so a momentary lock contention doesn't surface as an error.
func OpenJournal(dataDir string) (*Journal, error) {
	path := filepath.Join(dataDir, "journal.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("persistence: apply pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS trades (
	order_id       TEXT PRIMARY KEY,
	symbol         TEXT NOT NULL,
	side           TEXT NOT NULL,
	quantity       INTEGER NOT NULL,
	price          REAL NOT NULL,
	product        TEXT NOT NULL,
	paper_trade    INTEGER NOT NULL,
	strategy       TEXT,
	executed_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS resolved_predictions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	model_id        TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	probability     REAL NOT NULL,
	entry_price     REAL NOT NULL,
	exit_price      REAL NOT NULL,
	realized_return REAL NOT NULL,
	correct         INTEGER,
	resolved_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolved_predictions_model ON resolved_predictions(model_id, resolved_at);
`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("persistence: migrate journal: %w", err)
	}
	return nil
}

// RecordExecution appends a fill to the trade journal.
func (j *Journal) RecordExecution(res domain.ExecutionResult, product domain.Product, strategy string, ts time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO trades (order_id, symbol, side, quantity, price, product, paper_trade, strategy, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OrderID, string(res.Symbol), string(res.Side), res.Quantity, res.Price,
		string(product), boolToInt(res.PaperTrade), strategy, ts.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persistence: record execution: %w", err)
	}
	return nil
}

// RecordResolvedPrediction appends a scored prediction outcome, feeding
// the model registry's rolling accuracy metrics.
func (j *Journal) RecordResolvedPrediction(rp domain.ResolvedPrediction) error {
	var correct interface{}
	if rp.Correct != nil {
		correct = boolToInt(*rp.Correct)
	}
	_, err := j.db.Exec(
		`INSERT INTO resolved_predictions (model_id, symbol, probability, entry_price, exit_price, realized_return, correct, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rp.ModelID, string(rp.Ticker), rp.Probability, rp.EntryPrice, rp.ExitPrice, rp.RealizedReturn,
		correct, rp.ResolvedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persistence: record resolved prediction: %w", err)
	}
	return nil
}

// RollingAccuracy returns the fraction of BUY/SELL predictions (HOLD is
// never recorded here, per spec §9) resolved correctly for modelID within
// the trailing window.
func (j *Journal) RollingAccuracy(modelID string, since time.Time) (accuracy float64, sampleSize int, err error) {
	row := j.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM resolved_predictions
		 WHERE model_id = ? AND resolved_at >= ? AND correct IS NOT NULL`,
		modelID, since.UTC().Format(time.RFC3339),
	)
	var total, wins int
	if err := row.Scan(&total, &wins); err != nil {
		return 0, 0, fmt.Errorf("persistence: rolling accuracy: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(wins) / float64(total), total, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error { return j.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
