// Package cache keeps the latest aggregation result and a history of the
// cheapest offer per run in SQLite.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"offer-hunter/pkg/models"
)

type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// HistoryEntry is the cheapest offer of one aggregation run.
type HistoryEntry struct {
	RunID string       `json:"runId"`
	Offer models.Offer `json:"offer"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS results (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		stored_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cheapest_history (
		run_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		product_url TEXT NOT NULL,
		source TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cheapest_history_fetched_at ON cheapest_history (fetched_at)`,
}

func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive and avoids
	// SQLITE_BUSY between the refresher and request handlers.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// TTL is how long a stored result counts as fresh. Zero disables reads.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) Get(key string) (*models.AggregatedResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	var data string
	var storedAt int64

	err := c.db.QueryRow(
		`SELECT data, stored_at FROM results WHERE key = ?`, key,
	).Scan(&data, &storedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Cache: failed to read %s: %v", key, err)
		}
		return nil, false
	}

	if c.now().Sub(time.UnixMilli(storedAt)) > c.ttl {
		return nil, false
	}

	var result models.AggregatedResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		log.Printf("Cache: failed to unmarshal %s: %v", key, err)
		return nil, false
	}
	return &result, true
}

func (c *Cache) Set(key string, result models.AggregatedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	_, err = c.db.Exec(
		`INSERT INTO results (key, data, stored_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key)
		 DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at`,
		key, string(data), c.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (c *Cache) RecordCheapest(runID string, offer models.Offer) error {
	_, err := c.db.Exec(
		`INSERT INTO cheapest_history (run_id, name, price, product_url, source, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, offer.Name, offer.Price, offer.ProductURL, offer.Source, offer.FetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record cheapest for run %s: %w", runID, err)
	}
	return nil
}

// History returns up to limit entries, newest first.
func (c *Cache) History(limit int) ([]HistoryEntry, error) {
	rows, err := c.db.Query(
		`SELECT run_id, name, price, product_url, source, fetched_at
		 FROM cheapest_history
		 ORDER BY fetched_at DESC, rowid DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var fetchedAt int64
		if err := rows.Scan(&e.RunID, &e.Offer.Name, &e.Offer.Price, &e.Offer.ProductURL, &e.Offer.Source, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Offer.FetchedAt = time.UnixMilli(fetchedAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Cache) Close() error {
	return c.db.Close()
}
