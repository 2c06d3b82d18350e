package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"martsales/sales"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("database not initialized")

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID             int64         `json:"id"`
	RequestID      string        `json:"request_id"`
	Model          string        `json:"model"`
	Input          sales.Request `json:"input_data"`
	PredictedSales float64       `json:"predicted_sales"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Store keeps a history of served predictions in SQLite. It never feeds back into
// inference.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT NOT NULL DEFAULT '',
        model TEXT NOT NULL DEFAULT '',
        outlet_type TEXT NOT NULL,
        item_mrp REAL NOT NULL,
        input_json TEXT NOT NULL,
        predicted_sales REAL NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SavePrediction appends rec. A zero CreatedAt is set to now.
func (s *Store) SavePrediction(ctx context.Context, rec PredictionRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            request_id, model, outlet_type, item_mrp, input_json, predicted_sales, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Model, rec.Input.OutletType, rec.Input.ItemMRP,
		string(input), rec.PredictedSales, rec.CreatedAt)
	return err
}

// RecentPredictions returns up to limit records, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []PredictionRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, model, input_json, predicted_sales, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0, limit)
	for rows.Next() {
		var rec PredictionRecord
		var input string
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Model, &input, &rec.PredictedSales, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("decode stored input %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
