// Package db persists the service's prediction log in SQLite.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID         int64     `json:"id"`
	Features   []float64 `json:"features"`
	Prediction int       `json:"prediction"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY,
        features TEXT,
        prediction INTEGER,
        class_name VARCHAR(20),
        confidence REAL,
        timestamp DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    `
	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// SavePrediction appends one record to the prediction log.
func SavePrediction(rec PredictionRecord) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return err
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = database.Exec(
		`INSERT INTO predictions (features, prediction, class_name, confidence, timestamp) VALUES (?, ?, ?, ?, ?)`,
		string(features), rec.Prediction, rec.ClassName, rec.Confidence, ts,
	)
	return err
}

// QueryPredictions returns the most recent records, newest first.
func QueryPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(
		`SELECT id, features, prediction, class_name, confidence, timestamp FROM predictions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0, limit)
	for rows.Next() {
		var rec PredictionRecord
		var features string
		if err := rows.Scan(&rec.ID, &features, &rec.Prediction, &rec.ClassName, &rec.Confidence, &rec.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Store adapts the package-level log to the interface the HTTP handlers take.
type Store struct{}

func (Store) SavePrediction(rec PredictionRecord) error {
	return SavePrediction(rec)
}

func (Store) RecentPredictions(limit int) ([]PredictionRecord, error) {
	return QueryPredictions(limit)
}
