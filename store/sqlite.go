package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"compliance-scanner/compliance"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	host       TEXT NOT NULL,
	score      INTEGER NOT NULL,
	grade      TEXT NOT NULL,
	status     TEXT NOT NULL,
	findings   TEXT NOT NULL,
	breakdown  TEXT NOT NULL,
	narrative  TEXT NOT NULL DEFAULT '',
	scanned_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url, scanned_at);
`

// SQLiteStore is the default Store backed by a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, result *compliance.ScanResult) error {
	findings, err := json.Marshal(result.Findings)
	if err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		return fmt.Errorf("encoding breakdown: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (url, host, score, grade, status, findings, breakdown, narrative, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Target.URL, result.Target.Host, result.Score, result.Grade, result.Status,
		string(findings), string(breakdown), result.Narrative, result.ScannedAt)
	if err != nil {
		return fmt.Errorf("saving scan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, url string, limit int) ([]*compliance.ScanResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, host, score, grade, status, findings, breakdown, narrative, scanned_at
		 FROM scans WHERE url = ? ORDER BY scanned_at DESC LIMIT ?`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*compliance.ScanResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, host, score, grade, status, findings, breakdown, narrative, scanned_at
		 FROM scans ORDER BY scanned_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent scans: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRows(rows *sql.Rows) ([]*compliance.ScanResult, error) {
	var results []*compliance.ScanResult
	for rows.Next() {
		var r compliance.ScanResult
		var findings, breakdown string
		var scannedAt time.Time
		if err := rows.Scan(&r.Target.URL, &r.Target.Host, &r.Score, &r.Grade, &r.Status,
			&findings, &breakdown, &r.Narrative, &scannedAt); err != nil {
			return nil, fmt.Errorf("reading scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(findings), &r.Findings); err != nil {
			return nil, fmt.Errorf("decoding findings: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &r.Breakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown: %w", err)
		}
		r.ScannedAt = scannedAt
		results = append(results, &r)
	}
	return results, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
