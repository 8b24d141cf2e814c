// Package store persists scan results for history queries. The scanner
// treats storage as advisory: a save failure is logged and the scan
// still succeeds, because caching and scoring must work without a
// database.
package store

import (
	"context"

	"compliance-scanner/compliance"
)

// Store saves and retrieves historical scan results.
type Store interface {
	Save(ctx context.Context, result *compliance.ScanResult) error
	History(ctx context.Context, url string, limit int) ([]*compliance.ScanResult, error)
	Recent(ctx context.Context, limit int) ([]*compliance.ScanResult, error)
	Close() error
}
