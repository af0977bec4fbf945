package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"scan-session-service/config"
	"scan-session-service/models"
)

// Archive persists finalized scan results so they survive session teardown
// and can feed the listing-creation pipeline.
type Archive struct {
	db *sql.DB
}

// NewArchive wraps an existing database handle.
func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// OpenArchive connects to MySQL using the configured credentials.
func OpenArchive(cfg *config.Config) (*Archive, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Archive{db: db}, nil
}

// EnsureScanResultsTable creates the scan_results table if it doesn't exist
func (a *Archive) EnsureScanResultsTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scan_results (
			session_id VARCHAR(64) NOT NULL PRIMARY KEY,
			property_type VARCHAR(64) NOT NULL,
			frames INT NOT NULL,
			images INT NOT NULL,
			result LONGTEXT NOT NULL,
			finalized_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create scan_results table: %w", err)
	}
	return nil
}

// SaveFinalizedScan upserts one finalized scan result.
func (a *Archive) SaveFinalizedScan(ctx context.Context, scan *models.FinalizedScan) error {
	payload, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("failed to marshal finalized scan: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO scan_results (session_id, property_type, frames, images, result, finalized_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			property_type = VALUES(property_type),
			frames = VALUES(frames),
			images = VALUES(images),
			result = VALUES(result),
			finalized_at = VALUES(finalized_at)`,
		scan.SessionID,
		scan.Summary.PropertyType,
		scan.Summary.TotalFramesProcessed,
		scan.Summary.ImagesCaptured,
		payload,
		scan.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save finalized scan: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
