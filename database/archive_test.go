package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-session-service/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func testScan() *models.FinalizedScan {
	return &models.FinalizedScan{
		SessionID:   "scan-123",
		CreatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		FinalizedAt: time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC),
		Summary: models.ScanSummary{
			TotalFramesProcessed: 42,
			ImagesCaptured:       3,
			PropertyType:         "Studio apartment",
			Bedrooms:             1,
			HasKitchen:           true,
		},
		Amenities:       []string{"bedroom", "full kitchen"},
		ObjectsDetected: map[string]int{"bed": 12, "refrigerator": 5},
		RoomBreakdown:   map[string]int{"bedroom": 1, "kitchen": 1},
	}
}

func TestEnsureScanResultsTable(t *testing.T) {
	it(func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_results").
			WillReturnResult(sqlmock.NewResult(0, 0))

		archive := NewArchive(db)
		err := archive.EnsureScanResultsTable(context.Background())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveFinalizedScan(t *testing.T) {
	it(func() {
		scan := testScan()
		mock.ExpectExec("INSERT INTO scan_results").
			WithArgs(
				scan.SessionID,
				scan.Summary.PropertyType,
				scan.Summary.TotalFramesProcessed,
				scan.Summary.ImagesCaptured,
				sqlmock.AnyArg(),
				scan.FinalizedAt,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		archive := NewArchive(db)
		err := archive.SaveFinalizedScan(context.Background(), scan)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveFinalizedScanDBError(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO scan_results").
			WillReturnError(sql.ErrConnDone)

		archive := NewArchive(db)
		err := archive.SaveFinalizedScan(context.Background(), testScan())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save finalized scan")
	})
}
