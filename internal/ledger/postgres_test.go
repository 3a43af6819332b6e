package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/pkg/models"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestPostgresDelivered_IsDelivered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresDeliveredRepository(db)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM delivered_events WHERE event_id = \$1\)`).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("evt-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.IsDelivered(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsDelivered(context.Background(), "evt-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresDelivered_MarkDeliveredUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresDeliveredRepository(db)
	sentAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO delivered_events .+ ON CONFLICT \(event_id\) DO UPDATE`).
		WithArgs("evt-1", "harsh_brake", sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkDelivered(context.Background(), models.DeliveryRecord{EventID: "evt-1", Type: "harsh_brake", SentAt: sentAt})
	require.NoError(t, err)
}

func TestPostgresDelivered_PurgeReturnsRowCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresDeliveredRepository(db)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM delivered_events WHERE sent_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeDeliveredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgresDelivered_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresDeliveredRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("evt-1").WillReturnError(errors.New("connection reset"))

	_, err := repo.IsDelivered(context.Background(), "evt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
