package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nilroute/resolverd/internal/core/domain"
)

func TestAuditPostgresRecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO resolution_log").
		WithArgs(sqlmock.AnyArg(), "corr-1", "203.0.113.5", "example.com.", "A", uint8(0), 3, int64(42)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewAuditPostgres(db)
	err = repo.Record(context.Background(), domain.ResolutionLog{
		CorrelationID: "corr-1",
		ClientIP:      "203.0.113.5",
		QName:         "example.com.",
		QType:         "A",
		RCode:         0,
		Hops:          3,
		DurationMS:    42,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditPostgresRecordGeneratesIDWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO resolution_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewAuditPostgres(db)
	err = repo.Record(context.Background(), domain.ResolutionLog{QName: "foo.", QType: "AAAA"})
	require.NoError(t, err)
}

func TestAuditPostgresRecordWrapsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO resolution_log").
		WillReturnError(errors.New("connection reset"))

	repo := NewAuditPostgres(db)
	err = repo.Record(context.Background(), domain.ResolutionLog{QName: "foo.", QType: "A"})
	require.Error(t, err)
}

func TestAuditPostgresPing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	repo := NewAuditPostgres(db)
	require.NoError(t, repo.Ping(context.Background()))
}
