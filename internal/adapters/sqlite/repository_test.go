package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/mirecurso/internal/ports"
)

var fixedNow = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *Repository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewWithDB(sqlx.NewDb(db, "sqlite3"))
	repo.now = func() time.Time { return fixedNow }
	return mock, repo
}

var _ ports.StatePersister = (*Repository)(nil)

func TestLoad_Success(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT payload FROM wizard_state WHERE state_key = \?`).
		WithArgs("mirecurso-formulario-v2:abc").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"version":2}`)))

	got, err := repo.Load(context.Background(), "mirecurso-formulario-v2:abc")

	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2}`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_NotFound(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT payload`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background(), "missing")

	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_DatabaseError(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(`SELECT payload`).
		WithArgs("k").
		WillReturnError(errors.New("database is locked"))

	_, err := repo.Load(context.Background(), "k")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrNotFound)
	assert.Contains(t, err.Error(), "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Upserts(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO wizard_state .* ON CONFLICT\(state_key\) DO UPDATE`).
		WithArgs("k", []byte("payload"), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), "k", []byte("payload")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Error(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO wizard_state`).
		WithArgs("k", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	err := repo.Save(context.Background(), "k", []byte("payload"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `save "k"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectExec(`DELETE FROM wizard_state WHERE state_key = \?`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	mock, repo := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"state_key", "size", "updated_at"}).
		AddRow("mirecurso-formulario-v2:b", 2048, fixedNow).
		AddRow("mirecurso-formulario-v2:a", 512, fixedNow.Add(-time.Hour))
	mock.ExpectQuery(`SELECT state_key, length\(payload\) AS size, updated_at`).WillReturnRows(rows)

	got, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mirecurso-formulario-v2:b", got[0].Key)
	assert.Equal(t, int64(2048), got[0].Size)
	assert.True(t, got[1].UpdatedAt.Before(got[0].UpdatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeOlderThan(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectExec(`DELETE FROM wizard_state WHERE updated_at < \?`).
		WithArgs(fixedNow.Add(-30 * 24 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgeOlderThan(context.Background(), 30*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
