package revision

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_GetRevision_PropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, created_at FROM revision WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnError(assert.AnError)

	s := NewSQLStore(db, DialectPostgres)
	_, err = s.GetRevision(7)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetRevision_NoRowsBecomesTypedNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, created_at FROM revision WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	s := NewSQLStore(db, DialectPostgres)
	_, err = s.GetRevision(7)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrRevisionNotFound, rerr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}
