package records

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/storage"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestReplaceAllAndList_KeepsOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	list := []models.ProgressRecord{
		{ID: 9, Date: "2024-03-01", WeightKg: models.Float(71.2), Goal: "perte"},
		{ID: 2, Date: "2024-01-01", WeightKg: models.Float(73), Age: models.Int(23)},
		{ID: 5, Date: "2024-02-01"},
	}
	require.NoError(t, r.ReplaceAll(ctx, list))

	got, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(list, got))

	require.NoError(t, r.ReplaceAll(ctx, list[:1]))
	got, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 9, got[0].ID)

	require.NoError(t, r.Clear(ctx))
	got, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceAll_DuplicateIDRollsBack(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.ReplaceAll(ctx, []models.ProgressRecord{{ID: 1}}))

	err := r.ReplaceAll(ctx, []models.ProgressRecord{{ID: 3}, {ID: 3}})
	require.ErrorContains(t, err, "insert progress record 3")

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, got[0].ID, "failed replace leaves the previous mirror intact")
}

func TestList_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, payload FROM progress_records`).WillReturnError(errors.New("locked"))

	_, err = NewSQLiteRepository(db).List(context.Background())
	require.ErrorContains(t, err, "list progress records")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_CorruptPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, payload FROM progress_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload"}).AddRow(4, []byte(`{`)))

	_, err = NewSQLiteRepository(db).List(context.Background())
	require.ErrorContains(t, err, "decode progress record 4")
}
