// Package records mirrors the progress-record collection into the
// progress_records table so it survives restarts.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ReplaceAll swaps the stored collection for list, keeping list's order.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, list []models.ProgressRecord) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress_records`); err != nil {
			return fmt.Errorf("clear progress records: %w", err)
		}
		for pos, rec := range list {
			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode progress record %d: %w", rec.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO progress_records (id, position, date, payload) VALUES (?, ?, ?, ?)`,
				rec.ID, pos, rec.Date, payload)
			if err != nil {
				return fmt.Errorf("insert progress record %d: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// List returns the stored collection in order.
func (r *SQLiteRepository) List(ctx context.Context) ([]models.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, payload FROM progress_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list progress records: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressRecord
	for rows.Next() {
		var (
			id      int64
			payload []byte
			rec     models.ProgressRecord
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan progress record: %w", err)
		}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode progress record %d: %w", id, err)
		}
		rec.ID = id
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress records: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress_records`); err != nil {
		return fmt.Errorf("clear progress records: %w", err)
	}
	return nil
}
