// Package sessions persists the authenticated identity and its credential.
// Both live in the metadata table and are always written and removed in one
// transaction.
package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/nextshape/internal/dbx"
)

const (
	keyIdentity   = "session.identity"
	keyCredential = "session.credential"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save stores id and cred together.
func (r *SQLiteRepository) Save(ctx context.Context, id models.Identity, cred models.Credential) error {
	idJSON, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	credJSON, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := metadata.NewSQLiteRepository(tx)
		if err := meta.Set(ctx, keyIdentity, idJSON); err != nil {
			return err
		}
		return meta.Set(ctx, keyCredential, credJSON)
	})
}

// Load returns the persisted pair, or nil, nil when no complete session is
// stored. A half-written pair is treated as no session.
func (r *SQLiteRepository) Load(ctx context.Context) (*models.Identity, *models.Credential, error) {
	meta := metadata.NewSQLiteRepository(r.db)

	idJSON, err := meta.Get(ctx, keyIdentity)
	if err != nil {
		return nil, nil, err
	}
	credJSON, err := meta.Get(ctx, keyCredential)
	if err != nil {
		return nil, nil, err
	}
	if idJSON == nil || credJSON == nil {
		return nil, nil, nil
	}

	var (
		id   models.Identity
		cred models.Credential
	)
	if err := json.Unmarshal(idJSON, &id); err != nil {
		return nil, nil, fmt.Errorf("decode identity: %w", err)
	}
	if err := json.Unmarshal(credJSON, &cred); err != nil {
		return nil, nil, fmt.Errorf("decode credential: %w", err)
	}
	return &id, &cred, nil
}

// Clear removes both keys.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := metadata.NewSQLiteRepository(tx)
		if err := meta.Delete(ctx, keyIdentity); err != nil {
			return err
		}
		return meta.Delete(ctx, keyCredential)
	})
}
