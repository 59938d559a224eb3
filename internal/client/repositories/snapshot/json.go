// Package snapshot stores a single JSON-encoded value under a metadata key.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/nextshape/internal/client/repositories/metadata"
)

type JSON[T any] struct {
	repo metadata.Repository
	key  string
}

func NewJSON[T any](repo metadata.Repository, key string) *JSON[T] {
	return &JSON[T]{repo: repo, key: key}
}

func (s *JSON[T]) Save(ctx context.Context, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.key, err)
	}
	return s.repo.Set(ctx, s.key, b)
}

// Load returns the stored value; ok is false when nothing is stored.
func (s *JSON[T]) Load(ctx context.Context) (v T, ok bool, err error) {
	b, err := s.repo.Get(ctx, s.key)
	if err != nil || b == nil {
		return v, false, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("decode snapshot %s: %w", s.key, err)
	}
	return v, true, nil
}

func (s *JSON[T]) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, s.key)
}
