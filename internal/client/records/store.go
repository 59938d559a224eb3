// Package records keeps the user's saved progress records in sync with the
// server after fetches and mutations.
package records

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/nextshape/internal/client/events"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/common"
	"github.com/dmitrijs2005/nextshape/internal/logging"
)

// Messages shown when the server gives no reason.
const (
	MsgFetchFailed  = "could not load records"
	MsgUpdateFailed = "record update failed"
	MsgDeleteFailed = "record deletion failed"
	MsgCreateFailed = "record could not be saved"
)

// Cache mirrors the collection locally.
type Cache interface {
	ReplaceAll(ctx context.Context, list []models.ProgressRecord) error
	List(ctx context.Context) ([]models.ProgressRecord, error)
	Clear(ctx context.Context) error
}

type Options struct {
	API    transport.API
	Cache  Cache
	Logger logging.Logger
	// Now dates records created through Create. Defaults to time.Now.
	Now func() time.Time
}

// Store is the client-side collection, keyed by record id with the server's
// order kept in ids.
type Store struct {
	api   transport.API
	cache Cache
	log   logging.Logger
	now   func() time.Time

	mu    sync.RWMutex
	byID  map[int64]models.ProgressRecord
	ids   []int64
	epoch uint64
}

func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		api:   opts.API,
		cache: opts.Cache,
		log:   opts.Logger.With("component", "records"),
		now:   opts.Now,
		byID:  map[int64]models.ProgressRecord{},
	}
}

// Subscribe clears the collection whenever the session changes hands and
// reloads the cache for a restored session.
func (s *Store) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		switch e.Kind {
		case events.SessionStarted, events.SessionEnded:
			s.Reset(ctx)
		case events.SessionRestored:
			s.LoadCache(ctx)
		}
	})
}

// List returns the records in order.
func (s *Store) List() []models.ProgressRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProgressRecord, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}

// Get returns the record with id.
func (s *Store) Get(id int64) (models.ProgressRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// FetchAll replaces the collection with the server's list.
func (s *Store) FetchAll(ctx context.Context) error {
	epoch := s.currentEpoch()
	list, err := s.api.ListRecords(ctx)
	if err != nil {
		return common.WithFallback(err, MsgFetchFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.replace(list)
	s.mirror(ctx)
	return nil
}

// Update patches record id and adopts the server's version of it. An id not
// in the collection is ignored without contacting the server.
func (s *Store) Update(ctx context.Context, id int64, fields map[string]any) error {
	if _, ok := s.Get(id); !ok {
		return nil
	}

	rec, err := s.api.UpdateRecord(ctx, id, fields)
	if err != nil {
		return common.WithFallback(err, MsgUpdateFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return nil
	}
	rec.ID = id
	s.byID[id] = rec
	s.mirror(ctx)
	return nil
}

// Delete removes record id on the server and locally. An id not in the
// collection is ignored without contacting the server.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, ok := s.Get(id); !ok {
		return nil
	}

	if err := s.api.DeleteRecord(ctx, id); err != nil {
		return common.WithFallback(err, MsgDeleteFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return nil
	}
	delete(s.byID, id)
	s.ids = slices.DeleteFunc(s.ids, func(v int64) bool { return v == id })
	s.mirror(ctx)
	return nil
}

// Create asks the server to compute and save today's record from the
// measurements and appends it.
func (s *Store) Create(ctx context.Context, weightKg, heightCm float64) (models.ProgressRecord, error) {
	epoch := s.currentEpoch()
	rec, err := s.api.CalculateIMC(ctx, models.MeasurementRequest{
		WeightKg: weightKg,
		HeightCm: heightCm,
		Date:     s.now(),
	})
	if err != nil {
		return models.ProgressRecord{}, common.WithFallback(err, MsgCreateFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return rec, nil
	}
	if _, ok := s.byID[rec.ID]; !ok {
		s.ids = append(s.ids, rec.ID)
	}
	s.byID[rec.ID] = rec
	s.mirror(ctx)
	return rec, nil
}

// Reset empties the collection and its cache.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = map[int64]models.ProgressRecord{}
	s.ids = nil
	s.epoch++
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.log.Error(ctx, "clear records cache", "error", err)
	}
}

// LoadCache fills the collection from the local cache.
func (s *Store) LoadCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	list, err := s.cache.List(ctx)
	if err != nil {
		s.log.Error(ctx, "load records cache", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(list)
	s.epoch++
}

func (s *Store) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// replace swaps in list. Caller holds mu.
func (s *Store) replace(list []models.ProgressRecord) {
	s.byID = make(map[int64]models.ProgressRecord, len(list))
	s.ids = make([]int64, 0, len(list))
	for _, rec := range list {
		if _, dup := s.byID[rec.ID]; !dup {
			s.ids = append(s.ids, rec.ID)
		}
		s.byID[rec.ID] = rec
	}
}

// mirror writes the collection to the cache. Caller holds mu.
func (s *Store) mirror(ctx context.Context) {
	if s.cache == nil {
		return
	}
	list := make([]models.ProgressRecord, 0, len(s.ids))
	for _, id := range s.ids {
		list = append(list, s.byID[id])
	}
	if err := s.cache.ReplaceAll(ctx, list); err != nil {
		s.log.Error(ctx, "mirror records cache", "error", err)
	}
}
