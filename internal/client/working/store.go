// Package working holds the in-progress metric computation of the current
// user: measurements, BMI, activity level, goal and the server's calorie
// figures.
package working

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/nextshape/internal/client/events"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/payload"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/common"
	"github.com/dmitrijs2005/nextshape/internal/logging"
)

// Snapshots persists the working record between runs.
type Snapshots interface {
	Save(ctx context.Context, rec models.WorkingRecord) error
	Load(ctx context.Context) (models.WorkingRecord, bool, error)
	Clear(ctx context.Context) error
}

type Options struct {
	API       transport.API
	Snapshots Snapshots
	Logger    logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Store struct {
	api   transport.API
	snaps Snapshots
	log   logging.Logger
	now   func() time.Time

	mu  sync.RWMutex
	rec models.WorkingRecord
	// epoch changes on every reset; late server results for an older epoch
	// are dropped.
	epoch uint64
}

func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		api:   opts.API,
		snaps: opts.Snapshots,
		log:   opts.Logger.With("component", "working"),
		now:   opts.Now,
	}
	s.rec = s.fresh(nil)
	return s
}

// Subscribe resets the store on every session transition.
func (s *Store) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		switch e.Kind {
		case events.SessionStarted, events.SessionEnded:
			s.Reset(ctx, e.Identity)
		case events.SessionRestored:
			s.Restore(ctx, e.Identity)
		}
	})
}

// CalculateBMI returns weight / (height in metres)², rounded half up to two
// decimals.
func CalculateBMI(weightKg, heightCm float64) (float64, error) {
	if weightKg <= 0 || heightCm <= 0 {
		return 0, common.NewError(common.KindInvalidMeasurement, "weight and height must be positive")
	}
	m := heightCm / 100
	return math.Floor(weightKg/(m*m)*100+0.5) / 100, nil
}

// SetMeasurements stores weight, height and their BMI.
func (s *Store) SetMeasurements(ctx context.Context, weightKg, heightCm float64) (float64, error) {
	bmi, err := CalculateBMI(weightKg, heightCm)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.WeightKg = models.Float(weightKg)
	s.rec.HeightCm = models.Float(heightCm)
	s.rec.BMI = models.Float(bmi)
	s.touch()
	s.persist(ctx)
	return bmi, nil
}

func (s *Store) SetActivity(ctx context.Context, level string) error {
	if !slices.Contains(models.ActivityLevels, level) {
		return common.Errorf(common.KindValidation, "unknown activity level %q", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ActivityLevel = level
	s.touch()
	s.persist(ctx)
	return nil
}

func (s *Store) SetGoal(ctx context.Context, goal string) error {
	if !slices.Contains(models.Goals, goal) {
		return common.Errorf(common.KindValidation, "unknown goal %q", goal)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Goal = goal
	s.touch()
	s.persist(ctx)
	return nil
}

// MsgCaloriesFailed is shown when the server gives no reason.
const MsgCaloriesFailed = "calorie calculation failed"

// CalculateCalories asks the server for BMR, TDEE and recommended calories
// and stores them. Errors leave the record untouched.
func (s *Store) CalculateCalories(ctx context.Context) (models.Outcome, error) {
	s.mu.RLock()
	req := models.CaloriesRequest{
		Gender:        s.rec.Gender,
		Age:           s.rec.Age,
		Date:          s.rec.Date,
		WeightKg:      s.rec.WeightKg,
		HeightCm:      s.rec.HeightCm,
		ActivityLevel: s.rec.ActivityLevel,
		Goal:          s.rec.Goal,
	}
	epoch := s.epoch
	s.mu.RUnlock()

	res, err := s.api.CalculateCalories(ctx, req)
	if err != nil {
		return models.Outcome{}, common.WithFallback(err, MsgCaloriesFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.log.Info(ctx, "dropping calorie result for a reset record")
		return res.Outcome, nil
	}
	s.rec.BMR = models.Float(res.Values.BMR)
	s.rec.TDEE = models.Float(res.Values.TDEE)
	s.rec.RecommendedCalories = models.Float(res.Values.RecommendedCalories)
	s.touch()
	s.persist(ctx)
	return res.Outcome, nil
}

// Reset starts a new record for id: gender and age from the profile, today's
// date, everything else empty. A nil id clears the persisted snapshot.
func (s *Store) Reset(ctx context.Context, id *models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = s.fresh(id)
	s.epoch++

	if s.snaps == nil {
		return
	}
	if id == nil {
		if err := s.snaps.Clear(ctx); err != nil {
			s.log.Error(ctx, "clear working record", "error", err)
		}
		return
	}
	s.persist(ctx)
}

// Restore reloads the persisted record, or resets for id when none is stored.
// Gender and age of a reloaded record are taken from id again.
func (s *Store) Restore(ctx context.Context, id *models.Identity) {
	if s.snaps != nil {
		rec, ok, err := s.snaps.Load(ctx)
		if err != nil {
			s.log.Error(ctx, "load working record", "error", err)
		}
		if ok {
			s.mu.Lock()
			s.rec = rec
			applyIdentity(&s.rec, id, payload.DateOf(s.now()))
			s.epoch++
			s.persist(ctx)
			s.mu.Unlock()
			return
		}
	}
	s.Reset(ctx, id)
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() models.WorkingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Clone()
}

func (s *Store) fresh(id *models.Identity) models.WorkingRecord {
	now := s.now()
	today := payload.DateOf(now)
	rec := models.WorkingRecord{Date: today.String(), CreatedAt: &now}
	applyIdentity(&rec, id, today)
	return rec
}

// applyIdentity sets gender and age from id as of today.
func applyIdentity(rec *models.WorkingRecord, id *models.Identity, today payload.Date) {
	if id == nil {
		return
	}
	rec.Gender = id.Gender
	rec.Age = nil
	if born, err := payload.ParseDate(id.BirthDate); err == nil {
		rec.Age = models.Int(born.YearsUntil(today))
	}
}

// touch stamps the record as modified. Caller holds mu.
func (s *Store) touch() {
	now := s.now()
	s.rec.ModifiedAt = &now
}

// persist saves the record. Caller holds mu.
func (s *Store) persist(ctx context.Context) {
	if s.snaps == nil {
		return
	}
	if err := s.snaps.Save(ctx, s.rec); err != nil {
		s.log.Error(ctx, "save working record", "error", err)
	}
}
