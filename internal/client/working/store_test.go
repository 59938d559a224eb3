package working

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/nextshape/internal/client/apitest"
	"github.com/dmitrijs2005/nextshape/internal/client/events"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/snapshot"
	"github.com/dmitrijs2005/nextshape/internal/client/storage"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

var ada = models.Identity{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     "ada@example.com",
	Gender:    models.GenderFemale,
	BirthDate: "2000-06-15",
}

func clock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 9, 30, 0, 0, time.Local) }
}

func newSnapshots(t *testing.T) *snapshot.JSON[models.WorkingRecord] {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "working.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return snapshot.NewJSON[models.WorkingRecord](metadata.NewSQLiteRepository(db), "working.record")
}

func loggedInAPI(t *testing.T) (*apitest.Server, *transport.HTTPClient) {
	t.Helper()
	srv := apitest.NewServer(t)
	srv.AddUser(ada, "pw")
	api, err := transport.NewHTTPClient(transport.Options{BaseURL: srv.URL(), Timeout: 2 * time.Second, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	_, err = api.Login(context.Background(), ada.Email, "pw")
	require.NoError(t, err)
	return srv, api
}

func TestCalculateBMI(t *testing.T) {
	bmi, err := CalculateBMI(70, 175)
	require.NoError(t, err)
	assert.Equal(t, 22.86, bmi)

	bmi, err = CalculateBMI(80, 200)
	require.NoError(t, err)
	assert.Equal(t, 20.0, bmi)

	for _, tc := range [][2]float64{{0, 175}, {70, 0}, {-1, 175}, {70, -3}} {
		_, err := CalculateBMI(tc[0], tc[1])
		require.ErrorIs(t, err, common.ErrInvalidMeasurement, tc)
	}
}

func TestReset_DerivesAgeFromBirthDate(t *testing.T) {
	cases := []struct {
		name string
		now  func() time.Time
		age  int
		date string
	}{
		{"day before birthday", clock(2024, time.June, 14), 23, "2024-06-14"},
		{"on birthday", clock(2024, time.June, 15), 24, "2024-06-15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(Options{Now: tc.now})
			s.Reset(context.Background(), &ada)

			rec := s.Snapshot()
			require.NotNil(t, rec.Age)
			assert.Equal(t, tc.age, *rec.Age)
			assert.Equal(t, tc.date, rec.Date)
			assert.Equal(t, models.GenderFemale, rec.Gender)
			assert.Nil(t, rec.WeightKg)
			assert.Nil(t, rec.BMR)
		})
	}
}

func TestSetMeasurements(t *testing.T) {
	s := NewStore(Options{Now: clock(2024, time.June, 15)})
	ctx := context.Background()

	bmi, err := s.SetMeasurements(ctx, 70, 175)
	require.NoError(t, err)
	assert.Equal(t, 22.86, bmi)

	_, err = s.SetMeasurements(ctx, 0, 175)
	require.ErrorIs(t, err, common.ErrInvalidMeasurement)

	rec := s.Snapshot()
	assert.Equal(t, 70.0, *rec.WeightKg)
	assert.Equal(t, 175.0, *rec.HeightCm)
	assert.Equal(t, 22.86, *rec.BMI)
}

func TestSetActivityAndGoal_Validated(t *testing.T) {
	s := NewStore(Options{})
	ctx := context.Background()

	require.ErrorIs(t, s.SetActivity(ctx, "couch"), common.ErrValidation)
	require.ErrorIs(t, s.SetGoal(ctx, "bulk"), common.ErrValidation)
	require.NoError(t, s.SetActivity(ctx, "modere"))
	require.NoError(t, s.SetGoal(ctx, "perte"))

	rec := s.Snapshot()
	assert.Equal(t, "modere", rec.ActivityLevel)
	assert.Equal(t, "perte", rec.Goal)
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore(Options{})
	_, err := s.SetMeasurements(context.Background(), 70, 175)
	require.NoError(t, err)

	rec := s.Snapshot()
	*rec.WeightKg = 1
	assert.Equal(t, 70.0, *s.Snapshot().WeightKg)
}

func TestCalculateCalories(t *testing.T) {
	srv, api := loggedInAPI(t)
	s := NewStore(Options{API: api, Now: clock(2024, time.June, 14)})
	ctx := context.Background()

	s.Reset(ctx, &ada)
	_, err := s.SetMeasurements(ctx, 70, 175)
	require.NoError(t, err)
	require.NoError(t, s.SetActivity(ctx, "modere"))
	require.NoError(t, s.SetGoal(ctx, "perte"))

	out, err := s.CalculateCalories(ctx)
	require.NoError(t, err)
	assert.True(t, out.Success)

	rec := s.Snapshot()
	require.NotNil(t, rec.BMR)
	assert.Equal(t, 1517.75, *rec.BMR)
	assert.InDelta(t, 2352.51, *rec.TDEE, 0.011)
	assert.InDelta(t, 1852.51, *rec.RecommendedCalories, 0.011)

	srv.Fail("calculate-calories/", http.StatusBadRequest, `{"success":false,"message":"Données incomplètes pour le calcul."}`)
	_, err = s.CalculateCalories(ctx)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "Données incomplètes pour le calcul.", err.Error())
	assert.Equal(t, 1517.75, *s.Snapshot().BMR, "failed call leaves the figures")

	srv.Fail("calculate-calories/", http.StatusBadRequest, ``)
	_, err = s.CalculateCalories(ctx)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, MsgCaloriesFailed, err.Error())
}

func TestCalculateCalories_ResultAfterResetIsDropped(t *testing.T) {
	srv, api := loggedInAPI(t)
	s := NewStore(Options{API: api})
	ctx := context.Background()

	s.Reset(ctx, &ada)
	_, err := s.SetMeasurements(ctx, 70, 175)
	require.NoError(t, err)
	require.NoError(t, s.SetActivity(ctx, "leger"))
	require.NoError(t, s.SetGoal(ctx, "maintien"))

	srv.Delay("calculate-calories/", 300*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	var calcErr error
	go func() {
		defer wg.Done()
		_, calcErr = s.CalculateCalories(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	s.Reset(ctx, nil)
	wg.Wait()

	require.NoError(t, calcErr)
	rec := s.Snapshot()
	assert.Nil(t, rec.BMR)
	assert.Nil(t, rec.WeightKg)
	assert.Empty(t, rec.Gender)
}

func TestPersistenceAndEvents(t *testing.T) {
	snaps := newSnapshots(t)
	bus := events.NewBus()
	ctx := context.Background()

	s := NewStore(Options{Snapshots: snaps, Now: clock(2024, time.June, 15)})
	s.Subscribe(bus)

	bus.Publish(ctx, events.Event{Kind: events.SessionStarted, Identity: &ada})
	_, err := s.SetMeasurements(ctx, 70, 175)
	require.NoError(t, err)

	restored := NewStore(Options{Snapshots: snaps, Now: clock(2024, time.June, 16)})
	otherBus := events.NewBus()
	restored.Subscribe(otherBus)
	otherBus.Publish(ctx, events.Event{Kind: events.SessionRestored, Identity: &ada})

	rec := restored.Snapshot()
	require.NotNil(t, rec.BMI)
	assert.Equal(t, 22.86, *rec.BMI)
	assert.Equal(t, "2024-06-15", rec.Date)

	bus.Publish(ctx, events.Event{Kind: events.SessionEnded})
	assert.Nil(t, s.Snapshot().BMI)
	assert.Nil(t, s.Snapshot().Age)

	_, ok, err := snaps.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_WithoutSnapshotResets(t *testing.T) {
	s := NewStore(Options{Snapshots: newSnapshots(t), Now: clock(2024, time.June, 15)})
	s.Restore(context.Background(), &ada)

	rec := s.Snapshot()
	require.NotNil(t, rec.Age)
	assert.Equal(t, 24, *rec.Age)
}

func TestRestore_RecomputesAgeAcrossBirthday(t *testing.T) {
	snaps := newSnapshots(t)
	ctx := context.Background()

	before := NewStore(Options{Snapshots: snaps, Now: clock(2024, time.June, 14)})
	before.Reset(ctx, &ada)
	_, err := before.SetMeasurements(ctx, 70, 175)
	require.NoError(t, err)
	require.NotNil(t, before.Snapshot().Age)
	require.Equal(t, 23, *before.Snapshot().Age)

	after := NewStore(Options{Snapshots: snaps, Now: clock(2024, time.June, 20)})
	after.Restore(ctx, &ada)

	rec := after.Snapshot()
	require.NotNil(t, rec.Age)
	assert.Equal(t, 24, *rec.Age)
	assert.Equal(t, models.GenderFemale, rec.Gender)
	require.NotNil(t, rec.BMI)
	assert.Equal(t, 22.86, *rec.BMI)
	assert.Equal(t, "2024-06-14", rec.Date, "the record keeps its own date")

	stored, ok, err := snaps.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, stored.Age)
	assert.Equal(t, 24, *stored.Age)
}
