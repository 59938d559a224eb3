package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/sessions"
	"github.com/dmitrijs2005/nextshape/internal/client/storage"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

const (
	email    = "ada@example.com"
	password = "s3cret"
)

var ada = models.Identity{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     email,
	Gender:    models.GenderFemale,
	BirthDate: "2000-06-15",
}

type recorder struct {
	mu     sync.Mutex
	paths  []string
	events []events.Event
}

func (r *recorder) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) handle(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) count(k events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

type env struct {
	srv   *apitest.Server
	db    *sql.DB
	store *Store
	rec   *recorder
}

func newEnv(t *testing.T, mode string, timeout time.Duration) *env {
	t.Helper()
	srv := apitest.NewServer(t)
	srv.AddUser(ada, password)

	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	api, err := transport.NewHTTPClient(transport.Options{
		BaseURL:    srv.URL(),
		Timeout:    timeout,
		AuthMode:   mode,
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	rec := &recorder{}
	bus := events.NewBus()
	bus.Subscribe(rec.handle)

	st := NewStore(Options{
		API:       api,
		Repo:      sessions.NewSQLiteRepository(db),
		Bus:       bus,
		Navigator: rec,
		AuthMode:  mode,
	})
	api.SetHooks(st)

	return &env{srv: srv, db: db, store: st, rec: rec}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.Login(context.Background(), email, password))
}

func (e *env) persisted(t *testing.T) (*models.Identity, *models.Credential) {
	t.Helper()
	id, cred, err := sessions.NewSQLiteRepository(e.db).Load(context.Background())
	require.NoError(t, err)
	return id, cred
}

func TestRegister_MapsEmailToUsername(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)

	out, err := e.store.Register(context.Background(), models.Registration{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Gender:    models.GenderFemale,
		BirthDate: "1990-12-09",
		Password:  "pw",
	})
	require.NoError(t, err)
	assert.True(t, out.Success)

	var body map[string]any
	require.NoError(t, json.Unmarshal(e.srv.LastBody("register/"), &body))
	assert.Equal(t, "grace@example.com", body["username"])
	assert.Equal(t, "grace@example.com", body["email"])
	assert.Equal(t, "1990-12-09", body["birth_date"])
	assert.False(t, e.store.IsAuthenticated())
}

func TestRegister_Failures(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	ctx := context.Background()

	_, err := e.store.Register(ctx, models.Registration{Email: email, Password: "pw"})
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "Un utilisateur avec cet email existe déjà.", err.Error())

	e.srv.Fail("register/", http.StatusBadRequest, `{"success":false,"errors":{"email":["invalid"]}}`)
	_, err = e.store.Register(ctx, models.Registration{Email: "x@example.com", Password: "pw"})
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, MsgRegistrationFailed, err.Error())
}

func TestLogin_StartsAndPersistsSession(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)

	require.True(t, e.store.IsAuthenticated())
	assert.Equal(t, ada, *e.store.Identity())
	assert.Equal(t, models.Credential{Mode: models.AuthModeCookie}, *e.store.Credential())
	assert.Equal(t, 1, e.rec.count(events.SessionStarted))

	id, cred := e.persisted(t)
	require.NotNil(t, id)
	require.NotNil(t, cred)
	assert.Equal(t, ada, *id)
	assert.Equal(t, models.AuthModeCookie, cred.Mode)
}

func TestLogin_BearerKeepsAccessToken(t *testing.T) {
	e := newEnv(t, models.AuthModeBearer, 2*time.Second)
	e.login(t)

	cred := e.store.Credential()
	require.NotNil(t, cred)
	assert.NotEmpty(t, cred.AccessToken)
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	ctx := context.Background()

	err := e.store.Login(ctx, email, "wrong")
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "Identifiants invalides.", err.Error())
	assert.False(t, e.store.IsAuthenticated())

	e.srv.Fail("login/", http.StatusBadRequest, `{}`)
	err = e.store.Login(ctx, email, password)
	assert.Equal(t, MsgLoginFailed, err.Error())

	assert.Zero(t, e.rec.count(events.SessionStarted))
	id, _ := e.persisted(t)
	assert.Nil(t, id)
}

func TestLogout_SwallowsServerFailure(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)

	e.srv.Fail("logout/", http.StatusInternalServerError, ``)
	e.store.Logout(context.Background())

	assert.False(t, e.store.IsAuthenticated())
	assert.Nil(t, e.store.Identity())
	assert.Nil(t, e.store.Credential())
	assert.Equal(t, []string{common.LoginPath}, e.rec.navigations())
	assert.Equal(t, 1, e.rec.count(events.SessionEnded))

	id, cred := e.persisted(t)
	assert.Nil(t, id)
	assert.Nil(t, cred)
}

func TestCheckAuthentication(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)
	ctx := context.Background()

	ok, err := e.store.CheckAuthentication(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	e.srv.ExpireAccess()
	ok, err = e.store.CheckAuthentication(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "expired access is renewed transparently")
	assert.Equal(t, 1, e.srv.Calls("refresh-access/"))

	e.srv.RevokeSessions()
	ok, err = e.store.CheckAuthentication(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, e.store.IsAuthenticated())
	assert.Equal(t, 1, e.rec.count(events.SessionEnded), "transport teardown is not repeated")
	assert.Equal(t, []string{common.LoginPath}, e.rec.navigations())
}

func TestCheckAuthentication_ServerSaysInvalid(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)

	e.srv.Fail("check-authentication/", http.StatusOK, `{"authenticated":false}`)
	ok, err := e.store.CheckAuthentication(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, e.store.IsAuthenticated())
	assert.Equal(t, 1, e.rec.count(events.SessionEnded))
}

func TestCheckAuthentication_TimeoutKeepsSession(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 100*time.Millisecond)
	e.login(t)

	e.srv.Delay("check-authentication/", time.Second)
	ok, err := e.store.CheckAuthentication(context.Background())
	require.ErrorIs(t, err, common.ErrTimeout)
	assert.False(t, ok)
	assert.True(t, e.store.IsAuthenticated())
	assert.Zero(t, e.rec.count(events.SessionEnded))
}

func TestConcurrentExpiry_TearsDownOnce(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)

	e.srv.RevokeSessions()
	e.srv.Delay("refresh-access/", 200*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.store.CheckAuthentication(context.Background())
		}()
	}
	wg.Wait()

	assert.False(t, e.store.IsAuthenticated())
	assert.Equal(t, 1, e.rec.count(events.SessionEnded))
	assert.Equal(t, 1, e.srv.Calls("refresh-access/"))
}

func TestUpdateProfileField(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)
	ctx := context.Background()

	err := e.store.UpdateProfileField(ctx, "password", "x")
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, e.srv.Calls("profile/"))

	require.NoError(t, e.store.UpdateProfileField(ctx, "first_name", "Augusta"))
	assert.Equal(t, "Augusta", e.store.Identity().FirstName)
	id, _ := e.persisted(t)
	require.NotNil(t, id)
	assert.Equal(t, "Augusta", id.FirstName)

	e.srv.Fail("profile/", http.StatusBadRequest, `{"success":false,"errors":{"last_name":["too long"]}}`)
	err = e.store.UpdateProfileField(ctx, "last_name", "x")
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, MsgProfileUpdateFailed, err.Error())
	assert.Equal(t, "Lovelace", e.store.Identity().LastName)
}

func TestBearerRefresh_PersistsRenewedToken(t *testing.T) {
	e := newEnv(t, models.AuthModeBearer, 2*time.Second)
	e.login(t)
	before := e.store.Credential().AccessToken

	e.srv.ExpireAccess()
	require.NoError(t, e.store.UpdateProfileField(context.Background(), "phone_number", "0600000000"))

	after := e.store.Credential().AccessToken
	assert.NotEqual(t, before, after)
	_, cred := e.persisted(t)
	require.NotNil(t, cred)
	assert.Equal(t, after, cred.AccessToken)
}

func TestDeleteAccount(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	e.login(t)
	ctx := context.Background()

	e.srv.Fail("delete-account/", http.StatusInternalServerError, ``)
	require.ErrorIs(t, e.store.DeleteAccount(ctx), common.ErrTransport)
	assert.True(t, e.store.IsAuthenticated())
	assert.Empty(t, e.rec.navigations())

	require.NoError(t, e.store.DeleteAccount(ctx))
	assert.False(t, e.store.IsAuthenticated())
	assert.Equal(t, []string{common.LandingPath}, e.rec.navigations())
	_, ok := e.srv.User(email)
	assert.False(t, ok)
}

func TestVerificationPassThrough(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	ctx := context.Background()

	out, err := e.store.SendVerificationCode(ctx, email, models.CodePurposeResetPassword)
	require.NoError(t, err)
	assert.True(t, out.Success)

	res, err := e.store.VerifyCode(ctx, email, "000000")
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = e.store.VerifyCode(ctx, email, apitest.VerificationCode)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	out, err = e.store.ResetPassword(ctx, email, "n3w")
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NoError(t, e.store.Login(ctx, email, "n3w"))
	assert.True(t, e.store.IsAuthenticated())

	_, err = e.store.SendVerificationCode(ctx, email, models.CodePurpose("newsletter"))
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, `unknown code purpose "newsletter"`, err.Error())
}

func TestRestore(t *testing.T) {
	e := newEnv(t, models.AuthModeCookie, 2*time.Second)
	ctx := context.Background()

	require.NoError(t, e.store.Restore(ctx))
	assert.False(t, e.store.IsAuthenticated())
	assert.Zero(t, e.rec.count(events.SessionRestored))

	e.login(t)

	rec := &recorder{}
	bus := events.NewBus()
	bus.Subscribe(rec.handle)
	fresh := NewStore(Options{Repo: sessions.NewSQLiteRepository(e.db), Bus: bus})
	require.NoError(t, fresh.Restore(ctx))
	assert.True(t, fresh.IsAuthenticated())
	assert.Equal(t, ada, *fresh.Identity())
	assert.Equal(t, 1, rec.count(events.SessionRestored))
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, models.Identity, models.Credential) error {
	return errors.New("disk full")
}

func (failingRepo) Load(context.Context) (*models.Identity, *models.Credential, error) {
	return nil, nil, errors.New("disk gone")
}

func (failingRepo) Clear(context.Context) error { return errors.New("disk gone") }

func TestPersistenceFailures(t *testing.T) {
	st := NewStore(Options{Repo: failingRepo{}})
	require.ErrorContains(t, st.Restore(context.Background()), "restore session: disk gone")

	st.SessionExpired(context.Background())
	assert.False(t, st.IsAuthenticated())
}
