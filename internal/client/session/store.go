// Package session owns the authenticated identity and its credential. It is
// the only writer of both, persists them together and announces every
// session transition on the events bus.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/nextshape/internal/client/events"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/common"
	"github.com/dmitrijs2005/nextshape/internal/logging"
)

// Fallback messages for server rejections without a message.
const (
	MsgRegistrationFailed    = "registration failed"
	MsgLoginFailed           = "login failed"
	MsgProfileUpdateFailed   = "profile update failed"
	MsgAccountDeletionFailed = "account deletion failed"
)

// Repository persists the session pair.
type Repository interface {
	Save(ctx context.Context, id models.Identity, cred models.Credential) error
	// Load returns nil, nil when no session is stored.
	Load(ctx context.Context) (*models.Identity, *models.Credential, error)
	Clear(ctx context.Context) error
}

// Navigator moves the user to another surface.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

type Options struct {
	API       transport.API
	Repo      Repository
	Bus       *events.Bus
	Navigator Navigator
	Logger    logging.Logger
	// AuthMode is models.AuthModeCookie or models.AuthModeBearer.
	AuthMode string
}

// Store holds the current session. It implements transport.SessionHooks.
type Store struct {
	api  transport.API
	repo Repository
	bus  *events.Bus
	nav  Navigator
	log  logging.Logger
	mode string

	mu       sync.RWMutex
	identity *models.Identity
	cred     *models.Credential
}

var _ transport.SessionHooks = (*Store)(nil)

func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Navigator == nil {
		opts.Navigator = noNavigator{}
	}
	if opts.AuthMode == "" {
		opts.AuthMode = models.AuthModeCookie
	}
	return &Store{
		api:  opts.API,
		repo: opts.Repo,
		bus:  opts.Bus,
		nav:  opts.Navigator,
		log:  opts.Logger.With("component", "session"),
		mode: opts.AuthMode,
	}
}

// Identity returns a copy of the current identity, nil when logged out.
func (s *Store) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Credential returns a copy of the current credential, nil when logged out.
func (s *Store) Credential() *models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.cred != nil
}

// Register creates an account. The email doubles as the username.
func (s *Store) Register(ctx context.Context, r models.Registration) (models.Outcome, error) {
	out, err := s.api.Register(ctx, transport.RegisterRequest{
		Username:    r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Gender:      r.Gender,
		BirthDate:   r.BirthDate,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Password:    r.Password,
	})
	if err != nil {
		return models.Outcome{}, common.WithFallback(err, MsgRegistrationFailed)
	}
	s.log.Info(ctx, "account registered", "email", r.Email)
	return out, nil
}

// Login authenticates and starts a session. On failure the current state is
// left as it was.
func (s *Store) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return common.WithFallback(err, MsgLoginFailed)
	}

	id := res.Identity
	cred := models.Credential{Mode: s.mode}
	if s.mode == models.AuthModeBearer {
		cred.AccessToken = res.Access
	}

	s.mu.Lock()
	s.identity = &id
	s.cred = &cred
	s.persist(ctx)
	s.mu.Unlock()

	s.log.Info(ctx, "session started", "email", id.Email)
	s.bus.Publish(ctx, events.Event{Kind: events.SessionStarted, Identity: &id})
	return nil
}

// Logout notifies the server and ends the session whatever the server says.
func (s *Store) Logout(ctx context.Context) {
	err := s.api.Logout(ctx)
	if err != nil {
		s.log.Warn(ctx, "logout request failed", "error", err)
		if common.KindOf(err) == common.KindAuthorizationExpired {
			return
		}
	}
	s.teardown(ctx, common.LoginPath)
}

// CheckAuthentication asks the server whether the session is still valid and
// ends it when it is not. Network failures and timeouts are returned without
// touching the session.
func (s *Store) CheckAuthentication(ctx context.Context) (bool, error) {
	ok, err := s.api.CheckAuthentication(ctx)
	if err != nil {
		if common.KindOf(err) == common.KindAuthorizationExpired {
			return false, nil
		}
		return false, err
	}
	if !ok {
		s.log.Info(ctx, "server reports session invalid")
		s.teardown(ctx, common.LoginPath)
		return false, nil
	}
	return true, nil
}

// UpdateProfileField changes one profile field and adopts the server's
// returned identity.
func (s *Store) UpdateProfileField(ctx context.Context, field, value string) error {
	if !models.IsProfileField(field) {
		return common.Errorf(common.KindValidation, "unknown profile field %q", field)
	}

	updated, err := s.api.UpdateProfile(ctx, map[string]any{field: value})
	if err != nil {
		return common.WithFallback(err, MsgProfileUpdateFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		// the session ended while the request was in flight
		return nil
	}
	s.identity = &updated
	s.persist(ctx)
	return nil
}

// DeleteAccount removes the account and ends the session. A failed request
// leaves the session in place.
func (s *Store) DeleteAccount(ctx context.Context) error {
	if err := s.api.DeleteAccount(ctx); err != nil {
		return common.WithFallback(err, MsgAccountDeletionFailed)
	}
	s.log.Info(ctx, "account deleted")
	s.teardown(ctx, common.LandingPath)
	return nil
}

func (s *Store) SendVerificationCode(ctx context.Context, email string, purpose models.CodePurpose) (models.Outcome, error) {
	out, err := s.api.SendCode(ctx, email, purpose)
	return out, common.WithFallback(err, common.MsgRequestFailed)
}

func (s *Store) VerifyCode(ctx context.Context, email, code string) (transport.VerifyResult, error) {
	res, err := s.api.VerifyCode(ctx, email, code)
	return res, common.WithFallback(err, common.MsgRequestFailed)
}

func (s *Store) ResetPassword(ctx context.Context, email, newPassword string) (models.Outcome, error) {
	out, err := s.api.ResetPassword(ctx, email, newPassword)
	return out, common.WithFallback(err, common.MsgRequestFailed)
}

// Restore loads a persisted session. It must run before any protected
// surface is shown.
func (s *Store) Restore(ctx context.Context) error {
	id, cred, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if id == nil || cred == nil {
		return nil
	}

	s.mu.Lock()
	s.identity = id
	s.cred = cred
	s.mu.Unlock()

	restored := *id
	s.log.Info(ctx, "session restored", "email", restored.Email)
	s.bus.Publish(ctx, events.Event{Kind: events.SessionRestored, Identity: &restored})
	return nil
}

// SessionRenewed records the access token issued by a refresh.
func (s *Store) SessionRenewed(ctx context.Context, access string) {
	if s.mode != models.AuthModeBearer {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return
	}
	s.cred.AccessToken = access
	s.persist(ctx)
}

// SessionExpired ends the session after a failed refresh.
func (s *Store) SessionExpired(ctx context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	s.log.Warn(ctx, "session expired")
	s.teardown(ctx, common.LoginPath)
}

// persist saves the current pair. Caller holds mu.
func (s *Store) persist(ctx context.Context) {
	if s.identity == nil || s.cred == nil {
		return
	}
	if err := s.repo.Save(ctx, *s.identity, *s.cred); err != nil {
		s.log.Error(ctx, "persist session", "error", err)
	}
}

func (s *Store) teardown(ctx context.Context, next string) {
	s.mu.Lock()
	s.identity = nil
	s.cred = nil
	err := s.repo.Clear(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Error(ctx, "clear persisted session", "error", err)
	}

	s.bus.Publish(ctx, events.Event{Kind: events.SessionEnded})
	s.nav.Navigate(ctx, next)
}

type noNavigator struct{}

func (noNavigator) Navigate(context.Context, string) {}
