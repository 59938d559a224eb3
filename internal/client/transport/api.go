// Package transport talks to the NextShape JSON API. It attaches the session
// credential, normalizes outbound bodies and performs the one-shot
// refresh-and-replay on authorization failures.
package transport

import (
	"context"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
)

// API is the set of server calls the stores depend on.
type API interface {
	Register(ctx context.Context, req RegisterRequest) (models.Outcome, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Logout(ctx context.Context) error
	CheckAuthentication(ctx context.Context) (bool, error)
	UpdateProfile(ctx context.Context, fields map[string]any) (models.Identity, error)
	DeleteAccount(ctx context.Context) error

	SendCode(ctx context.Context, email string, purpose models.CodePurpose) (models.Outcome, error)
	VerifyCode(ctx context.Context, email, code string) (VerifyResult, error)
	ResetPassword(ctx context.Context, email, newPassword string) (models.Outcome, error)

	CalculateCalories(ctx context.Context, req models.CaloriesRequest) (CaloriesResult, error)
	CalculateIMC(ctx context.Context, req models.MeasurementRequest) (models.ProgressRecord, error)

	ListRecords(ctx context.Context) ([]models.ProgressRecord, error)
	UpdateRecord(ctx context.Context, id int64, fields map[string]any) (models.ProgressRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// SessionHooks connects the transport to whoever owns the session. The
// transport reads the credential through it and reports renewals and expiry,
// but never stores session state itself.
type SessionHooks interface {
	// Credential returns the current credential, nil when logged out.
	Credential() *models.Credential
	// SessionRenewed is called after a refresh that returned a new access token.
	SessionRenewed(ctx context.Context, access string)
	// SessionExpired is called once per failed refresh.
	SessionExpired(ctx context.Context)
}

// RegisterRequest is the server's sign-up contract.
type RegisterRequest struct {
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birth_date"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type LoginResult struct {
	Identity models.Identity
	// Access is the bearer token, empty when the server relies on cookies only.
	Access string
}

type VerifyResult struct {
	models.Outcome
	Valid bool
}

type CaloriesResult struct {
	models.Outcome
	Values models.CaloriesResult
}
