// Package models defines the client-side data types exchanged with the
// NextShape API and held by the stores.
package models

import "fmt"

// Identity is the authenticated user's profile as returned by the server.
type Identity struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birth_date"`
	PhoneNumber string `json:"phone_number"`
}

// Profile fields accepted by a single-field update.
var ProfileFields = []string{"first_name", "last_name", "email", "gender", "birth_date", "phone_number"}

// IsProfileField reports whether name is an updatable profile field.
func IsProfileField(name string) bool {
	for _, f := range ProfileFields {
		if f == name {
			return true
		}
	}
	return false
}

func (i Identity) String() string {
	return fmt.Sprintf("%s %s <%s>", i.FirstName, i.LastName, i.Email)
}

// Auth modes.
const (
	AuthModeCookie = "cookie"
	AuthModeBearer = "bearer"
)

// Credential proves an authenticated session. In cookie mode AccessToken may
// be empty: the cookie jar carries the session and the credential is a marker.
type Credential struct {
	Mode        string `json:"mode"`
	AccessToken string `json:"access_token,omitempty"`
}

// Registration is the client-side sign-up form.
type Registration struct {
	FirstName   string
	LastName    string
	Email       string
	Gender      string
	BirthDate   string
	PhoneNumber string
	Password    string
}

// CodePurpose selects the verification-code flow.
type CodePurpose string

const (
	CodePurposeRegistration  CodePurpose = "registration"
	CodePurposeResetPassword CodePurpose = "reset-password"
)

func (p CodePurpose) Valid() bool {
	return p == CodePurposeRegistration || p == CodePurposeResetPassword
}
