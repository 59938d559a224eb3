// Package guard decides whether a surface may be entered with the locally
// held credential. It never calls the server.
package guard

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

type Route struct {
	Path      string
	Protected bool
}

// Routes is the client's surface table.
var Routes = []Route{
	{Path: common.LandingPath},
	{Path: "/calculatrice-imc"},
	{Path: "/calculatrice-calories", Protected: true},
	{Path: "/historique", Protected: true},
	{Path: "/evolution", Protected: true},
	{Path: "/contact"},
	{Path: "/inscription"},
	{Path: common.LoginPath},
}

// CredentialSource exposes the current credential, nil when logged out.
type CredentialSource interface {
	Credential() *models.Credential
}

// Decision is the outcome of Resolve. Redirect is set when Allowed is false.
type Decision struct {
	Allowed  bool
	Redirect string
}

type Guard struct {
	routes map[string]Route
	creds  CredentialSource
	now    func() time.Time
}

func New(routes []Route, creds CredentialSource) *Guard {
	m := make(map[string]Route, len(routes))
	for _, r := range routes {
		m[cleanPath(r.Path)] = r
	}
	return &Guard{routes: m, creds: creds, now: time.Now}
}

// SetClock overrides the clock used for token expiry.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// IsProtected reports whether target requires a session. Unknown paths are public.
func (g *Guard) IsProtected(target string) bool {
	return g.routes[cleanPath(pathOf(target))].Protected
}

// Resolve lets target through or sends the user to the login surface with
// target preserved in the redirect parameter.
func (g *Guard) Resolve(target string) Decision {
	if !g.IsProtected(target) || g.live() {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: LoginURL(target)}
}

// LoginURL is the login surface with target preserved as the return path. A
// target that already is the login surface is returned as is.
func LoginURL(target string) string {
	if target == "" {
		return common.LoginPath
	}
	if cleanPath(pathOf(target)) == common.LoginPath {
		return target
	}
	q := url.Values{common.RedirectQueryParam: {target}}
	return common.LoginPath + "?" + q.Encode()
}

// ReturnPath extracts the destination preserved in a login URL, falling back
// to the landing surface. Only local paths are returned.
func ReturnPath(loginURL string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return common.LandingPath
	}
	dst := u.Query().Get(common.RedirectQueryParam)
	if !strings.HasPrefix(dst, "/") || strings.HasPrefix(dst, "//") {
		return common.LandingPath
	}
	return dst
}

// live reports whether a credential is held and, for a JWT access token,
// whether it has not expired yet. The signature is not checked.
func (g *Guard) live() bool {
	if g.creds == nil {
		return false
	}
	cred := g.creds.Credential()
	if cred == nil {
		return false
	}
	if strings.Count(cred.AccessToken, ".") != 2 {
		return true
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(cred.AccessToken, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.After(g.now())
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}

func cleanPath(p string) string {
	if p == "" {
		return common.LandingPath
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
