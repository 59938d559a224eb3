// Package apitest provides an in-process fake of the NextShape API for tests.
// It keeps users, sessions and progress records in memory and can inject
// one-shot failures, delays and session expiry.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
)

const (
	prefix = "/api/"

	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// VerificationCode is the code every send-code call "emails".
	VerificationCode = "123456"
)

type user struct {
	identity models.Identity
	password string
}

type fault struct {
	status int
	body   string
}

// Server is a fake API. Use URL() as the client's base URL.
type Server struct {
	srv *httptest.Server

	mu      sync.Mutex
	users   map[string]*user
	access  map[string]string
	refresh map[string]string
	records map[string][]models.ProgressRecord
	codes   map[string]string
	nextID  int64
	seq     int
	calls   map[string]int
	bodies  map[string][]byte
	headers map[string]http.Header
	faults  map[string][]fault
	delays  map[string]time.Duration
	now     func() time.Time
}

// NewServer starts a fake API server; it is closed by t.Cleanup when t is
// non-nil.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		users:   map[string]*user{},
		access:  map[string]string{},
		refresh: map[string]string{},
		records: map[string][]models.ProgressRecord{},
		codes:   map[string]string{},
		calls:   map[string]int{},
		bodies:  map[string][]byte{},
		headers: map[string]http.Header{},
		faults:  map[string][]fault{},
		delays:  map[string]time.Duration{},
		now:     time.Now,
	}

	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r.PathPrefix(strings.TrimSuffix(prefix, "/")).Subrouter()
	api.HandleFunc("/register/", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login/", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout/", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/refresh-access/", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/check-authentication/", s.authed(s.handleCheck)).Methods(http.MethodGet)
	api.HandleFunc("/profile/", s.authed(s.handleProfile)).Methods(http.MethodPatch)
	api.HandleFunc("/delete-account/", s.authed(s.handleDeleteAccount)).Methods(http.MethodDelete)
	api.HandleFunc("/send-code-{purpose:registration|reset-password}/", s.handleSendCode).Methods(http.MethodPost)
	api.HandleFunc("/verify-code/", s.handleVerifyCode).Methods(http.MethodPost)
	api.HandleFunc("/reset-password/", s.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/calculate-calories/", s.authed(s.handleCalories)).Methods(http.MethodPost)
	api.HandleFunc("/calculate-imc/", s.authed(s.handleIMC)).Methods(http.MethodPost)
	api.HandleFunc("/progress-records/", s.authed(s.handleListRecords)).Methods(http.MethodGet)
	api.HandleFunc("/progress-records/{id:[0-9]+}/", s.authed(s.handlePatchRecord)).Methods(http.MethodPatch)
	api.HandleFunc("/progress-records/{id:[0-9]+}/", s.authed(s.handleDeleteRecord)).Methods(http.MethodDelete)

	s.srv = httptest.NewServer(r)
	if t != nil {
		t.Cleanup(s.Close)
	}
	return s
}

// URL is the API base URL, with a trailing slash.
func (s *Server) URL() string { return s.srv.URL + prefix }

func (s *Server) Close() { s.srv.Close() }

// SetClock overrides the server's notion of now.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers a user directly.
func (s *Server) AddUser(id models.Identity, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id.Email] = &user{identity: id, password: password}
}

// User returns the stored identity.
func (s *Server) User(email string) (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return models.Identity{}, false
	}
	return u.identity, true
}

// SeedRecords appends records for email, assigning ids when zero.
func (s *Server) SeedRecords(email string, recs ...models.ProgressRecord) []models.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range recs {
		if recs[i].ID == 0 {
			s.nextID++
			recs[i].ID = s.nextID
		} else if recs[i].ID > s.nextID {
			s.nextID = recs[i].ID
		}
	}
	s.records[email] = append(s.records[email], recs...)
	return recs
}

// Records returns a copy of the server-side records of email.
func (s *Server) Records(email string) []models.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProgressRecord(nil), s.records[email]...)
}

// ExpireAccess invalidates every access token; refresh tokens stay valid.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// RevokeSessions invalidates access and refresh tokens.
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
	s.refresh = map[string]string{}
}

// Fail makes the next request to path (relative, e.g. "login/") answer with
// status and body instead of reaching the handler. Faults queue up.
func (s *Server) Fail(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], fault{status: status, body: body})
}

// Delay holds every request to path for d before handling it.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastBody returns the raw body of the latest request to path.
func (s *Server) LastBody(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

// LastHeader returns the headers of the latest request to path.
func (s *Server) LastHeader(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[path]
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, prefix)

		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls[path]++
		s.bodies[path] = body
		s.headers[path] = r.Header.Clone()
		delay := s.delays[path]
		var f *fault
		if q := s.faults[path]; len(q) > 0 {
			f = &q[0]
			s.faults[path] = q[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if f != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed resolves the caller from the bearer header or the access cookie.
func (s *Server) authed(h func(w http.ResponseWriter, r *http.Request, email string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
			token = strings.TrimPrefix(v, "Bearer ")
		} else if c, err := r.Cookie(AccessCookie); err == nil {
			token = c.Value
		}

		s.mu.Lock()
		email, ok := s.access[token]
		if ok {
			_, ok = s.users[email]
		}
		s.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Authentication credentials were not provided."})
			return
		}
		h(w, r, email)
	}
}

// issue creates a token pair for email and sets both cookies. Caller holds mu.
func (s *Server) issue(w http.ResponseWriter, email string) string {
	s.seq++
	access := fmt.Sprintf("access-%d", s.seq)
	refresh := fmt.Sprintf("refresh-%d", s.seq)
	s.access[access] = email
	s.refresh[refresh] = email
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: "/", HttpOnly: true})
	return access
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{"success": true, "message": message, "data": data})
}

func failure(w http.ResponseWriter, status int, message string, errs any) {
	body := map[string]any{"success": false}
	if message != "" {
		body["message"] = message
	}
	if errs != nil {
		body["errors"] = errs
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
