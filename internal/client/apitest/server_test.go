package apitest

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
)

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServer_LoginAndFaults(t *testing.T) {
	s := NewServer(t)
	s.AddUser(models.Identity{Email: "ada@example.com", FirstName: "Ada"}, "pw")

	resp := post(t, s.URL()+"login/", `{"email":"ada@example.com","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, s.URL()+"login/", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Cookies(), 2)

	s.Fail("login/", http.StatusServiceUnavailable, `{"message":"maintenance"}`)
	resp = post(t, s.URL()+"login/", `{"email":"ada@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	assert.Equal(t, 3, s.Calls("login/"))
	assert.JSONEq(t, `{"email":"ada@example.com","password":"pw"}`, string(s.LastBody("login/")))
}

func TestServer_ProtectedRequiresToken(t *testing.T) {
	s := NewServer(t)

	resp, err := http.Get(s.URL() + "check-authentication/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_SeedRecordsAssignsIDs(t *testing.T) {
	s := NewServer(t)
	recs := s.SeedRecords("ada@example.com", models.ProgressRecord{Date: "2024-01-01"}, models.ProgressRecord{ID: 10})

	assert.EqualValues(t, 1, recs[0].ID)
	assert.EqualValues(t, 10, recs[1].ID)
	more := s.SeedRecords("ada@example.com", models.ProgressRecord{})
	assert.EqualValues(t, 11, more[0].ID)
	assert.Len(t, s.Records("ada@example.com"), 3)
}
