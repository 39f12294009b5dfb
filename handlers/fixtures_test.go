package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/testinfra"
)

type testEnv struct {
	db    *gorm.DB
	auth  *Authenticator
	users repository.UserRepository
	roles repository.RoleRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testinfra.NewTestDB(t)
	roles := repository.NewGormRoleRepository(db)
	if err := permissions.SyncDefaultRoles(roles); err != nil {
		t.Fatalf("SyncDefaultRoles: %v", err)
	}
	users := repository.NewGormUserRepository(db)
	return &testEnv{
		db:    db,
		auth:  NewAuthenticator(users, "test-secret", time.Hour),
		users: users,
		roles: roles,
	}
}

// user creates an account holding the named roles.
func (e *testEnv) user(t *testing.T, email string, roleNames ...string) *models.User {
	t.Helper()
	roles := make([]*models.Role, 0, len(roleNames))
	for _, name := range roleNames {
		role, err := e.roles.GetByName(name)
		if err != nil {
			t.Fatalf("GetByName(%s): %v", name, err)
		}
		roles = append(roles, role)
	}
	return testinfra.CreateUser(t, e.db, email, roles...)
}

func (e *testEnv) bearer(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := e.auth.IssueToken(u)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// validationErrors pulls the field map out of a 422 body.
func validationErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	decodeResponse(t, rec, &body)
	return body.Errors
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
