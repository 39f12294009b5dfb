package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestStaticTokenMiddleware(t *testing.T) {
	h := StaticTokenMiddleware([]string{"old-token", " new-token ", ""})(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"current token", "Bearer new-token", http.StatusOK},
		{"previous token still accepted", "Bearer old-token", http.StatusOK},
		{"lowercase scheme", "bearer new-token", http.StatusOK},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic new-token", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/pin", nil, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestStaticTokenMiddlewareIgnoresSessionCookie(t *testing.T) {
	h := StaticTokenMiddleware([]string{"machine"})(okHandler)
	req := httptest.NewRequest(http.MethodPost, "/api/pin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "machine"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cookie-only request = %d, want 401", rec.Code)
	}
}

func TestStaticTokenMiddlewareEmptyListRejects(t *testing.T) {
	h := StaticTokenMiddleware(nil)(okHandler)
	if rec := doRequest(t, h, http.MethodPost, "/api/pin", nil, "Bearer "); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin@example.com", models.SuperAdminRoleName)
	official := env.user(t, "official@example.com", models.BarangayOfficialRoleName)
	plain := env.user(t, "plain@example.com", models.DefaultUserRoleName)
	direct := env.user(t, "direct@example.com")
	if err := env.users.SetUserGlobalPermissions(direct.ID, []string{permissions.RolesManage}); err != nil {
		t.Fatalf("SetUserGlobalPermissions: %v", err)
	}

	rolesOnly := env.auth.AuthMiddleware(RequirePermission(permissions.RolesManage)(okHandler))
	cctvOrAnalytics := env.auth.AuthMiddleware(RequireAnyPermission(permissions.CCTVView, permissions.AnalyticsView)(okHandler))

	tests := []struct {
		name    string
		handler http.Handler
		user    *models.User
		want    int
	}{
		{"super admin holds everything", rolesOnly, admin, http.StatusOK},
		{"official lacks roles.manage", rolesOnly, official, http.StatusForbidden},
		{"direct grant", rolesOnly, direct, http.StatusOK},
		{"any-of via role", cctvOrAnalytics, official, http.StatusOK},
		{"plain user", cctvOrAnalytics, plain, http.StatusForbidden},
		{"anonymous", rolesOnly, nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := ""
			if tt.user != nil {
				header = env.bearer(t, tt.user)
			}
			rec := doRequest(t, tt.handler, http.MethodGet, "/", nil, header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRejectsBannedUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "banned@example.com")
	header := env.bearer(t, u)
	env.db.Model(u).Update("banned", true)

	rec := doRequest(t, env.auth.AuthMiddleware(okHandler), http.MethodGet, "/", nil, header)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
