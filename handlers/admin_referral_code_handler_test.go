package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/repository"
)

func newReferralRouter(env *testEnv) http.Handler {
	h := NewAdminReferralCodeHandler(repository.NewGormReferralCodeRepository(env.db), env.users)
	r := chi.NewRouter()
	r.Use(env.auth.AuthMiddleware)
	r.Use(RequirePermission(permissions.ReferralCodesManage))
	r.Get("/", h.ListReferralCodes)
	r.Post("/", h.CreateReferralCode)
	r.Get("/{id}", h.GetReferralCode)
	r.Patch("/{id}/toggle-status", h.ToggleStatus)
	r.Delete("/{id}", h.DeleteReferralCode)
	return r
}

func TestListReferralCodesSyncsUsage(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin@example.com", models.SuperAdminRoleName)
	auth := env.bearer(t, admin)

	code := &models.ReferralCode{Code: "BRGYFULL01", Description: "two seats", IsActive: true, MaxUses: 2}
	env.db.Create(code)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		u := env.user(t, email)
		env.db.Model(u).Update("referral_code", code.Code)
	}

	router := newReferralRouter(env)
	rec := doRequest(t, router, http.MethodGet, "/", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ReferralCodes []ReferralCodeResponseDTO `json:"referral_codes"`
		Redemptions   map[string]int            `json:"redemptions"`
	}
	decodeResponse(t, rec, &body)
	if len(body.ReferralCodes) != 1 {
		t.Fatalf("codes = %+v", body.ReferralCodes)
	}
	got := body.ReferralCodes[0]
	if got.UsageCount != 2 || got.IsActive || got.Redeemable {
		t.Errorf("synced code = %+v, want usage 2 and inactive", got)
	}
	if body.Redemptions[code.Code] != 2 {
		t.Errorf("redemptions = %v", body.Redemptions)
	}

	rec = doRequest(t, router, http.MethodGet, "/"+itoa(code.ID), nil, auth)
	var detail struct {
		Users []UserSummaryDTO `json:"users"`
	}
	decodeResponse(t, rec, &detail)
	if len(detail.Users) != 2 {
		t.Errorf("detail users = %+v", detail.Users)
	}
}

func TestCreateAndToggleReferralCode(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin@example.com", models.SuperAdminRoleName)
	auth := env.bearer(t, admin)
	router := newReferralRouter(env)

	rec := doRequest(t, router, http.MethodPost, "/", map[string]interface{}{"description": "generated"}, auth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d (%s)", rec.Code, rec.Body.String())
	}
	var generated ReferralCodeResponseDTO
	decodeResponse(t, rec, &generated)
	if len(generated.Code) != len(models.ReferralCodePrefix)+6 || !generated.Redeemable {
		t.Errorf("generated = %+v", generated)
	}
	if generated.CreatedByUserID == nil || *generated.CreatedByUserID != admin.ID {
		t.Errorf("created_by = %v, want %d", generated.CreatedByUserID, admin.ID)
	}

	rec = doRequest(t, router, http.MethodPost, "/", map[string]interface{}{"code": "custom01", "description": "custom"}, auth)
	var custom ReferralCodeResponseDTO
	decodeResponse(t, rec, &custom)
	if custom.Code != "CUSTOM01" {
		t.Errorf("custom code = %q, want upper-cased", custom.Code)
	}

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"duplicate", map[string]interface{}{"code": "CUSTOM01", "description": "again"}, "code"},
		{"too short", map[string]interface{}{"code": "abc", "description": "x"}, "code"},
		{"no description", map[string]interface{}{}, "description"},
		{"bad expiry", map[string]interface{}{"description": "x", "expires_at": "tomorrow"}, "expires_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/", tt.body, auth)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
			}
			if _, ok := validationErrors(t, rec)[tt.field]; !ok {
				t.Errorf("missing %s error", tt.field)
			}
		})
	}

	rec = doRequest(t, router, http.MethodPatch, "/"+itoa(custom.ID)+"/toggle-status", nil, auth)
	var toggled ReferralCodeResponseDTO
	decodeResponse(t, rec, &toggled)
	if toggled.IsActive {
		t.Error("toggle left code active")
	}

	if rec := doRequest(t, router, http.MethodDelete, "/"+itoa(custom.ID), nil, auth); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/"+itoa(custom.ID), nil, auth); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}

	plain := env.user(t, "plain@example.com", models.DefaultUserRoleName)
	if rec := doRequest(t, router, http.MethodGet, "/", nil, env.bearer(t, plain)); rec.Code != http.StatusForbidden {
		t.Errorf("plain user list = %d, want 403", rec.Code)
	}
}
