package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

type AdminReferralCodeHandler struct {
	ReferralCodeRepo repository.ReferralCodeRepository
	UserRepo         repository.UserRepository
}

func NewAdminReferralCodeHandler(codeRepo repository.ReferralCodeRepository, userRepo repository.UserRepository) *AdminReferralCodeHandler {
	return &AdminReferralCodeHandler{ReferralCodeRepo: codeRepo, UserRepo: userRepo}
}

type ReferralCodeCreatePayload struct {
	Code        string  `json:"code" validate:"omitempty,min=6,max=20,alphanum"`
	Description string  `json:"description" validate:"required,max=255"`
	MaxUses     int     `json:"max_uses" validate:"min=0"`
	ExpiresAt   *string `json:"expires_at,omitempty"` // RFC3339, e.g. "2026-12-31T23:59:59Z"
}

type ReferralCodeUpdatePayload struct {
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=255"`
	MaxUses     *int    `json:"max_uses,omitempty" validate:"omitempty,min=0"`
	ExpiresAt   *string `json:"expires_at,omitempty"` // empty string clears the expiry
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ReferralCodeResponseDTO for API responses
type ReferralCodeResponseDTO struct {
	ID              uint    `json:"id"`
	Code            string  `json:"code"`
	Description     string  `json:"description"`
	ExpiresAt       *string `json:"expires_at,omitempty"`
	MaxUses         int     `json:"max_uses"`
	UsageCount      int     `json:"usage_count"`
	IsActive        bool    `json:"is_active"`
	Redeemable      bool    `json:"redeemable"`
	CreatedByUserID *uint   `json:"created_by_user_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toReferralCodeResponseDTO(rc *models.ReferralCode, now time.Time) ReferralCodeResponseDTO {
	var expiresAtStr *string
	if rc.ExpiresAt != nil {
		s := rc.ExpiresAt.Format(time.RFC3339)
		expiresAtStr = &s
	}
	return ReferralCodeResponseDTO{
		ID:              rc.ID,
		Code:            rc.Code,
		Description:     rc.Description,
		ExpiresAt:       expiresAtStr,
		MaxUses:         rc.MaxUses,
		UsageCount:      rc.UsageCount,
		IsActive:        rc.IsActive,
		Redeemable:      rc.IsValid(now),
		CreatedByUserID: rc.CreatedByUserID,
		CreatedAt:       rc.CreatedAt.Format(http.TimeFormat),
		UpdatedAt:       rc.UpdatedAt.Format(http.TimeFormat),
	}
}

// parseExpiry accepts RFC3339; an empty string means no expiry.
func parseExpiry(raw *string) (*time.Time, *validation.RequestValidationError) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, validation.NewFieldError("expires_at", "The expires_at field must be a valid RFC3339 date.")
	}
	return &t, nil
}

func (h *AdminReferralCodeHandler) loadCode(w http.ResponseWriter, r *http.Request) *models.ReferralCode {
	codeID, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid referral code ID format")
		return nil
	}
	code, err := h.ReferralCodeRepo.GetByID(codeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Referral code not found")
		} else {
			logging.Err(err).Uint("code_id", codeID).Msg("failed to retrieve referral code")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve referral code")
		}
		return nil
	}
	return code
}

// ListReferralCodes reconciles usage counts from registered users before
// listing, so codes that hit their limit show as inactive.
func (h *AdminReferralCodeHandler) ListReferralCodes(w http.ResponseWriter, r *http.Request) {
	counts, err := h.UserRepo.CountByReferralCode()
	if err != nil {
		logging.Err(err).Msg("failed to count referral redemptions")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve referral codes")
		return
	}
	if err := h.ReferralCodeRepo.SyncUsage(counts); err != nil {
		logging.Err(err).Msg("failed to sync referral usage")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve referral codes")
		return
	}
	codes, err := h.ReferralCodeRepo.ListAll()
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve referral codes")
		return
	}

	now := time.Now()
	dtos := make([]ReferralCodeResponseDTO, len(codes))
	for i := range codes {
		dtos[i] = toReferralCodeResponseDTO(&codes[i], now)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"referral_codes": dtos,
		"redemptions":    counts,
	})
}

func (h *AdminReferralCodeHandler) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	code := h.loadCode(w, r)
	if code == nil {
		return
	}
	users, err := h.UserRepo.ListByReferralCode(code.Code)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve referral code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"referral_code": toReferralCodeResponseDTO(code, time.Now()),
		"users":         toUserSummaryListDTO(users),
	})
}

func (h *AdminReferralCodeHandler) CreateReferralCode(w http.ResponseWriter, r *http.Request) {
	var payload ReferralCodeCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Code = strings.ToUpper(strings.TrimSpace(payload.Code))
	payload.Description = strings.TrimSpace(payload.Description)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	expiresAt, verr := parseExpiry(payload.ExpiresAt)
	if verr != nil {
		writeValidationError(w, verr)
		return
	}
	if payload.Code != "" {
		if _, err := h.ReferralCodeRepo.GetByCode(payload.Code); err == nil {
			writeValidationError(w, validation.NewFieldError("code", "The code has already been taken."))
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create referral code")
			return
		}
	}

	user := currentUser(r)
	code := &models.ReferralCode{
		Code:            payload.Code,
		Description:     payload.Description,
		IsActive:        true,
		MaxUses:         payload.MaxUses,
		ExpiresAt:       expiresAt,
		CreatedByUserID: &user.ID,
	}
	if err := h.ReferralCodeRepo.Create(code); err != nil {
		logging.Err(err).Msg("failed to create referral code")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create referral code")
		return
	}
	logging.Info().Str("code", code.Code).Uint("by_user", user.ID).Msg("referral code created")
	writeJSON(w, http.StatusCreated, toReferralCodeResponseDTO(code, time.Now()))
}

func (h *AdminReferralCodeHandler) UpdateReferralCode(w http.ResponseWriter, r *http.Request) {
	code := h.loadCode(w, r)
	if code == nil {
		return
	}
	var payload ReferralCodeUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if payload.ExpiresAt != nil {
		expiresAt, verr := parseExpiry(payload.ExpiresAt)
		if verr != nil {
			writeValidationError(w, verr)
			return
		}
		code.ExpiresAt = expiresAt
	}
	if payload.Description != nil {
		code.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.MaxUses != nil {
		code.MaxUses = *payload.MaxUses
	}
	if payload.IsActive != nil {
		code.IsActive = *payload.IsActive
	}

	if err := h.ReferralCodeRepo.Update(code); err != nil {
		logging.Err(err).Uint("code_id", code.ID).Msg("failed to update referral code")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update referral code")
		return
	}
	writeJSON(w, http.StatusOK, toReferralCodeResponseDTO(code, time.Now()))
}

// ToggleStatus flips is_active.
func (h *AdminReferralCodeHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	code := h.loadCode(w, r)
	if code == nil {
		return
	}
	code.IsActive = !code.IsActive
	if err := h.ReferralCodeRepo.Update(code); err != nil {
		logging.Err(err).Uint("code_id", code.ID).Msg("failed to toggle referral code")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update referral code")
		return
	}
	writeJSON(w, http.StatusOK, toReferralCodeResponseDTO(code, time.Now()))
}

func (h *AdminReferralCodeHandler) DeleteReferralCode(w http.ResponseWriter, r *http.Request) {
	code := h.loadCode(w, r)
	if code == nil {
		return
	}
	if err := h.ReferralCodeRepo.Delete(code.ID); err != nil {
		logging.Err(err).Uint("code_id", code.ID).Msg("failed to delete referral code")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete referral code")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
