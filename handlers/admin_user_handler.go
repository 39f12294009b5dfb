package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

type AdminUserHandler struct {
	UserRepo repository.UserRepository
	RoleRepo repository.RoleRepository // For validating role IDs during user creation/update
}

func NewAdminUserHandler(userRepo repository.UserRepository, roleRepo repository.RoleRepository) *AdminUserHandler {
	return &AdminUserHandler{UserRepo: userRepo, RoleRepo: roleRepo}
}

// --- DTOs for User Management ---

type UserCreatePayload struct {
	Name              string   `json:"name" validate:"required,max=255"`
	Email             string   `json:"email" validate:"required,email,max=255"`
	Password          string   `json:"password" validate:"required,min=8"`
	RoleIDs           []uint   `json:"role_ids"`
	GlobalPermissions []string `json:"global_permissions"`
}

type UserUpdatePayload struct {
	Name              *string   `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email             *string   `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Password          *string   `json:"password,omitempty" validate:"omitempty,min=8"`
	RoleIDs           *[]uint   `json:"role_ids,omitempty"` // Full set of role IDs to assign
	GlobalPermissions *[]string `json:"global_permissions,omitempty"`
}

type UserBanPayload struct {
	Banned bool `json:"banned"`
}

// UserResponseDTO is a simplified User model for API responses, excluding sensitive data.
type UserResponseDTO struct {
	ID                uint          `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	ReferralCode      *string       `json:"referral_code,omitempty"`
	Banned            bool          `json:"banned"`
	Roles             []models.Role `json:"roles"`
	GlobalPermissions []string      `json:"global_permissions"`
	CreatedAt         string        `json:"created_at"`
	UpdatedAt         string        `json:"updated_at"`
}

func toUserResponseDTO(user *models.User) UserResponseDTO {
	roles := []models.Role{}
	for _, r := range user.Roles {
		if r != nil {
			roles = append(roles, *r)
		}
	}
	perms := user.GlobalPermissions
	if perms == nil {
		perms = []string{}
	}
	return UserResponseDTO{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		ReferralCode:      user.ReferralCode,
		Banned:            user.Banned,
		Roles:             roles,
		GlobalPermissions: perms,
		CreatedAt:         user.CreatedAt.Format(http.TimeFormat),
		UpdatedAt:         user.UpdatedAt.Format(http.TimeFormat),
	}
}

func toUserListResponseDTO(users []models.User) []UserResponseDTO {
	dtos := make([]UserResponseDTO, len(users))
	for i := range users {
		dtos[i] = toUserResponseDTO(&users[i])
	}
	return dtos
}

// resolveRoles loads every role id. Super admin cannot be handed out here.
func (h *AdminUserHandler) resolveRoles(ids []uint) ([]*models.Role, *validation.RequestValidationError, error) {
	roles := make([]*models.Role, 0, len(ids))
	for _, id := range ids {
		role, err := h.RoleRepo.GetByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, validation.NewFieldError("role_ids", fmt.Sprintf("Role with ID %d not found", id)), nil
			}
			return nil, nil, err
		}
		if role.Name == models.SuperAdminRoleName {
			return nil, validation.NewFieldError("role_ids", "The super admin role cannot be manually assigned."), nil
		}
		roles = append(roles, role)
	}
	return roles, nil, nil
}

// loadTarget resolves {id} and refuses to touch a super admin unless the
// caller is one.
func (h *AdminUserHandler) loadTarget(w http.ResponseWriter, r *http.Request) *models.User {
	userID, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid user ID format")
		return nil
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "User not found")
		} else {
			logging.Err(err).Uint("user_id", userID).Msg("failed to retrieve user")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve user")
		}
		return nil
	}
	if user.HasRole(models.SuperAdminRoleName) && !currentUser(r).HasRole(models.SuperAdminRoleName) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Only a super admin can modify another super admin.")
		return nil
	}
	return user
}

// --- Handler Methods ---

// ListUsers godoc
// @Summary List all users
// @Tags admin-users
// @Success 200 {array} UserResponseDTO
// @Router /api/admin/users [get]
func (h *AdminUserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserRepo.ListAll()
	if err != nil {
		logging.Err(err).Msg("failed to list users")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve users")
		return
	}
	writeJSON(w, http.StatusOK, toUserListResponseDTO(users))
}

// GetUser godoc
// @Summary Get a single user by ID
// @Tags admin-users
// @Param id path int true "User ID"
// @Success 200 {object} UserResponseDTO
// @Router /api/admin/users/{id} [get]
func (h *AdminUserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid user ID format")
		return
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "User not found")
		} else {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve user")
		}
		return
	}
	writeJSON(w, http.StatusOK, toUserResponseDTO(user))
}

// CreateUser godoc
// @Summary Create a user directly, bypassing referral codes
// @Tags admin-users
// @Param user body UserCreatePayload true "User creation payload"
// @Success 201 {object} UserResponseDTO
// @Router /api/admin/users [post]
func (h *AdminUserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload UserCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if verr := checkPermissionKeys(payload.GlobalPermissions); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if _, err := h.UserRepo.GetByEmail(payload.Email); err == nil {
		writeValidationError(w, validation.NewFieldError("email", "The email has already been taken."))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}

	roles, verr, err := h.resolveRoles(payload.RoleIDs)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}
	if verr != nil {
		writeValidationError(w, verr)
		return
	}

	user := &models.User{
		Name:              payload.Name,
		Email:             payload.Email,
		GlobalPermissions: payload.GlobalPermissions,
		Roles:             roles,
	}
	if user.GlobalPermissions == nil {
		user.GlobalPermissions = []string{}
	}
	if err := user.SetPassword(payload.Password); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}
	if err := h.UserRepo.Create(user); err != nil {
		logging.Err(err).Str("email", payload.Email).Msg("failed to create user")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}

	created, err := h.UserRepo.GetByID(user.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve newly created user")
		return
	}
	logging.Info().Uint("user_id", created.ID).Uint("by_user", currentUser(r).ID).Msg("user created by admin")
	writeJSON(w, http.StatusCreated, toUserResponseDTO(created))
}

// UpdateUser godoc
// @Summary Update an existing user; role_ids replaces the full role set
// @Tags admin-users
// @Param id path int true "User ID"
// @Param user body UserUpdatePayload true "User update payload"
// @Success 200 {object} UserResponseDTO
// @Router /api/admin/users/{id} [put]
func (h *AdminUserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user := h.loadTarget(w, r)
	if user == nil {
		return
	}
	var payload UserUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if payload.GlobalPermissions != nil {
		if verr := checkPermissionKeys(*payload.GlobalPermissions); verr != nil {
			writeValidationError(w, verr)
			return
		}
	}

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if email != user.Email {
			if _, err := h.UserRepo.GetByEmail(email); err == nil {
				writeValidationError(w, validation.NewFieldError("email", "The email has already been taken."))
				return
			}
			user.Email = email
		}
	}
	if payload.Password != nil && *payload.Password != "" {
		if err := user.SetPassword(*payload.Password); err != nil {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to set new password")
			return
		}
	}
	if err := h.UserRepo.Update(user); err != nil {
		logging.Err(err).Uint("user_id", user.ID).Msg("failed to update user")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update user")
		return
	}

	if payload.GlobalPermissions != nil {
		if err := h.UserRepo.SetUserGlobalPermissions(user.ID, *payload.GlobalPermissions); err != nil {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update user permissions")
			return
		}
	}

	if payload.RoleIDs != nil {
		roles, verr, err := h.resolveRoles(*payload.RoleIDs)
		if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update user roles")
			return
		}
		if verr != nil {
			writeValidationError(w, verr)
			return
		}
		ids := make([]uint, 0, len(roles))
		for _, role := range roles {
			ids = append(ids, role.ID)
		}
		// a super admin keeps that role through role edits
		if user.HasRole(models.SuperAdminRoleName) {
			if admin, err := h.RoleRepo.GetByName(models.SuperAdminRoleName); err == nil {
				ids = append(ids, admin.ID)
			}
		}
		if err := h.UserRepo.ReplaceRoles(user.ID, ids); err != nil {
			logging.Err(err).Uint("user_id", user.ID).Msg("failed to replace user roles")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update user roles")
			return
		}
	}

	updated, err := h.UserRepo.GetByID(user.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve updated user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponseDTO(updated))
}

// SetBanned godoc
// @Summary Ban or unban a user
// @Tags admin-users
// @Param id path int true "User ID"
// @Param payload body UserBanPayload true "Ban state"
// @Success 200 {object} UserResponseDTO
// @Router /api/admin/users/{id}/ban [patch]
func (h *AdminUserHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	user := h.loadTarget(w, r)
	if user == nil {
		return
	}
	if user.ID == currentUser(r).ID {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot ban yourself.")
		return
	}
	var payload UserBanPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if err := h.UserRepo.SetBanned(user.ID, payload.Banned); err != nil {
		logging.Err(err).Uint("user_id", user.ID).Msg("failed to update ban state")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update user")
		return
	}
	logging.Info().Uint("user_id", user.ID).Bool("banned", payload.Banned).Msg("user ban state changed")
	user.Banned = payload.Banned
	writeJSON(w, http.StatusOK, toUserResponseDTO(user))
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags admin-users
// @Param id path int true "User ID"
// @Success 204 "No Content"
// @Router /api/admin/users/{id} [delete]
func (h *AdminUserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := h.loadTarget(w, r)
	if user == nil {
		return
	}
	if user.ID == currentUser(r).ID {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot delete your own account here.")
		return
	}
	if err := h.UserRepo.Delete(user.ID); err != nil {
		logging.Err(err).Uint("user_id", user.ID).Msg("failed to delete user")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
