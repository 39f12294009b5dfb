package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

type AdminRoleHandler struct {
	RoleRepo repository.RoleRepository
	UserRepo repository.UserRepository
}

func NewAdminRoleHandler(roleRepo repository.RoleRepository, userRepo repository.UserRepository) *AdminRoleHandler {
	return &AdminRoleHandler{RoleRepo: roleRepo, UserRepo: userRepo}
}

// --- DTOs for Role Management ---

type RoleCreatePayload struct {
	Name              string   `json:"name" validate:"required,max=64"`
	GlobalPermissions []string `json:"global_permissions"`
}

type RoleUpdatePayload struct {
	Name              *string   `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	GlobalPermissions *[]string `json:"global_permissions,omitempty"`
}

// RoleResponseDTO is a simplified Role model for API responses.
type RoleResponseDTO struct {
	ID                uint             `json:"id"`
	Name              string           `json:"name"`
	GlobalPermissions []string         `json:"global_permissions"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"updated_at"`
	Users             []UserSummaryDTO `json:"users,omitempty"`
}

// UserSummaryDTO is a very minimal user representation for embedding in other responses.
type UserSummaryDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserSummaryDTO(user models.User) UserSummaryDTO {
	return UserSummaryDTO{ID: user.ID, Name: user.Name, Email: user.Email}
}

func toUserSummaryListDTO(users []models.User) []UserSummaryDTO {
	dtos := make([]UserSummaryDTO, len(users))
	for i, user := range users {
		dtos[i] = toUserSummaryDTO(user)
	}
	return dtos
}

func toRoleResponseDTO(role *models.Role) RoleResponseDTO {
	perms := role.GlobalPermissions
	if perms == nil {
		perms = []string{}
	}
	return RoleResponseDTO{
		ID:                role.ID,
		Name:              role.Name,
		GlobalPermissions: perms,
		CreatedAt:         role.CreatedAt.Format(http.TimeFormat),
		UpdatedAt:         role.UpdatedAt.Format(http.TimeFormat),
	}
}

func toRoleListResponseDTO(roles []models.Role) []RoleResponseDTO {
	dtos := make([]RoleResponseDTO, len(roles))
	for i := range roles {
		dtos[i] = toRoleResponseDTO(&roles[i])
	}
	return dtos
}

// checkPermissionKeys rejects unknown keys as a 422 on global_permissions.
func checkPermissionKeys(keys []string) *validation.RequestValidationError {
	invalid := permissions.InvalidKeys(keys)
	if len(invalid) == 0 {
		return nil
	}
	return validation.NewFieldError("global_permissions",
		fmt.Sprintf("Invalid permission keys: %s", strings.Join(invalid, ", ")))
}

// loadRole resolves {roleID}, writing the error response when it returns nil.
func (h *AdminRoleHandler) loadRole(w http.ResponseWriter, r *http.Request) *models.Role {
	roleID, err := uintParam(r, "roleID")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid role ID format")
		return nil
	}
	role, err := h.RoleRepo.GetByID(roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Role not found")
		} else {
			logging.Err(err).Uint("role_id", roleID).Msg("failed to retrieve role")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve role")
		}
		return nil
	}
	return role
}

// --- Handler Methods ---

// ListRoles godoc
// @Summary List all roles
// @Tags admin-roles
// @Success 200 {array} RoleResponseDTO
// @Router /api/admin/roles [get]
func (h *AdminRoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RoleRepo.ListAll()
	if err != nil {
		logging.Err(err).Msg("failed to list roles")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve roles")
		return
	}
	writeJSON(w, http.StatusOK, toRoleListResponseDTO(roles))
}

// GetRole godoc
// @Summary Get a single role by ID, including its users
// @Tags admin-roles
// @Param roleID path int true "Role ID"
// @Success 200 {object} RoleResponseDTO
// @Router /api/admin/roles/{roleID} [get]
func (h *AdminRoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	users, err := h.RoleRepo.FindUsersByRoleID(role.ID)
	if err != nil {
		logging.Err(err).Uint("role_id", role.ID).Msg("failed to retrieve role users")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve role")
		return
	}
	dto := toRoleResponseDTO(role)
	dto.Users = toUserSummaryListDTO(users)
	writeJSON(w, http.StatusOK, dto)
}

// CreateRole godoc
// @Summary Create a new role
// @Tags admin-roles
// @Param role body RoleCreatePayload true "Role creation payload"
// @Success 201 {object} RoleResponseDTO
// @Router /api/admin/roles [post]
func (h *AdminRoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var payload RoleCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	// the super admin name is reserved for the seeded role
	if payload.Name == models.SuperAdminRoleName {
		writeValidationError(w, validation.NewFieldError("name", fmt.Sprintf("Role name '%s' is reserved.", models.SuperAdminRoleName)))
		return
	}
	if verr := checkPermissionKeys(payload.GlobalPermissions); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if _, err := h.RoleRepo.GetByName(payload.Name); err == nil {
		writeValidationError(w, validation.NewFieldError("name", "The name has already been taken."))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create role")
		return
	}

	role := &models.Role{Name: payload.Name, GlobalPermissions: payload.GlobalPermissions}
	if role.GlobalPermissions == nil {
		role.GlobalPermissions = []string{}
	}
	if err := h.RoleRepo.Create(role); err != nil {
		logging.Err(err).Str("role", payload.Name).Msg("failed to create role")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create role")
		return
	}
	logging.Info().Uint("role_id", role.ID).Str("role", role.Name).Msg("role created")
	writeJSON(w, http.StatusCreated, toRoleResponseDTO(role))
}

// UpdateRole godoc
// @Summary Update an existing role. The super admin role cannot be modified.
// @Tags admin-roles
// @Param roleID path int true "Role ID"
// @Param role body RoleUpdatePayload true "Role update payload"
// @Success 200 {object} RoleResponseDTO
// @Failure 403 {object} APIErrorResponse
// @Router /api/admin/roles/{roleID} [put]
func (h *AdminRoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	if role.Name == models.SuperAdminRoleName {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "The super admin role cannot be modified.")
		return
	}

	var payload RoleUpdatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if payload.Name != nil {
		trimmed := strings.TrimSpace(*payload.Name)
		payload.Name = &trimmed
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if payload.Name != nil {
		if *payload.Name == models.SuperAdminRoleName {
			writeValidationError(w, validation.NewFieldError("name", fmt.Sprintf("Role name '%s' is reserved.", models.SuperAdminRoleName)))
			return
		}
		role.Name = *payload.Name
	}
	if payload.GlobalPermissions != nil {
		if verr := checkPermissionKeys(*payload.GlobalPermissions); verr != nil {
			writeValidationError(w, verr)
			return
		}
		role.GlobalPermissions = *payload.GlobalPermissions
	}

	if err := h.RoleRepo.Update(role); err != nil {
		logging.Err(err).Uint("role_id", role.ID).Msg("failed to update role")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponseDTO(role))
}

// DeleteRole godoc
// @Summary Delete a role and its assignments. The super admin role cannot be deleted.
// @Tags admin-roles
// @Param roleID path int true "Role ID"
// @Success 204 "No Content"
// @Router /api/admin/roles/{roleID} [delete]
func (h *AdminRoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	if role.Name == models.SuperAdminRoleName {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "The super admin role cannot be deleted.")
		return
	}
	if err := h.RoleRepo.Delete(role.ID); err != nil {
		logging.Err(err).Uint("role_id", role.ID).Msg("failed to delete role")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete role")
		return
	}
	logging.Info().Uint("role_id", role.ID).Str("role", role.Name).Msg("role deleted")
	w.WriteHeader(http.StatusNoContent)
}

// --- User-Role Association Handlers ---

func (h *AdminRoleHandler) GetRoleUsers(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	users, err := h.RoleRepo.FindUsersByRoleID(role.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve users for role")
		return
	}
	writeJSON(w, http.StatusOK, toUserSummaryListDTO(users))
}

type AddUserToRolePayload struct {
	UserID uint `json:"user_id" validate:"required"`
}

// AddUserToRole assigns a user to a role. Super admin is only granted
// through first-admin setup.
func (h *AdminRoleHandler) AddUserToRole(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	var payload AddUserToRolePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if role.Name == models.SuperAdminRoleName {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "The super admin role cannot be manually assigned.")
		return
	}

	if _, err := h.UserRepo.GetByID(payload.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeValidationError(w, validation.NewFieldError("user_id", "The selected user does not exist."))
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to add user to role")
		return
	}
	if err := h.RoleRepo.AddUserToRole(payload.UserID, role.ID); err != nil {
		logging.Err(err).Uint("role_id", role.ID).Uint("user_id", payload.UserID).Msg("failed to add user to role")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to add user to role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminRoleHandler) RemoveUserFromRole(w http.ResponseWriter, r *http.Request) {
	role := h.loadRole(w, r)
	if role == nil {
		return
	}
	userID, err := uintParam(r, "userID")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid user ID format")
		return
	}
	if role.Name == models.SuperAdminRoleName {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Users cannot be removed from the super admin role.")
		return
	}
	if err := h.RoleRepo.RemoveUserFromRole(userID, role.ID); err != nil {
		logging.Err(err).Uint("role_id", role.ID).Uint("user_id", userID).Msg("failed to remove user from role")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to remove user from role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
