package handlers

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

// MapHandler manages user maps, their viewers and drawn areas.
type MapHandler struct {
	MapRepo  repository.UserMapRepository
	UserRepo repository.UserRepository
}

func NewMapHandler(mapRepo repository.UserMapRepository, userRepo repository.UserRepository) *MapHandler {
	return &MapHandler{MapRepo: mapRepo, UserRepo: userRepo}
}

type MapCreatePayload struct {
	Name        string                 `json:"name" validate:"required,max=255"`
	Description *string                `json:"description" validate:"omitempty,max=1000"`
	IsPublic    bool                   `json:"is_public"`
	Settings    map[string]interface{} `json:"settings"`
	DefaultView map[string]interface{} `json:"default_view"`
}

type JoinMapPayload struct {
	AccessCode string `json:"access_code" validate:"required,len=6,alphanum"`
}

type AddViewerPayload struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=viewer editor"`
}

type AreaCreatePayload struct {
	Name        string      `json:"name" validate:"required,max=255"`
	Color       string      `json:"color" validate:"omitempty,max=32"`
	Coordinates geo.Polygon `json:"coordinates" validate:"required,min=3"`
}

// loadMap resolves {id} and writes the 404/500 itself when it returns nil.
func (h *MapHandler) loadMap(w http.ResponseWriter, r *http.Request) *models.UserMap {
	id, err := uintParam(r, "id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid map ID format")
		return nil
	}
	m, err := h.MapRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Map not found")
		} else {
			logging.Err(err).Uint("map_id", id).Msg("failed to load map")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve map")
		}
		return nil
	}
	return m
}

func canViewMap(m *models.UserMap, user *models.User) bool {
	return m.UserHasAccess(user) || user.HasGlobalPermission(permissions.MapsView)
}

func canEditMap(m *models.UserMap, user *models.User) bool {
	return m.CanEdit(user) || user.HasGlobalPermission(permissions.MapsEdit)
}

func (h *MapHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	maps, err := h.MapRepo.ListAccessible(user.ID)
	if err != nil {
		logging.Err(err).Uint("user_id", user.ID).Msg("failed to list maps")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve maps")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"maps": maps})
}

func (h *MapHandler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var payload MapCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	user := currentUser(r)
	m := &models.UserMap{
		OwnerID:     user.ID,
		Name:        payload.Name,
		Description: payload.Description,
		IsPublic:    payload.IsPublic,
		Settings:    payload.Settings,
		DefaultView: payload.DefaultView,
	}
	if err := h.MapRepo.Create(m); err != nil {
		logging.Err(err).Msg("failed to create map")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create map")
		return
	}
	logging.Info().Uint("map_id", m.ID).Uint("owner_id", user.ID).Msg("map created")
	writeJSON(w, http.StatusCreated, map[string]interface{}{"map": m, "role": models.MapRoleOwner})
}

func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	m := h.loadMap(w, r)
	if m == nil {
		return
	}
	user := currentUser(r)
	if !canViewMap(m, user) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You do not have access to this map")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"map": m, "role": m.UserRole(user)})
}

func (h *MapHandler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	m := h.loadMap(w, r)
	if m == nil {
		return
	}
	user := currentUser(r)
	if m.OwnerID != user.ID && !user.HasGlobalPermission(permissions.MapsDelete) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Only the owner can delete this map")
		return
	}
	if err := h.MapRepo.Delete(m.ID); err != nil {
		logging.Err(err).Uint("map_id", m.ID).Msg("failed to delete map")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete map")
		return
	}
	logging.Info().Uint("map_id", m.ID).Msg("map deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Map deleted successfully"})
}

// JoinMap grants the caller viewer access through a map's access code.
func (h *MapHandler) JoinMap(w http.ResponseWriter, r *http.Request) {
	var payload JoinMapPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.AccessCode = strings.ToUpper(strings.TrimSpace(payload.AccessCode))
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	m, err := h.MapRepo.GetByAccessCode(payload.AccessCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "No map matches that access code")
		} else {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to look up map")
		}
		return
	}

	user := currentUser(r)
	role := m.UserRole(user)
	if role == "" {
		role = models.MapRoleViewer
		if err := h.MapRepo.SetAccess(m.ID, user.ID, role); err != nil {
			logging.Err(err).Uint("map_id", m.ID).Msg("failed to join map")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to join map")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"map": m, "role": role})
}

// AddViewer grants another user viewer or editor access.
func (h *MapHandler) AddViewer(w http.ResponseWriter, r *http.Request) {
	m := h.loadMap(w, r)
	if m == nil {
		return
	}
	if !canEditMap(m, currentUser(r)) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot manage viewers on this map")
		return
	}

	var payload AddViewerPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if payload.Role == "" {
		payload.Role = models.MapRoleViewer
	}

	viewer, err := h.UserRepo.GetByEmail(payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeValidationError(w, validation.NewFieldError("email", "No user is registered with that email."))
		} else {
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to look up user")
		}
		return
	}
	if viewer.ID == m.OwnerID {
		writeValidationError(w, validation.NewFieldError("email", "The owner already has full access."))
		return
	}
	if err := h.MapRepo.SetAccess(m.ID, viewer.ID, payload.Role); err != nil {
		logging.Err(err).Uint("map_id", m.ID).Msg("failed to add viewer")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to add viewer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Viewer added successfully",
		"user_id": viewer.ID,
		"role":    payload.Role,
	})
}

func (h *MapHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	m := h.loadMap(w, r)
	if m == nil {
		return
	}
	if !canViewMap(m, currentUser(r)) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You do not have access to this map")
		return
	}
	areas, err := h.MapRepo.ListAreas(m.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve areas")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"areas": areas})
}

func (h *MapHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	m := h.loadMap(w, r)
	if m == nil {
		return
	}
	user := currentUser(r)
	if !canEditMap(m, user) {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "You cannot draw on this map")
		return
	}

	var payload AreaCreatePayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	mapID := m.ID
	area := &models.UserArea{
		UserID:      user.ID,
		UserMapID:   &mapID,
		Name:        strings.TrimSpace(payload.Name),
		Color:       payload.Color,
		Coordinates: payload.Coordinates,
	}
	if err := h.MapRepo.CreateArea(area); err != nil {
		logging.Err(err).Uint("map_id", m.ID).Msg("failed to create area")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create area")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"area": area})
}
