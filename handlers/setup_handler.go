package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/validation"
)

var errSetupCompleted = errors.New("setup already completed")

type SetupHandler struct {
	DB *gorm.DB
}

func NewSetupHandler(db *gorm.DB) *SetupHandler {
	return &SetupHandler{DB: db}
}

type FirstAdminPayload struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateFirstAdmin creates the initial super_admin account. It only works
// while the users table is empty.
func (h *SetupHandler) CreateFirstAdmin(w http.ResponseWriter, r *http.Request) {
	var count int64
	if err := h.DB.Model(&models.User{}).Count(&count).Error; err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Database error while checking for existing users.")
		return
	}
	if count > 0 {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Setup has already been completed: users exist.")
		return
	}

	var payload FirstAdminPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	var admin *models.User
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var innerCount int64
		if err := tx.Model(&models.User{}).Count(&innerCount).Error; err != nil {
			return fmt.Errorf("failed to count existing users in transaction: %w", err)
		}
		if innerCount > 0 {
			return errSetupCompleted
		}

		var superAdminRole models.Role
		if err := tx.Where("name = ?", models.SuperAdminRoleName).First(&superAdminRole).Error; err != nil {
			return fmt.Errorf("could not find the '%s' role, which should have been seeded: %w", models.SuperAdminRoleName, err)
		}

		admin = &models.User{Name: payload.Name, Email: payload.Email, GlobalPermissions: []string{}}
		if err := admin.SetPassword(payload.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := tx.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		if err := tx.Create(&models.UserRole{UserID: admin.ID, RoleID: superAdminRole.ID}).Error; err != nil {
			return fmt.Errorf("failed to assign super admin role to user: %w", err)
		}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errSetupCompleted) {
			WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Setup has already been completed.")
		} else {
			logging.Err(txErr).Msg("first admin setup failed")
			WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to create first admin user")
		}
		return
	}

	logging.Info().Uint("user_id", admin.ID).Str("email", admin.Email).Msg("created initial admin user")
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Initial admin user created successfully. Please log in."})
}
