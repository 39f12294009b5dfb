package permissions

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
)

// DefaultRole is a role seeded on first start.
type DefaultRole struct {
	Name        string
	Permissions []string
}

var officialPermissions = []string{
	AnalyticsView, MapsView, CCTVView, NotificationsView,
	PostsCreate, CCTVCreate, MapsCreate,
	PostsEdit, CCTVEdit, MapsEdit,
	PostsDelete, CCTVDelete, MapsDelete,
}

// DefaultRoles lists the seeded roles. super_admin is not listed; it always
// receives every defined permission.
var DefaultRoles = []DefaultRole{
	{Name: models.BarangayOfficialRoleName, Permissions: officialPermissions},
	{Name: models.AnimalPoundRoleName, Permissions: []string{AnalyticsView, MapsView, NotificationsView}},
	{Name: models.DefaultUserRoleName, Permissions: []string{}},
}

// SyncDefaultRoles creates missing seeded roles and keeps super_admin in step
// with the permission registry. Existing non-admin roles are left alone so
// edits made through the admin API survive restarts. Safe to run on every start.
func SyncDefaultRoles(roleRepo repository.RoleRepository) error {
	if err := syncSuperAdminRole(roleRepo); err != nil {
		return err
	}

	for _, def := range DefaultRoles {
		_, err := roleRepo.GetByName(def.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query for '%s' role: %w", def.Name, err)
		}
		perms := append([]string(nil), def.Permissions...)
		sort.Strings(perms)
		if err := roleRepo.Create(&models.Role{Name: def.Name, GlobalPermissions: perms}); err != nil {
			return fmt.Errorf("failed to create '%s' role: %w", def.Name, err)
		}
		logging.Info().Str("role", def.Name).Int("permissions", len(perms)).Msg("seeded role")
	}
	return nil
}

func syncSuperAdminRole(roleRepo repository.RoleRepository) error {
	allPerms := GetAllPermissionKeys()
	sort.Strings(allPerms)

	role, err := roleRepo.GetByName(models.SuperAdminRoleName)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to query for '%s' role: %w", models.SuperAdminRoleName, err)
		}
		if err := roleRepo.Create(&models.Role{Name: models.SuperAdminRoleName, GlobalPermissions: allPerms}); err != nil {
			return fmt.Errorf("failed to create '%s' role: %w", models.SuperAdminRoleName, err)
		}
		logging.Info().Str("role", models.SuperAdminRoleName).Msg("seeded role with all permissions")
		return nil
	}

	current := append([]string(nil), role.GlobalPermissions...)
	sort.Strings(current)
	if reflect.DeepEqual(current, allPerms) {
		logging.Debug().Str("role", models.SuperAdminRoleName).Msg("role is up to date")
		return nil
	}

	if err := roleRepo.SetRoleGlobalPermissions(role.ID, allPerms); err != nil {
		return fmt.Errorf("failed to update '%s' role permissions: %w", models.SuperAdminRoleName, err)
	}
	logging.Info().Str("role", models.SuperAdminRoleName).Msg("role permissions updated")
	return nil
}
