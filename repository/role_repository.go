package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRoleRepository struct {
	db *gorm.DB
}

func NewGormRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) Create(role *models.Role) error {
	return r.db.Create(role).Error
}

func (r *GormRoleRepository) GetByID(id uint) (*models.Role, error) {
	var role models.Role
	if err := r.db.First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) GetByName(name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) ListAll() ([]models.Role, error) {
	var roles []models.Role
	err := r.db.Order("id ASC").Find(&roles).Error
	return roles, err
}

func (r *GormRoleRepository) Update(role *models.Role) error {
	return r.db.Omit("Users").Save(role).Error
}

func (r *GormRoleRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// drop assignments of this role before the role itself
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, id).Error
	})
}

func (r *GormRoleRepository) SetRoleGlobalPermissions(roleID uint, permissions []string) error {
	// struct update so the json serializer runs
	return r.db.Model(&models.Role{ID: roleID}).Select("GlobalPermissions").Updates(&models.Role{GlobalPermissions: permissions}).Error
}

func (r *GormRoleRepository) FindUsersByRoleID(roleID uint) ([]models.User, error) {
	var role models.Role

	err := r.db.Preload("Users").First(&role, roleID).Error
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(role.Users))
	for _, userPtr := range role.Users {
		if userPtr != nil {
			users = append(users, *userPtr)
		}
	}
	return users, nil
}

func (r *GormRoleRepository) AddUserToRole(userID, roleID uint) error {
	userRole := models.UserRole{
		UserID: userID,
		RoleID: roleID,
	}

	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&userRole).Error
}

func (r *GormRoleRepository) RemoveUserFromRole(userID, roleID uint) error {
	return r.db.Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&models.UserRole{}).Error
}
