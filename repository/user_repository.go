package repository

import (
	"strings"

	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.Create(user).Error
}

func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("Roles").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Preload("Roles").Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Omit("Roles").Save(user).Error
}

func (r *GormUserRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserMapAccess{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormUserRepository) ListAll() ([]models.User, error) {
	var users []models.User
	err := r.db.Preload("Roles").Order("id ASC").Find(&users).Error
	return users, err
}

func (r *GormUserRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.User{}).Count(&n).Error
	return n, err
}

func (r *GormUserRepository) AddRoleToUser(userID uint, roleID uint) error {
	userRole := models.UserRole{UserID: userID, RoleID: roleID}
	// avoid error if association already exists
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&userRole).Error
}

func (r *GormUserRepository) RemoveRoleFromUser(userID uint, roleID uint) error {
	return r.db.Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&models.UserRole{}).Error
}

func (r *GormUserRepository) ReplaceRoles(userID uint, roleIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormUserRepository) GetUserRoles(userID uint) ([]models.Role, error) {
	var user models.User
	if err := r.db.Preload("Roles").First(&user, userID).Error; err != nil {
		return nil, err
	}

	var roles []models.Role
	for _, rPtr := range user.Roles {
		if rPtr != nil {
			roles = append(roles, *rPtr)
		}
	}
	return roles, nil
}

func (r *GormUserRepository) SetUserGlobalPermissions(userID uint, permissions []string) error {
	return r.db.Model(&models.User{ID: userID}).Select("GlobalPermissions").Updates(&models.User{GlobalPermissions: permissions}).Error
}

func (r *GormUserRepository) SetBanned(userID uint, banned bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("banned", banned).Error
}

func (r *GormUserRepository) CountByReferralCode() (map[string]int, error) {
	var rows []struct {
		ReferralCode string
		Total        int
	}
	err := r.db.Model(&models.User{}).
		Select("referral_code, COUNT(*) AS total").
		Where("referral_code IS NOT NULL").
		Group("referral_code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ReferralCode] = row.Total
	}
	return out, nil
}

func (r *GormUserRepository) ListByReferralCode(code string) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("referral_code = ?", code).Order("created_at DESC").Find(&users).Error
	return users, err
}
