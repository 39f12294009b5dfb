package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormUserMapRepository struct {
	db *gorm.DB
}

func NewGormUserMapRepository(db *gorm.DB) UserMapRepository {
	return &GormUserMapRepository{db: db}
}

func (r *GormUserMapRepository) Create(m *models.UserMap) error {
	return r.db.Create(m).Error
}

func (r *GormUserMapRepository) GetByID(id uint) (*models.UserMap, error) {
	var m models.UserMap
	err := r.db.Preload("Viewers.User").Preload("Areas").Preload("Pins").First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GormUserMapRepository) GetByAccessCode(code string) (*models.UserMap, error) {
	var m models.UserMap
	err := r.db.Preload("Viewers").Where("access_code = ?", code).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GormUserMapRepository) Exists(id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserMap{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListAccessible returns maps the user owns, was granted, or that are public.
func (r *GormUserMapRepository) ListAccessible(userID uint) ([]models.UserMap, error) {
	var maps []models.UserMap
	sub := r.db.Model(&models.UserMapAccess{}).Select("user_map_id").Where("user_id = ?", userID)
	err := r.db.Preload("Viewers").
		Where("owner_id = ?", userID).
		Or("is_public = ?", true).
		Or("id IN (?)", sub).
		Order("id ASC").
		Find(&maps).Error
	return maps, err
}

func (r *GormUserMapRepository) Update(m *models.UserMap) error {
	return r.db.Omit(clause.Associations).Save(m).Error
}

func (r *GormUserMapRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MapPin{}).Where("user_map_id = ?", id).Update("user_map_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserArea{}).Where("user_map_id = ?", id).Update("user_map_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_map_id = ?", id).Delete(&models.UserMapAccess{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.UserMap{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormUserMapRepository) SetAccess(mapID, userID uint, role string) error {
	access := models.UserMapAccess{UserMapID: mapID, UserID: userID, Role: role}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_map_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&access).Error
}

func (r *GormUserMapRepository) RemoveAccess(mapID, userID uint) error {
	return r.db.Where("user_map_id = ? AND user_id = ?", mapID, userID).Delete(&models.UserMapAccess{}).Error
}

func (r *GormUserMapRepository) CreateArea(area *models.UserArea) error {
	return r.db.Create(area).Error
}

func (r *GormUserMapRepository) ListAreas(mapID uint) ([]models.UserArea, error) {
	var areas []models.UserArea
	err := r.db.Where("user_map_id = ?", mapID).Order("id ASC").Find(&areas).Error
	return areas, err
}
