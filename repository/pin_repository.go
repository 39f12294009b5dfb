package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormPinRepository struct {
	db *gorm.DB
}

func NewGormPinRepository(db *gorm.DB) PinRepository {
	return &GormPinRepository{db: db}
}

func (r *GormPinRepository) Create(pin *models.MapPin) error {
	return r.db.Create(pin).Error
}

func (r *GormPinRepository) GetByID(id uint) (*models.MapPin, error) {
	var pin models.MapPin
	if err := r.db.First(&pin, id).Error; err != nil {
		return nil, err
	}
	return &pin, nil
}

func (r *GormPinRepository) List(filter PinFilter) ([]models.MapPin, error) {
	q := r.db.Model(&models.MapPin{})
	if filter.UserMapID != nil {
		q = q.Where("user_map_id = ?", *filter.UserMapID)
	}
	if filter.CameraOnly {
		q = q.Where("is_camera = ?", true)
	}
	var pins []models.MapPin
	err := q.Order("id ASC").Find(&pins).Error
	return pins, err
}

// Delete removes exactly one row; a missing id reports gorm.ErrRecordNotFound.
func (r *GormPinRepository) Delete(id uint) error {
	res := r.db.Delete(&models.MapPin{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateThumbnailPath returns gorm.ErrRecordNotFound when the pin is gone.
func (r *GormPinRepository) UpdateThumbnailPath(id uint, thumbPath string) error {
	res := r.db.Model(&models.MapPin{}).Where("id = ?", id).Update("thumbnail_path", thumbPath)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
