package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormCCTVRepository struct {
	db *gorm.DB
}

func NewGormCCTVRepository(db *gorm.DB) CCTVRepository {
	return &GormCCTVRepository{db: db}
}

func (r *GormCCTVRepository) Create(c *models.CCTV) error {
	return r.db.Create(c).Error
}

func (r *GormCCTVRepository) GetByID(id uint) (*models.CCTV, error) {
	var c models.CCTV
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCCTVRepository) ListAll() ([]models.CCTV, error) {
	var list []models.CCTV
	err := r.db.Order("id ASC").Find(&list).Error
	return list, err
}

func (r *GormCCTVRepository) Delete(id uint) error {
	res := r.db.Delete(&models.CCTV{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
