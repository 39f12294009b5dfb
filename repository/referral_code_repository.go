package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormReferralCodeRepository struct {
	db *gorm.DB
}

func NewGormReferralCodeRepository(db *gorm.DB) ReferralCodeRepository {
	return &GormReferralCodeRepository{db: db}
}

func (r *GormReferralCodeRepository) Create(code *models.ReferralCode) error {
	return r.db.Create(code).Error
}

func (r *GormReferralCodeRepository) GetByCode(code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.Where("code = ?", code).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *GormReferralCodeRepository) GetByID(id uint) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	if err := r.db.First(&rc, id).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *GormReferralCodeRepository) Update(code *models.ReferralCode) error {
	return r.db.Omit("CreatedByUser").Save(code).Error
}

func (r *GormReferralCodeRepository) ListAll() ([]models.ReferralCode, error) {
	var codes []models.ReferralCode
	err := r.db.Order("created_at DESC").Find(&codes).Error
	return codes, err
}

func (r *GormReferralCodeRepository) Delete(id uint) error {
	res := r.db.Delete(&models.ReferralCode{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormReferralCodeRepository) SyncUsage(counts map[string]int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var codes []models.ReferralCode
		if err := tx.Find(&codes).Error; err != nil {
			return err
		}
		for _, rc := range codes {
			used := counts[rc.Code]
			active := rc.IsActive
			if rc.MaxUses > 0 && used >= rc.MaxUses {
				active = false
			}
			if used == rc.UsageCount && active == rc.IsActive {
				continue
			}
			err := tx.Model(&models.ReferralCode{}).Where("id = ?", rc.ID).
				Updates(map[string]interface{}{"usage_count": used, "is_active": active}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
