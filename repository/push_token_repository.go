package repository

import (
	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormPushTokenRepository struct {
	db *gorm.DB
}

func NewGormPushTokenRepository(db *gorm.DB) PushTokenRepository {
	return &GormPushTokenRepository{db: db}
}

func (r *GormPushTokenRepository) Create(token *models.PushToken) error {
	return r.db.Create(token).Error
}

func (r *GormPushTokenRepository) Exists(token string) (bool, error) {
	var n int64
	err := r.db.Model(&models.PushToken{}).Where("token = ?", token).Count(&n).Error
	return n > 0, err
}

func (r *GormPushTokenRepository) ListTokens() ([]string, error) {
	var tokens []string
	err := r.db.Model(&models.PushToken{}).Order("id ASC").Pluck("token", &tokens).Error
	return tokens, err
}
