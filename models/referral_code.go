package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ReferralCodePrefix       = "BRGY"
	referralCodeRandomLength = 6
)

// ReferralCode gates registration. MaxUses 0 means unlimited.
type ReferralCode struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Code            string     `json:"code" gorm:"uniqueIndex;size:20;not null"`
	Description     string     `json:"description" gorm:"size:255;not null"`
	IsActive        bool       `json:"is_active" gorm:"not null;default:true"`
	MaxUses         int        `json:"max_uses" gorm:"not null;default:0"`
	UsageCount      int        `json:"usage_count" gorm:"not null;default:0"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" gorm:"index"`
	CreatedByUserID *uint      `json:"created_by_user_id,omitempty"`
	CreatedByUser   *User      `json:"-" gorm:"foreignKey:CreatedByUserID"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// GenerateReferralCode returns a code like BRGY7K2QXA.
func GenerateReferralCode() (string, error) {
	suffix, err := GenerateCode(referralCodeRandomLength)
	if err != nil {
		return "", err
	}
	return ReferralCodePrefix + suffix, nil
}

// BeforeCreate generates a code if not provided.
func (rc *ReferralCode) BeforeCreate(tx *gorm.DB) error {
	if rc.Code == "" {
		code, err := GenerateReferralCode()
		if err != nil {
			return err
		}
		rc.Code = code
	}
	return nil
}

// IsValid checks if the code can still be redeemed at now.
func (rc *ReferralCode) IsValid(now time.Time) bool {
	if !rc.IsActive {
		return false
	}
	if rc.ExpiresAt != nil && !now.Before(*rc.ExpiresAt) {
		return false
	}
	if rc.MaxUses > 0 && rc.UsageCount >= rc.MaxUses {
		return false
	}
	return true
}

// RecordUse counts one redemption and deactivates the code once the limit is hit.
func (rc *ReferralCode) RecordUse() {
	rc.UsageCount++
	if rc.MaxUses > 0 && rc.UsageCount >= rc.MaxUses {
		rc.IsActive = false
	}
}
