package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// CCTV is a camera feed entry managed from the monitoring page.
type CCTV struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	CameraName       string    `json:"camera_name" gorm:"not null"`
	Location         string    `json:"location" gorm:"not null"`
	StreamURL        string    `json:"stream_url" gorm:"not null"`
	OriginalStreamID *string   `json:"original_stream_id,omitempty"`
	Status           string    `json:"status" gorm:"not null;default:active"`
	IsCustom         bool      `json:"is_custom" gorm:"not null;default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (CCTV) TableName() string {
	return "cctvs"
}

// BeforeSave upgrades plain http stream URLs to https.
func (c *CCTV) BeforeSave(tx *gorm.DB) error {
	c.StreamURL = SecureStreamURL(c.StreamURL)
	return nil
}

// SecureStreamURL rewrites a leading http:// to https://.
func SecureStreamURL(raw string) string {
	if strings.HasPrefix(strings.ToLower(raw), "http://") {
		return "https://" + raw[len("http://"):]
	}
	return raw
}
