package models

import (
	"crypto/rand"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/geo"
)

const (
	MapRoleOwner  = "owner"
	MapRoleEditor = "editor"
	MapRoleViewer = "viewer"

	accessCodeLength   = 6
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// UserMap is a named collection of pins and areas shared through an access code.
type UserMap struct {
	ID          uint                   `json:"id" gorm:"primaryKey"`
	OwnerID     uint                   `json:"owner_id" gorm:"not null;index"`
	Owner       *User                  `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Name        string                 `json:"name" gorm:"not null"`
	Description *string                `json:"description,omitempty"`
	AccessCode  string                 `json:"access_code" gorm:"uniqueIndex;size:6;not null"`
	Settings    map[string]interface{} `json:"settings,omitempty" gorm:"serializer:json"`
	DefaultView map[string]interface{} `json:"default_view,omitempty" gorm:"serializer:json"`
	IsPublic    bool                   `json:"is_public" gorm:"not null;default:false"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`

	Pins    []MapPin        `json:"pins,omitempty" gorm:"foreignKey:UserMapID;constraint:OnDelete:SET NULL"`
	Areas   []UserArea      `json:"areas,omitempty" gorm:"foreignKey:UserMapID;constraint:OnDelete:SET NULL"`
	Viewers []UserMapAccess `json:"viewers,omitempty" gorm:"foreignKey:UserMapID"`
}

// UserMapAccess grants a user a role on a map.
type UserMapAccess struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserMapID uint      `json:"user_map_id" gorm:"uniqueIndex:idx_map_user;not null"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_map_user;not null"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role      string    `json:"role" gorm:"not null;default:viewer"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserMapAccess) TableName() string {
	return "user_map_access"
}

// UserArea is a polygon a user drew, optionally attached to a map.
type UserArea struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	UserID      uint        `json:"user_id" gorm:"not null;index"`
	UserMapID   *uint       `json:"user_map_id,omitempty" gorm:"index"`
	Name        string      `json:"name" gorm:"not null"`
	Color       string      `json:"color"`
	Coordinates geo.Polygon `json:"coordinates" gorm:"serializer:json"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BeforeCreate assigns an access code when none was set.
func (m *UserMap) BeforeCreate(tx *gorm.DB) error {
	if m.AccessCode == "" {
		code, err := GenerateCode(accessCodeLength)
		if err != nil {
			return err
		}
		m.AccessCode = code
	}
	return nil
}

// UserHasAccess is true for the owner, for anyone on a public map, or for listed viewers.
// Viewers must be preloaded.
func (m *UserMap) UserHasAccess(user *User) bool {
	if m.IsPublic {
		return true
	}
	if user == nil {
		return false
	}
	return m.UserRole(user) != ""
}

// UserRole returns the user's role on the map, or "" without access.
func (m *UserMap) UserRole(user *User) string {
	if user == nil {
		return ""
	}
	if m.OwnerID == user.ID {
		return MapRoleOwner
	}
	for _, v := range m.Viewers {
		if v.UserID == user.ID {
			return v.Role
		}
	}
	return ""
}

// CanEdit is true for the owner and editors.
func (m *UserMap) CanEdit(user *User) bool {
	role := m.UserRole(user)
	return role == MapRoleOwner || role == MapRoleEditor
}

// GenerateCode returns n random uppercase alphanumerics.
func GenerateCode(n int) (string, error) {
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = accessCodeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
