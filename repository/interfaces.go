package repository

import (
	"time"

	"github.com/straysafe/straysafebackend/models"
)

// PinFilter narrows pin listings.
type PinFilter struct {
	UserMapID  *uint
	CameraOnly bool
}

// PinRepository defines the methods for map pin data operations
type PinRepository interface {
	Create(pin *models.MapPin) error
	GetByID(id uint) (*models.MapPin, error)
	List(filter PinFilter) ([]models.MapPin, error)
	Delete(id uint) error
	UpdateThumbnailPath(id uint, thumbPath string) error
}

// UserMapRepository defines the methods for map collection data operations
type UserMapRepository interface {
	Create(m *models.UserMap) error
	GetByID(id uint) (*models.UserMap, error)
	GetByAccessCode(code string) (*models.UserMap, error)
	Exists(id uint) (bool, error)
	ListAccessible(userID uint) ([]models.UserMap, error)
	Update(m *models.UserMap) error
	// Delete removes the map and its access rows, detaching pins and areas.
	Delete(id uint) error

	SetAccess(mapID, userID uint, role string) error
	RemoveAccess(mapID, userID uint) error

	CreateArea(area *models.UserArea) error
	ListAreas(mapID uint) ([]models.UserArea, error)
}

// UserRepository defines the methods for user data operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	ListAll() ([]models.User, error)
	Count() (int64, error)

	// role management for a user
	AddRoleToUser(userID uint, roleID uint) error
	RemoveRoleFromUser(userID uint, roleID uint) error
	ReplaceRoles(userID uint, roleIDs []uint) error
	GetUserRoles(userID uint) ([]models.Role, error)

	// direct global permission management for a user
	SetUserGlobalPermissions(userID uint, permissions []string) error
	SetBanned(userID uint, banned bool) error

	// CountByReferralCode counts users who registered with each code.
	CountByReferralCode() (map[string]int, error)
	ListByReferralCode(code string) ([]models.User, error)
}

// RoleRepository defines the methods for role data operations
type RoleRepository interface {
	Create(role *models.Role) error
	GetByID(id uint) (*models.Role, error)
	GetByName(name string) (*models.Role, error)
	ListAll() ([]models.Role, error)
	Update(role *models.Role) error
	Delete(id uint) error

	SetRoleGlobalPermissions(roleID uint, permissions []string) error

	FindUsersByRoleID(roleID uint) ([]models.User, error)
	AddUserToRole(userID, roleID uint) error
	RemoveUserFromRole(userID, roleID uint) error
}

// ReferralCodeRepository defines the methods for referral code data operations
type ReferralCodeRepository interface {
	Create(code *models.ReferralCode) error
	GetByCode(code string) (*models.ReferralCode, error)
	GetByID(id uint) (*models.ReferralCode, error)
	Update(code *models.ReferralCode) error
	ListAll() ([]models.ReferralCode, error)
	Delete(id uint) error
	// SyncUsage overwrites usage counts and deactivates codes that reached their limit.
	SyncUsage(counts map[string]int) error
}

// PostRepository defines the methods for community post data operations
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id uint) (*models.Post, error)
	ListPage(viewerID uint, page, perPage int) ([]models.Post, int64, error)
	UpdateFields(id uint, title string, description *string) error
	Delete(id uint) error
	ToggleLike(postID, userID uint) (bool, error)
	AddComment(comment *models.Comment) error
}

// AnimalRepository defines the methods for registered animal data operations
type AnimalRepository interface {
	Create(animal *models.RegisteredAnimal) error
	GetByID(id uint) (*models.RegisteredAnimal, error)
	ListAll() ([]models.RegisteredAnimal, error)
	Update(animal *models.RegisteredAnimal) error
	AddImages(animalID uint, images []models.AnimalImage) error
	Delete(id uint) error
	CountCreatedSince(since time.Time) (int64, error)
}

// CCTVRepository defines the methods for custom camera feed data operations
type CCTVRepository interface {
	Create(c *models.CCTV) error
	GetByID(id uint) (*models.CCTV, error)
	ListAll() ([]models.CCTV, error)
	Delete(id uint) error
}

// PushTokenRepository defines the methods for device token data operations
type PushTokenRepository interface {
	Create(token *models.PushToken) error
	Exists(token string) (bool, error)
	ListTokens() ([]string, error)
}
