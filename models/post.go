package models

import "time"

// Post is a community post with attached images.
type Post struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	UserID      uint        `json:"user_id" gorm:"not null;index"`
	User        *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Title       string      `json:"title" gorm:"size:255;not null"`
	Description *string     `json:"description,omitempty"`
	Images      []PostImage `json:"images" gorm:"foreignKey:PostID"`
	Comments    []Comment   `json:"comments" gorm:"foreignKey:PostID"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// filled per request
	LikesCount int64 `json:"likes_count" gorm:"-"`
	Liked      bool  `json:"liked" gorm:"-"`
}

// PostImage is one resized upload attached to a post.
type PostImage struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	PostID    uint       `json:"post_id" gorm:"not null;index"`
	Caption   *string    `json:"caption,omitempty"`
	Path      string     `json:"path" gorm:"not null"` // relative media store path
	TakenAt   *time.Time `json:"taken_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LikedPost records one like; a user can like a post once.
type LikedPost struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"uniqueIndex:idx_post_user;not null"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_post_user;not null"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Body      string    `json:"comments" gorm:"column:comments;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
