package repository

import (
	"errors"

	"github.com/straysafe/straysafebackend/models"
	"gorm.io/gorm"
)

type GormPostRepository struct {
	db *gorm.DB
}

func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

func (r *GormPostRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.Preload("Images").Preload("Comments.User").Preload("User").First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPage returns one page of posts newest first, with like counts and the
// viewer's liked flag filled in, and the total number of posts.
func (r *GormPostRepository) ListPage(viewerID uint, page, perPage int) ([]models.Post, int64, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := r.db.Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := r.db.Preload("Images").Preload("Comments.User").Preload("User").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&posts).Error
	if err != nil || len(posts) == 0 {
		return posts, total, err
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var counts []struct {
		PostID uint
		Total  int64
	}
	if err := r.db.Model(&models.LikedPost{}).Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", ids).Group("post_id").Scan(&counts).Error; err != nil {
		return nil, 0, err
	}
	byPost := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byPost[c.PostID] = c.Total
	}

	var liked []uint
	if viewerID != 0 {
		if err := r.db.Model(&models.LikedPost{}).Where("post_id IN ? AND user_id = ?", ids, viewerID).
			Pluck("post_id", &liked).Error; err != nil {
			return nil, 0, err
		}
	}
	likedSet := make(map[uint]bool, len(liked))
	for _, id := range liked {
		likedSet[id] = true
	}

	for i := range posts {
		posts[i].LikesCount = byPost[posts[i].ID]
		posts[i].Liked = likedSet[posts[i].ID]
	}
	return posts, total, nil
}

func (r *GormPostRepository) UpdateFields(id uint, title string, description *string) error {
	res := r.db.Model(&models.Post{}).Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "description": description})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the post along with its images, comments and likes.
func (r *GormPostRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.PostImage{}, &models.Comment{}, &models.LikedPost{}} {
			if err := tx.Where("post_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ToggleLike flips the like and reports whether the post is now liked.
func (r *GormPostRepository) ToggleLike(postID, userID uint) (bool, error) {
	var liked bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.LikedPost
		err := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
		switch {
		case err == nil:
			liked = false
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			liked = true
			return tx.Create(&models.LikedPost{PostID: postID, UserID: userID}).Error
		default:
			return err
		}
	})
	return liked, err
}

func (r *GormPostRepository) AddComment(comment *models.Comment) error {
	return r.db.Create(comment).Error
}
