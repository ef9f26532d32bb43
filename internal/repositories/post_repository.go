package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-service/internal/models"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrUserNotFound = errors.New("user not found")
)

// PostRepository defines interactions for the posts feed and user pictures.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error)
	GetPost(ctx context.Context, postID int) (models.Post, error)
	UpdatePost(ctx context.Context, postID int, mutate func(*models.Post) error) (models.Post, error)
	DeletePost(ctx context.Context, postID int) error
	ProfilePicture(ctx context.Context, username string) (string, error)
	UpdateProfilePicture(ctx context.Context, username, picture string) error
}

type userRow struct {
	ID             int     `gorm:"column:id;primaryKey"`
	Username       string  `gorm:"column:username"`
	ProfilePicture *string `gorm:"column:profile_picture"`
}

func (userRow) TableName() string { return "users" }

// PostRepo is a gorm-backed repository on MySQL.
type PostRepo struct {
	db *gorm.DB
}

// NewPostRepo constructs PostRepo.
func NewPostRepo(db *gorm.DB) *PostRepo {
	return &PostRepo{db: db}
}

// CreatePost inserts a post and fills in its id.
func (r *PostRepo) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// ListPosts returns posts newest first.
func (r *PostRepo) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	q := r.db.WithContext(ctx).Order("timestamp DESC").Order("_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	posts := []models.Post{}
	err := q.Find(&posts).Error
	return posts, err
}

// GetPost retrieves a single post.
func (r *PostRepo) GetPost(ctx context.Context, postID int) (models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("_id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, ErrPostNotFound
	}
	return post, err
}

// UpdatePost loads the post under a row lock, applies mutate and saves the
// result in the same transaction. An error from mutate aborts the update.
func (r *PostRepo) UpdatePost(ctx context.Context, postID int, mutate func(*models.Post) error) (models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("_id = ?", postID).First(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(&post); err != nil {
			return err
		}
		return tx.Save(&post).Error
	})
	if err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// DeletePost removes a post.
func (r *PostRepo) DeletePost(ctx context.Context, postID int) error {
	res := r.db.WithContext(ctx).Where("_id = ?", postID).Delete(&models.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ProfilePicture returns the stored picture of a user, empty when none is set.
func (r *PostRepo) ProfilePicture(ctx context.Context, username string) (string, error) {
	var u userRow
	err := r.db.WithContext(ctx).Select("id", "username", "profile_picture").Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if u.ProfilePicture == nil {
		return "", nil
	}
	return *u.ProfilePicture, nil
}

// UpdateProfilePicture stores a user's picture and refreshes it on their posts.
func (r *PostRepo) UpdateProfilePicture(ctx context.Context, username, picture string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).Where("username = ?", username).Update("profile_picture", picture)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Model(&models.Post{}).Where("username = ?", username).Update("profile_picture", picture).Error
	})
}
