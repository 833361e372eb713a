package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
)

// FollowCounts is the size of a user's follower and following sets.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// FollowService maintains the directed follow graph and composes feeds from it.
type FollowService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewFollowService(db *gorm.DB, logger *zap.Logger) *FollowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowService{db: db, logger: logger}
}

// Follow adds the edge follower -> target. It reports whether a new edge was created;
// following someone twice is not an error.
func (s *FollowService) Follow(ctx context.Context, follower, target uint) (bool, error) {
	if follower == 0 {
		return false, ErrAuthenticationRequired
	}
	if follower == target {
		return false, ErrSelfFollow
	}
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", target).Count(&n).Error; err != nil {
			return errors.Wrap(err, "check user")
		}
		if n == 0 {
			return errors.Wrapf(ErrNotFound, "user %d", target)
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: follower, FolloweeID: target})
		if res.Error != nil {
			return errors.Wrap(res.Error, "create follow")
		}
		created = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Debug("follow added", zap.Uint("follower", follower), zap.Uint("followee", target))
	}
	return created, nil
}

// Unfollow removes the edge follower -> target if present.
func (s *FollowService) Unfollow(ctx context.Context, follower, target uint) (bool, error) {
	if follower == 0 {
		return false, ErrAuthenticationRequired
	}
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", follower, target).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "delete follow")
	}
	return res.RowsAffected > 0, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, follower, target uint) (bool, error) {
	if follower == 0 {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", follower, target).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "check follow")
	}
	return n > 0, nil
}

// Followers pages through the users following userID, most recent first.
func (s *FollowService) Followers(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return s.neighbours(ctx, "followee_id", "follower_id", userID, page)
}

// Following pages through the users userID follows, most recent first.
func (s *FollowService) Following(ctx context.Context, userID uint, page Page) ([]models.User, int64, error) {
	return s.neighbours(ctx, "follower_id", "followee_id", userID, page)
}

func (s *FollowService) neighbours(ctx context.Context, by, pick string, userID uint, page Page) ([]models.User, int64, error) {
	page = page.normalize()
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Follow{}).Where(by+" = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count follows")
	}
	users := []models.User{}
	err := db.Model(&models.User{}).
		Joins("JOIN follows ON follows."+pick+" = users.id").
		Where("follows."+by+" = ?", userID).
		Order("follows.created_at DESC, follows.id DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list follows")
	}
	return users, total, nil
}

// Counts returns how many users follow userID and how many it follows.
func (s *FollowService) Counts(ctx context.Context, userID uint) (FollowCounts, error) {
	db := s.db.WithContext(ctx)
	var c FollowCounts
	if err := db.Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&c.Followers).Error; err != nil {
		return FollowCounts{}, errors.Wrap(err, "count followers")
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&c.Following).Error; err != nil {
		return FollowCounts{}, errors.Wrap(err, "count following")
	}
	return c, nil
}

// Feed returns published posts written by the users userID follows, newest first.
// Each call reads the follow set afresh.
func (s *FollowService) Feed(ctx context.Context, userID uint, page Page) ([]models.Post, int64, error) {
	if userID == 0 {
		return nil, 0, ErrAuthenticationRequired
	}
	page = page.normalize()
	db := s.db.WithContext(ctx)

	following := db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", userID)
	q := db.Model(&models.Post{}).
		Where("posts.user_id IN (?)", following).
		Where("posts.status = ?", models.StatusPublished)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count feed")
	}
	posts := []models.Post{}
	if total == 0 {
		return posts, 0, nil
	}
	if err := q.Preload("User").Preload("Tags").
		Order("COALESCE(posts.pub_date, posts.created_at) DESC, posts.id DESC").
		Offset(page.offset()).Limit(page.PageSize).
		Find(&posts).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list feed")
	}
	return posts, total, nil
}
