package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/utils"
)

const maxTitleLength = 500

// PostInput carries the editable fields of a post. A nil Tags leaves the
// current tags untouched on update.
type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Status  string   `json:"status"`
	Tags    []string `json:"tags"`
}

// PostFilter narrows List. Zero fields do not filter.
type PostFilter struct {
	AuthorID uint
	Status   string
	Tag      string
	Search   string
	Page
}

// PostStats aggregates engagement on a single post.
type PostStats struct {
	Likes    int64 `json:"likes"`
	Viewers  int64 `json:"viewers"`
	Comments int64 `json:"comments"`
}

type PostService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostService(db *gorm.DB, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{db: db, logger: logger}
}

func (in *PostInput) clean(defaultStatus string) error {
	in.Title = strings.TrimSpace(utils.StripTags(in.Title))
	in.Content = strings.TrimSpace(utils.Sanitize(in.Content))
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
	if in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleLength {
		return errors.Wrapf(ErrInvalidInput, "title must be 1-%d characters", maxTitleLength)
	}
	if in.Content == "" {
		return errors.Wrap(ErrInvalidInput, "content is required")
	}
	if in.Status == "" {
		in.Status = defaultStatus
	}
	if !models.ValidStatus(in.Status) {
		return errors.Wrapf(ErrInvalidInput, "unknown status %q", in.Status)
	}
	return nil
}

// Create stores a new post for authorID. The status defaults to draft.
func (s *PostService) Create(ctx context.Context, authorID uint, in PostInput) (*models.Post, error) {
	if authorID == 0 {
		return nil, ErrAuthenticationRequired
	}
	if err := in.clean(models.StatusDraft); err != nil {
		return nil, err
	}

	post := &models.Post{UserID: authorID, Title: in.Title, Content: in.Content, Status: in.Status}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, in.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return errors.Wrap(err, "create post")
		}
		if len(tags) > 0 {
			if err := tx.Model(post).Association("Tags").Replace(tags); err != nil {
				return errors.Wrap(err, "link tags")
			}
		}
		return loadPost(tx, post, post.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("user_id", authorID), zap.String("slug", post.Slug))
	return post, nil
}

func loadPost(tx *gorm.DB, dest *models.Post, id uint) error {
	err := tx.Preload("User").Preload("Tags").First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, "post %d", id)
	}
	return errors.Wrap(err, "load post")
}

func visible(p *models.Post, viewerID uint) bool {
	return p.Status == models.StatusPublished || (viewerID != 0 && p.UserID == viewerID)
}

// requireVisiblePost fails with notFound when postID is missing or hidden from viewerID.
func requireVisiblePost(tx *gorm.DB, postID, viewerID uint, notFound error) error {
	var p models.Post
	err := tx.Select("id", "user_id", "status").First(&p, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !visible(&p, viewerID)) {
		return errors.Wrapf(notFound, "post %d", postID)
	}
	return errors.Wrap(err, "load post")
}

// Get returns a post. Unpublished posts are only visible to their author.
func (s *PostService) Get(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var p models.Post
	if err := loadPost(s.db.WithContext(ctx), &p, id); err != nil {
		return nil, err
	}
	if !visible(&p, viewerID) {
		return nil, errors.Wrapf(ErrNotFound, "post %d", id)
	}
	return &p, nil
}

// GetBySlug is Get keyed by slug.
func (s *PostService) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Preload("User").Preload("Tags").Where("slug = ?", slug).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "post %q", slug)
		}
		return nil, errors.Wrap(err, "load post")
	}
	if !visible(&p, viewerID) {
		return nil, errors.Wrapf(ErrNotFound, "post %q", slug)
	}
	return &p, nil
}

// MarkViewed records that userID opened postID. Repeated calls are no-ops, as
// are anonymous ones.
func (s *PostService) MarkViewed(ctx context.Context, postID, userID uint) error {
	if userID == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostViewer{PostID: postID, UserID: userID}).Error
	return errors.Wrap(err, "mark viewed")
}

// Update edits a post owned by requesterID.
func (s *PostService) Update(ctx context.Context, id, requesterID uint, in PostInput) (*models.Post, error) {
	if requesterID == 0 {
		return nil, ErrAuthenticationRequired
	}
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadPost(tx, &post, id); err != nil {
			return err
		}
		if post.UserID != requesterID {
			return ErrForbidden
		}
		if err := in.clean(post.Status); err != nil {
			return err
		}
		post.Title, post.Content, post.Status = in.Title, in.Content, in.Status
		if err := tx.Omit(clause.Associations).Save(&post).Error; err != nil {
			return errors.Wrap(err, "update post")
		}
		if in.Tags != nil {
			tags, err := ensureTags(tx, in.Tags)
			if err != nil {
				return err
			}
			assoc := tx.Model(&post).Association("Tags")
			if len(tags) == 0 {
				err = assoc.Clear()
			} else {
				err = assoc.Replace(tags)
			}
			if err != nil {
				return errors.Wrap(err, "link tags")
			}
		}
		return loadPost(tx, &post, id)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Delete removes a post with its comments, every reaction on either, its tag
// links and its viewer marks. Authors may delete their own posts; admins any.
func (s *PostService) Delete(ctx context.Context, id, requesterID uint, isAdmin bool) error {
	if requesterID == 0 {
		return ErrAuthenticationRequired
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "post %d", id)
			}
			return errors.Wrap(err, "load post")
		}
		if post.UserID != requesterID && !isAdmin {
			return ErrForbidden
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return errors.Wrap(err, "list comments")
		}
		if err := deleteForTargets(tx, registry.KindComment, commentIDs); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return errors.Wrap(err, "delete comments")
		}
		if err := deleteForTargets(tx, registry.KindPost, []uint{id}); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink tags")
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostViewer{}).Error; err != nil {
			return errors.Wrap(err, "delete viewers")
		}
		return errors.Wrap(tx.Delete(&post).Error, "delete post")
	})
	if err != nil {
		return err
	}
	s.logger.Info("post deleted", zap.Uint("post_id", id), zap.Uint("by", requesterID))
	return nil
}

// List returns a page of posts, newest first, and the total matching.
func (s *PostService) List(ctx context.Context, f PostFilter) ([]models.Post, int64, error) {
	f.Page = f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.Post{})
	if f.AuthorID != 0 {
		q = q.Where("posts.user_id = ?", f.AuthorID)
	}
	if f.Status != "" {
		q = q.Where("posts.status = ?", f.Status)
	}
	if tag := models.NormalizeTagName(f.Tag); tag != "" {
		sub := s.db.Table("post_tags").
			Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.tag_name = ?", tag)
		q = q.Where("posts.id IN (?)", sub)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		q = q.Where("posts.title LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count posts")
	}
	posts := []models.Post{}
	if err := q.Preload("User").Preload("Tags").
		Order("COALESCE(posts.pub_date, posts.created_at) DESC, posts.id DESC").
		Offset(f.offset()).Limit(f.PageSize).
		Find(&posts).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list posts")
	}
	return posts, total, nil
}

// Stats returns live engagement counters for a post.
func (s *PostService) Stats(ctx context.Context, id uint) (PostStats, error) {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return PostStats{}, errors.Wrap(err, "check post")
	}
	if n == 0 {
		return PostStats{}, errors.Wrapf(ErrNotFound, "post %d", id)
	}

	var st PostStats
	var err error
	if st.Likes, err = countTarget(db, registry.KindPost, id); err != nil {
		return PostStats{}, err
	}
	if err := db.Model(&models.PostViewer{}).Where("post_id = ?", id).Count(&st.Viewers).Error; err != nil {
		return PostStats{}, errors.Wrap(err, "count viewers")
	}
	if err := db.Model(&models.Comment{}).Where("post_id = ?", id).Count(&st.Comments).Error; err != nil {
		return PostStats{}, errors.Wrap(err, "count comments")
	}
	return st, nil
}
