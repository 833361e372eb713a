package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/utils"
)

// CommentNode is one comment in a materialized thread.
type CommentNode struct {
	ID        uint           `json:"id"`
	PostID    uint           `json:"post_id"`
	UserID    uint           `json:"user_id"`
	ParentID  *uint          `json:"parent_id"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	User      models.User    `json:"author"`
	LikeCount int64          `json:"like_count"`
	Replies   []*CommentNode `json:"replies"`
}

// CommentService manages threaded comments on posts.
type CommentService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCommentService(db *gorm.DB, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{db: db, logger: logger}
}

func cleanCommentContent(content string) (string, error) {
	content = strings.TrimSpace(utils.Sanitize(content))
	n := utf8.RuneCountInString(content)
	if n == 0 || n > models.MaxCommentLength {
		return "", errors.Wrapf(ErrInvalidInput, "comment must be 1-%d characters", models.MaxCommentLength)
	}
	return content, nil
}

// Add creates a comment on postID. A non-nil parentID must name a comment of the same post.
// Posts the author cannot see are reported as not found.
func (s *CommentService) Add(ctx context.Context, postID, authorID uint, content string, parentID *uint) (*models.Comment, error) {
	if authorID == 0 {
		return nil, ErrAuthenticationRequired
	}
	content, err := cleanCommentContent(content)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{PostID: postID, UserID: authorID, Content: content, ParentID: parentID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireVisiblePost(tx, postID, authorID, ErrNotFound); err != nil {
			return err
		}
		if parentID != nil {
			var n int64
			if err := tx.Model(&models.Comment{}).Where("id = ? AND post_id = ?", *parentID, postID).Count(&n).Error; err != nil {
				return errors.Wrap(err, "check parent comment")
			}
			if n == 0 {
				return errors.Wrapf(ErrNotFound, "parent comment %d not found on post %d", *parentID, postID)
			}
		}
		if err := tx.Create(c).Error; err != nil {
			return errors.Wrap(err, "create comment")
		}
		return tx.Preload("User").First(c, c.ID).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("comment created", zap.Uint("comment_id", c.ID), zap.Uint("post_id", postID), zap.Uint("user_id", authorID))
	return c, nil
}

// Get loads a single comment with its author.
func (s *CommentService) Get(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "comment %d", id)
		}
		return nil, errors.Wrap(err, "load comment")
	}
	return &c, nil
}

// Update replaces the content of a comment owned by requesterID.
func (s *CommentService) Update(ctx context.Context, id, requesterID uint, content string) (*models.Comment, error) {
	if requesterID == 0 {
		return nil, ErrAuthenticationRequired
	}
	content, err := cleanCommentContent(content)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != requesterID {
		return nil, ErrForbidden
	}
	if err := s.db.WithContext(ctx).Model(c).Update("content", content).Error; err != nil {
		return nil, errors.Wrap(err, "update comment")
	}
	c.Content = content
	return c, nil
}

// ListTree returns the threads of a post, oldest first at every level.
//
// A comment whose parent is not on the post is treated as a root. Comments
// that can only be reached through a parent cycle are left out.
func (s *CommentService) ListTree(ctx context.Context, postID uint) ([]*CommentNode, error) {
	db := s.db.WithContext(ctx)
	var rows []models.Comment
	if err := db.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list comments")
	}
	if len(rows) == 0 {
		return []*CommentNode{}, nil
	}

	ids := make([]uint, 0, len(rows))
	nodes := make(map[uint]*CommentNode, len(rows))
	for i := range rows {
		n := &CommentNode{}
		if err := copier.Copy(n, &rows[i]); err != nil {
			return nil, errors.Wrap(err, "map comment")
		}
		n.Replies = []*CommentNode{}
		nodes[n.ID] = n
		ids = append(ids, n.ID)
	}

	likes, err := countTargets(db, registry.KindComment, ids)
	if err != nil {
		return nil, err
	}

	roots := []*CommentNode{}
	children := make(map[uint][]*CommentNode, len(rows))
	for _, id := range ids {
		n := nodes[id]
		n.LikeCount = likes[id]
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if _, ok := nodes[*n.ParentID]; !ok {
			roots = append(roots, n)
			continue
		}
		children[*n.ParentID] = append(children[*n.ParentID], n)
	}

	visited := make(map[uint]bool, len(rows))
	queue := make([]*CommentNode, 0, len(rows))
	for _, r := range roots {
		visited[r.ID] = true
		queue = append(queue, r)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, child := range children[n.ID] {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			n.Replies = append(n.Replies, child)
			queue = append(queue, child)
		}
	}

	if skipped := len(rows) - len(visited); skipped > 0 {
		s.logger.Warn("comments unreachable from any root", zap.Uint("post_id", postID), zap.Int("count", skipped))
	}
	return roots, nil
}

// Delete removes a comment owned by requesterID together with all of its
// replies and their reactions. It returns the number of comments removed.
func (s *CommentService) Delete(ctx context.Context, id, requesterID uint) (int64, error) {
	if requesterID == 0 {
		return 0, ErrAuthenticationRequired
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Comment
		if err := tx.First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "comment %d", id)
			}
			return errors.Wrap(err, "load comment")
		}
		if c.UserID != requesterID {
			return ErrForbidden
		}

		ids, err := collectReplies(tx, []uint{c.ID})
		if err != nil {
			return err
		}
		if err := deleteForTargets(tx, registry.KindComment, ids); err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete comments")
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("comment deleted", zap.Uint("comment_id", id), zap.Int64("removed", deleted))
	return deleted, nil
}

// collectReplies walks parent_id links breadth first and returns seeds plus
// every transitive reply. Each id appears once even if the links form a cycle.
func collectReplies(tx *gorm.DB, seeds []uint) ([]uint, error) {
	visited := make(map[uint]bool, len(seeds))
	all := make([]uint, 0, len(seeds))
	frontier := make([]uint, 0, len(seeds))
	for _, id := range seeds {
		if !visited[id] {
			visited[id] = true
			all = append(all, id)
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		var next []uint
		if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
			return nil, errors.Wrap(err, "collect replies")
		}
		frontier = frontier[:0]
		for _, id := range next {
			if visited[id] {
				continue
			}
			visited[id] = true
			all = append(all, id)
			frontier = append(frontier, id)
		}
	}
	return all, nil
}
