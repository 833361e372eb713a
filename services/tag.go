package services

import (
	"context"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
)

const maxTagLength = 79

type TagService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewTagService(db *gorm.DB, logger *zap.Logger) *TagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagService{db: db, logger: logger}
}

// List returns all tags ordered by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("tag_name ASC").Find(&tags).Error; err != nil {
		return nil, errors.Wrap(err, "list tags")
	}
	return tags, nil
}

// Create adds a tag. The name is normalized first; an existing name is a conflict.
func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	name, err := normalizeTag(name)
	if err != nil {
		return nil, err
	}
	tag := &models.Tag{TagName: name}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tag)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create tag")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(ErrConflict, "tag %s already exists", name)
	}
	return tag, nil
}

// Delete removes a tag and unlinks it from every post.
func (s *TagService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "tag %d", id)
			}
			return errors.Wrap(err, "load tag")
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", id).Error; err != nil {
			return errors.Wrap(err, "unlink tag")
		}
		return errors.Wrap(tx.Delete(&tag).Error, "delete tag")
	})
}

func normalizeTag(name string) (string, error) {
	name = models.NormalizeTagName(name)
	if name == "" || name == models.TagPrefix || utf8.RuneCountInString(name) > maxTagLength {
		return "", errors.Wrapf(ErrInvalidInput, "tag name must be 1-%d characters", maxTagLength-1)
	}
	return name, nil
}

// ensureTags returns the tags named by names inside tx, creating missing ones.
// Duplicates collapse after normalization.
func ensureTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	seen := make(map[string]bool, len(names))
	wanted := make([]models.Tag, 0, len(names))
	keys := make([]string, 0, len(names))
	for _, raw := range names {
		name, err := normalizeTag(raw)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		wanted = append(wanted, models.Tag{TagName: name})
		keys = append(keys, name)
	}
	if len(wanted) == 0 {
		return []models.Tag{}, nil
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&wanted).Error; err != nil {
		return nil, errors.Wrap(err, "create tags")
	}
	var tags []models.Tag
	if err := tx.Where("tag_name IN ?", keys).Order("tag_name ASC").Find(&tags).Error; err != nil {
		return nil, errors.Wrap(err, "load tags")
	}
	return tags, nil
}
