package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
	"github.com/cppla/aiblog/utils"
)

// ReactionResult is the state of a (user, target) pair after a call.
type ReactionResult struct {
	Reacted bool  `json:"reacted"`
	Total   int64 `json:"total"`
}

// ReactionService stores likes on any kind known to its registry.
type ReactionService struct {
	db       *gorm.DB
	registry *registry.Registry
	logger   *zap.Logger
}

// NewReactionService creates a ReactionService. A nil registry means registry.Default().
func NewReactionService(db *gorm.DB, reg *registry.Registry, logger *zap.Logger) *ReactionService {
	if reg == nil {
		reg = registry.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionService{db: db, registry: reg, logger: logger}
}

// Registry exposes the registry used to resolve targets.
func (s *ReactionService) Registry() *registry.Registry { return s.registry }

// Toggle adds the author's reaction to the target, or removes it when present.
//
// The insert relies on the (user_id, target_type, target_id) unique index: a
// concurrent duplicate insert is a no-op and the call falls through to delete,
// so the pair never holds two rows regardless of interleaving.
func (s *ReactionService) Toggle(ctx context.Context, authorID uint, typeTag string, objectID uint) (ReactionResult, error) {
	if authorID == 0 {
		return ReactionResult{}, ErrAuthenticationRequired
	}
	entry, err := s.registry.Resolve(typeTag)
	if err != nil {
		return ReactionResult{}, err
	}

	var res ReactionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkTarget(tx, entry, objectID, authorID); err != nil {
			return err
		}

		row := models.Reaction{UserID: authorID, TargetType: string(entry.Kind), TargetID: objectID}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if ins.Error != nil {
			return errors.Wrap(ins.Error, "insert reaction")
		}
		if ins.RowsAffected > 0 {
			res.Reacted = true
		} else {
			del := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", authorID, entry.Kind, objectID).
				Delete(&models.Reaction{})
			if del.Error != nil {
				return errors.Wrap(del.Error, "delete reaction")
			}
		}

		total, err := countTarget(tx, entry.Kind, objectID)
		if err != nil {
			return err
		}
		res.Total = total
		return nil
	})
	if err != nil {
		return ReactionResult{}, err
	}

	s.logger.Debug("reaction toggled",
		zap.Uint("user_id", authorID),
		zap.String("target_type", string(entry.Kind)),
		zap.Uint("target_id", objectID),
		zap.Bool("reacted", res.Reacted),
		zap.Int64("total", res.Total),
	)
	return res, nil
}

// Status reports the live total for a target and whether authorID reacted to it.
// An authorID of 0 is treated as anonymous.
func (s *ReactionService) Status(ctx context.Context, authorID uint, typeTag string, objectID uint) (ReactionResult, error) {
	entry, err := s.registry.Resolve(typeTag)
	if err != nil {
		return ReactionResult{}, err
	}
	db := s.db.WithContext(ctx)
	if err := checkTarget(db, entry, objectID, authorID); err != nil {
		return ReactionResult{}, err
	}

	var res ReactionResult
	if res.Total, err = countTarget(db, entry.Kind, objectID); err != nil {
		return ReactionResult{}, err
	}
	if authorID != 0 {
		var n int64
		if err := db.Model(&models.Reaction{}).
			Where("user_id = ? AND target_type = ? AND target_id = ?", authorID, entry.Kind, objectID).
			Count(&n).Error; err != nil {
			return ReactionResult{}, errors.Wrap(err, "check reaction")
		}
		res.Reacted = n > 0
	}
	return res, nil
}

// checkTarget fails with ErrTargetNotFound unless the target exists and viewerID
// may see it. Comments share the visibility of their post.
func checkTarget(tx *gorm.DB, entry registry.Entry, objectID, viewerID uint) error {
	switch entry.Kind {
	case registry.KindPost:
		return requireVisiblePost(tx, objectID, viewerID, ErrTargetNotFound)
	case registry.KindComment:
		var c models.Comment
		err := tx.Select("id", "post_id").First(&c, objectID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrapf(ErrTargetNotFound, "%s %d", entry.Kind, objectID)
		}
		if err != nil {
			return errors.Wrapf(err, "check %s %d", entry.Kind, objectID)
		}
		return requireVisiblePost(tx, c.PostID, viewerID, ErrTargetNotFound)
	}
	ok, err := entry.Exists(tx, objectID)
	if err != nil {
		return errors.Wrapf(err, "check %s %d", entry.Kind, objectID)
	}
	if !ok {
		return errors.Wrapf(ErrTargetNotFound, "%s %d", entry.Kind, objectID)
	}
	return nil
}

// Count returns the live number of reactions on a target.
func (s *ReactionService) Count(ctx context.Context, typeTag string, objectID uint) (int64, error) {
	entry, err := s.registry.Resolve(typeTag)
	if err != nil {
		return 0, err
	}
	return countTarget(s.db.WithContext(ctx), entry.Kind, objectID)
}

// CountMany returns live counts for several targets of one kind. Targets
// without reactions are absent from the map.
func (s *ReactionService) CountMany(ctx context.Context, kind registry.Kind, ids []uint) (map[uint]int64, error) {
	return countTargets(s.db.WithContext(ctx), kind, utils.Unique(ids))
}

func countTarget(tx *gorm.DB, kind registry.Kind, id uint) (int64, error) {
	var n int64
	if err := tx.Model(&models.Reaction{}).
		Where("target_type = ? AND target_id = ?", kind, id).
		Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count reactions")
	}
	return n, nil
}

func countTargets(tx *gorm.DB, kind registry.Kind, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		TargetID uint
		Total    int64
	}
	if err := tx.Model(&models.Reaction{}).
		Select("target_id, COUNT(*) AS total").
		Where("target_type = ? AND target_id IN ?", kind, ids).
		Group("target_id").
		Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "count reactions")
	}
	for _, r := range rows {
		out[r.TargetID] = r.Total
	}
	return out, nil
}

// deleteForTargets removes reactions on targets that are being deleted in tx.
func deleteForTargets(tx *gorm.DB, kind registry.Kind, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("target_type = ? AND target_id IN ?", kind, ids).Delete(&models.Reaction{}).Error; err != nil {
		return errors.Wrapf(err, "delete %s reactions", kind)
	}
	return nil
}
