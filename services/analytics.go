package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/registry"
)

var hundred = decimal.NewFromInt(100)

// WeekStart returns Monday 00:00 of the ISO week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// weekWindows returns the current and previous half-open week windows around at.
func weekWindows(at time.Time) (curStart, curEnd, prevStart time.Time) {
	curStart = WeekStart(at)
	curEnd = curStart.AddDate(0, 0, 7)
	prevStart = curStart.AddDate(0, 0, -7)
	return
}

// PercentageChange is (current-previous)/previous*100, or nil when there is
// no previous value to compare with.
func PercentageChange(current, previous int64) *float64 {
	if previous == 0 {
		return nil
	}
	cur := decimal.NewFromInt(current)
	prev := decimal.NewFromInt(previous)
	v := cur.Sub(prev).Div(prev).Mul(hundred).InexactFloat64()
	return &v
}

// AnalyticsService captures weekly post and like snapshots.
type AnalyticsService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewAnalyticsService(db *gorm.DB, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{db: db, logger: logger, now: time.Now}
}

// WithClock replaces the clock used when callers pass a zero time.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

func (s *AnalyticsService) at(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// ComputePostSnapshot counts posts created in the week containing at and in
// the week before, and appends a PostSnapshot. A zero at means now.
func (s *AnalyticsService) ComputePostSnapshot(ctx context.Context, at time.Time) (*models.PostSnapshot, error) {
	at = s.at(at)
	curStart, curEnd, prevStart := weekWindows(at)

	var snap *models.PostSnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := countPostsBetween(tx, curStart, curEnd)
		if err != nil {
			return err
		}
		prev, err := countPostsBetween(tx, prevStart, curStart)
		if err != nil {
			return err
		}
		snap = &models.PostSnapshot{
			CapturedDate:     datatypes.Date(at),
			PostCount:        cur,
			PercentageChange: PercentageChange(cur, prev),
		}
		return errors.Wrap(tx.Create(snap).Error, "create post snapshot")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("post snapshot captured",
		zap.Time("week_start", curStart),
		zap.Int64("post_count", snap.PostCount),
		zap.Float64p("percentage_change", snap.PercentageChange),
	)
	return snap, nil
}

// ComputeLikeSnapshot counts likes received by userID's posts in the week
// containing at and in the week before, and appends a LikeSnapshot.
func (s *AnalyticsService) ComputeLikeSnapshot(ctx context.Context, userID uint, at time.Time) (*models.LikeSnapshot, error) {
	if userID == 0 {
		return nil, ErrAuthenticationRequired
	}
	at = s.at(at)
	curStart, curEnd, prevStart := weekWindows(at)

	var snap *models.LikeSnapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := countLikesBetween(tx, userID, curStart, curEnd)
		if err != nil {
			return err
		}
		prev, err := countLikesBetween(tx, userID, prevStart, curStart)
		if err != nil {
			return err
		}
		snap = &models.LikeSnapshot{
			UserID:           userID,
			CapturedDate:     datatypes.Date(at),
			LikeCount:        cur,
			PercentageChange: PercentageChange(cur, prev),
		}
		return errors.Wrap(tx.Create(snap).Error, "create like snapshot")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("like snapshot captured",
		zap.Uint("user_id", userID),
		zap.Int64("like_count", snap.LikeCount),
		zap.Float64p("percentage_change", snap.PercentageChange),
	)
	return snap, nil
}

// ComputeAllLikeSnapshots captures a like snapshot for every user with at least one post.
// It stops at the first failure and returns the snapshots taken so far. Those
// stay committed, so a rerun appends a second row for each of those authors.
func (s *AnalyticsService) ComputeAllLikeSnapshots(ctx context.Context, at time.Time) ([]*models.LikeSnapshot, error) {
	at = s.at(at)
	var authors []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Distinct().Order("user_id").Pluck("user_id", &authors).Error; err != nil {
		return nil, errors.Wrap(err, "list authors")
	}
	out := make([]*models.LikeSnapshot, 0, len(authors))
	for _, id := range authors {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		snap, err := s.ComputeLikeSnapshot(ctx, id, at)
		if err != nil {
			return out, errors.Wrapf(err, "user %d", id)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ListPostSnapshots returns the most recent post snapshots, newest first.
func (s *AnalyticsService) ListPostSnapshots(ctx context.Context, limit int) ([]models.PostSnapshot, error) {
	out := []models.PostSnapshot{}
	err := s.db.WithContext(ctx).Order("captured_date DESC, id DESC").Limit(clampLimit(limit)).Find(&out).Error
	return out, errors.Wrap(err, "list post snapshots")
}

// ListLikeSnapshots returns userID's most recent like snapshots, newest first.
func (s *AnalyticsService) ListLikeSnapshots(ctx context.Context, userID uint, limit int) ([]models.LikeSnapshot, error) {
	out := []models.LikeSnapshot{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("captured_date DESC, id DESC").Limit(clampLimit(limit)).Find(&out).Error
	return out, errors.Wrap(err, "list like snapshots")
}

func clampLimit(limit int) int {
	if limit < 1 || limit > 104 {
		return 12
	}
	return limit
}

func countPostsBetween(tx *gorm.DB, from, to time.Time) (int64, error) {
	var n int64
	err := tx.Model(&models.Post{}).Where("created_at >= ? AND created_at < ?", from, to).Count(&n).Error
	return n, errors.Wrap(err, "count posts")
}

func countLikesBetween(tx *gorm.DB, userID uint, from, to time.Time) (int64, error) {
	authored := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Post{}).Select("id").Where("user_id = ?", userID)
	var n int64
	err := tx.Model(&models.Reaction{}).
		Where("target_type = ? AND target_id IN (?)", registry.KindPost, authored).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error
	return n, errors.Wrap(err, "count likes")
}
