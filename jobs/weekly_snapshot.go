package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/models"
)

// Snapshotter captures the weekly analytics rows.
type Snapshotter interface {
	ComputePostSnapshot(ctx context.Context, at time.Time) (*models.PostSnapshot, error)
	ComputeAllLikeSnapshots(ctx context.Context, at time.Time) ([]*models.LikeSnapshot, error)
}

type WeeklySnapshotConfig struct {
	Weekday time.Weekday // day of the week to run on, local time
	Hour    int          // hour of the day to run at, 0-23
}

// WeeklySnapshotJob runs the analytics snapshots once a week in process.
type WeeklySnapshotJob struct {
	snapshotter Snapshotter
	metrics     *metrics.Metrics
	logger      *zap.SugaredLogger
	config      WeeklySnapshotConfig
	now         func() time.Time

	mu        sync.Mutex
	cancelCtx context.CancelFunc
}

func NewWeeklySnapshotJob(s Snapshotter, m *metrics.Metrics, logger *zap.SugaredLogger, config WeeklySnapshotConfig) *WeeklySnapshotJob {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WeeklySnapshotJob{
		snapshotter: s,
		metrics:     m,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// Start blocks, running the snapshots at every scheduled time until ctx is
// cancelled or Stop is called.
func (j *WeeklySnapshotJob) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	j.mu.Lock()
	j.cancelCtx = cancel
	j.mu.Unlock()
	defer cancel()

	for {
		next := nextRun(j.now(), j.config.Weekday, j.config.Hour)
		j.logger.Infow("Weekly snapshot scheduled", "next_run", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Infow("Weekly snapshot job stopping due to context cancellation")
			return ctx.Err()
		case <-timer.C:
			// failures are logged and recorded; the next week runs regardless
			_ = j.RunOnce(ctx)
		}
	}
}

func (j *WeeklySnapshotJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelCtx != nil {
		j.cancelCtx()
	}
}

// RunOnce captures the post snapshot and every author's like snapshot. Both
// are attempted; their errors are combined. Nothing is retried.
func (j *WeeklySnapshotJob) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	at := j.now()
	log := j.logger.With("run_id", runID)

	start := time.Now()
	post, postErr := j.snapshotter.ComputePostSnapshot(ctx, at)
	j.metrics.RecordSnapshotRun(ctx, "posts", postErr, time.Since(start))
	if postErr != nil {
		log.Errorw("Post snapshot failed", "error", postErr)
	} else {
		log.Infow("Post snapshot captured", "post_count", post.PostCount, "percentage_change", post.PercentageChange)
	}

	start = time.Now()
	likes, likeErr := j.snapshotter.ComputeAllLikeSnapshots(ctx, at)
	j.metrics.RecordSnapshotRun(ctx, "likes", likeErr, time.Since(start))
	if likeErr != nil {
		log.Errorw("Like snapshots failed", "error", likeErr, "captured", len(likes))
	} else {
		log.Infow("Like snapshots captured", "authors", len(likes))
	}

	return multierr.Append(postErr, likeErr)
}

// nextRun returns the first weekday/hour boundary strictly after now, in now's location.
func nextRun(now time.Time, weekday time.Weekday, hour int) time.Time {
	y, m, d := now.Date()
	candidate := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
