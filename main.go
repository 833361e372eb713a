package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/jobs"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/routes"
	"github.com/cppla/aiblog/services"
	"github.com/cppla/aiblog/utils"
)

func main() {
	job := flag.String("job", "", "run a one-off job and exit (weekly-snapshot)")
	flag.Parse()

	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	utils.SetJWTSecret(cfg.JWTSecret)
	utils.InitRedis(cfg)

	var (
		m       *metrics.Metrics
		handler http.Handler
	)
	if cfg.MetricsEnabled {
		var err error
		if m, handler, err = metrics.Setup(cfg.ServiceName); err != nil {
			utils.Sugar.Fatalf("metrics setup failed: %v", err)
		}
		utils.SetCacheRecorder(m)
	}

	db := config.InitDatabase(utils.Logger, models.All()...)

	snapshotJob := jobs.NewWeeklySnapshotJob(
		services.NewAnalyticsService(db, utils.Logger),
		m,
		utils.Sugar.Named("weekly_snapshot"),
		jobs.WeeklySnapshotConfig{Weekday: time.Weekday(cfg.SnapshotWeekday), Hour: cfg.SnapshotHour},
	)

	switch *job {
	case "":
	case "weekly-snapshot":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := snapshotJob.RunOnce(ctx); err != nil {
			utils.Sugar.Fatalf("weekly snapshot failed: %v", err)
		}
		return
	default:
		utils.Sugar.Fatalf("unknown job %q", *job)
	}

	if cfg.SnapshotEnabled {
		go func() {
			if err := snapshotJob.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				utils.Sugar.Errorf("weekly snapshot scheduler stopped: %v", err)
			}
		}()
		defer snapshotJob.Stop()
	}

	r := routes.SetupRouter(cfg, db, m, handler)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
