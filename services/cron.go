package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"studyai-platform/internal/config"
	"studyai-platform/internal/logger"
	"studyai-platform/models"
)

// SweepService refreshes revision plans for users with overdue concepts on
// a nightly schedule, so a plan stays current even when the user has not
// uploaded or reviewed anything recently
type SweepService struct {
	config    *config.Config
	store     Store
	scheduler *Scheduler
	cron      *gocron.Scheduler
}

func NewSweepService(cfg *config.Config, store Store, scheduler *Scheduler) *SweepService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &SweepService{
		config:    cfg,
		store:     store,
		scheduler: scheduler,
		cron:      s,
	}
}

// Start registers the nightly sweep and runs the scheduler in the background
func (ss *SweepService) Start() error {
	_, err := ss.cron.Cron(ss.config.RevisionSweepCron).Tag("revision-sweep").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		ss.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	ss.cron.StartAsync()
	logger.Info("revision sweep scheduled", "cron", ss.config.RevisionSweepCron)
	return nil
}

func (ss *SweepService) Stop() {
	ss.cron.Stop()
}

// staleProcessingAge is how long a document may sit in processing before
// the sweep assumes its run died and marks it failed
const staleProcessingAge = 2 * time.Hour

// Sweep regenerates the plan for every user holding a concept that is due,
// then fails documents whose runs never finished. Per-user failures are
// logged and skipped so one bad account cannot stall the sweep.
func (ss *SweepService) Sweep(ctx context.Context) {
	users, err := ss.store.ListUsersWithDueConcepts(ctx, time.Now())
	if err != nil {
		logger.Error("sweep failed to list users", "error", err)
		return
	}

	refreshed := 0
	for _, userID := range users {
		if _, err := ss.scheduler.GeneratePlan(ctx, userID, models.StrategyBalanced, nil, defaultHorizonDays); err != nil {
			logger.Warn("sweep failed to refresh plan", "user_id", userID, "error", err)
			continue
		}
		refreshed++
	}

	logger.Info("revision sweep complete", "users", len(users), "refreshed", refreshed)

	stale, err := ss.store.MarkStaleProcessing(ctx, time.Now().Add(-staleProcessingAge))
	if err != nil {
		logger.Error("sweep failed to mark stale documents", "error", err)
		return
	}
	if stale > 0 {
		logger.Warn("marked stale documents as failed", "count", stale)
	}
}
