// services/scheduler.go
package services

import (
	"context"
	"time"

	"level-publish-system/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartPublishScheduler publishes due scheduled levels every interval.
// Callers shut the returned scheduler down on exit.
func (s *LevelService) StartPublishScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.PublishDue(ctx, s.Now().UTC())
			if err != nil {
				logger.Log.Error("[SCHEDULER] DB error", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Log.Info("[SCHEDULER] published scheduled levels", zap.Int("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
