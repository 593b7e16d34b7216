// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartExpirySweep expires overdue missions every interval. The caller shuts the
// returned scheduler down on exit.
func (s *MissionService) StartExpirySweep(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := s.ExpireOverdue(ctx, time.Now())
			if err != nil {
				s.Log.Error("mission expiry sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				s.Log.Info("missions expired", zap.Int64("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
