// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// StartExpiryScheduler runs ExpireStaleReferrals every interval in the
// background. Shut the returned scheduler down on exit.
func (s *ReferralService) StartExpiryScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.ExpireStaleReferrals(ctx); err != nil {
				log.WithError(err).Error("[Scheduler] referral expiry sweep failed")
			}
		}),
		gocron.WithName("referral-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule expiry sweep: %w", err)
	}

	sched.Start()
	log.WithField("interval", interval.String()).Info("Referral expiry sweep scheduled")
	return sched, nil
}
