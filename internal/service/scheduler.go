package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleResync registers a periodic ReconcileAll on a new cron scheduler.
// The caller starts and stops the returned scheduler.
func ScheduleResync(schedule string, r *Resyncer, log *zap.Logger) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.ReconcileAll(ctx); err != nil {
			log.Warn("scheduled resync finished with errors", zap.Error(err))
			return
		}
		log.Info("scheduled resync completed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid resync schedule %q: %w", schedule, err)
	}
	return scheduler, nil
}
