package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = 10 * time.Minute

type expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Job periodically removes sessions that outlived the inactivity lifetime so they do not
// count against a plan ceiling until their holder happens to send a request.
type Job struct {
	sessions expirer
	interval time.Duration
	logger   *zap.Logger
}

func New(sessions expirer, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.sessions == nil {
		return nil
	}

	n, err := j.sessions.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire stale sessions: %w", err)
	}
	if n > 0 {
		j.logger.Info("cleanup expired sessions completed", zap.Int("expired", n))
	}
	return nil
}

// Start runs the job once immediately and then every interval until ctx is done.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.Run(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("session cleanup failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
