package service

import (
	"context"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/repository"

	"github.com/sirupsen/logrus"
)

// Janitor periodically purges expired verification codes and sessions so
// the tables do not accumulate dead rows.
type Janitor struct {
	codes    repository.VerificationCodeRepository
	sessions repository.SessionRepository
	clock    Clock
	logger   logrus.FieldLogger
	interval time.Duration
}

func NewJanitor(
	codes repository.VerificationCodeRepository,
	sessions repository.SessionRepository,
	clock Clock,
	logger logrus.FieldLogger,
	interval time.Duration,
) *Janitor {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		codes:    codes,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
		interval: interval,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	now := j.clock.Now()
	if err := j.codes.DeleteExpired(ctx, now); err != nil {
		j.logger.WithError(err).Error("verification code cleanup failed")
	}
	if err := j.sessions.CleanupExpired(ctx); err != nil {
		j.logger.WithError(err).Error("session cleanup failed")
	}
}
