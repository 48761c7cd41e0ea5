package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"classconnect-auth/internal/metrics"
	"classconnect-auth/internal/repositories"
)

// PinReaper periodically deletes PIN rows older than the retention window.
// Expired rows are already unusable; this only keeps the table small.
type PinReaper struct {
	pins      repositories.VerificationPinRepository
	interval  time.Duration
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewPinReaper(pins repositories.VerificationPinRepository, interval, retention time.Duration, log *zap.Logger) *PinReaper {
	return &PinReaper{
		pins:      pins,
		interval:  interval,
		retention: retention,
		log:       log.Named("pin_reaper"),
		now:       time.Now,
	}
}

// Run blocks until ctx is done. A non-positive interval disables the reaper.
func (r *PinReaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("[pin_reaper] sweep failed", zap.Error(err))
			}
		}
	}
}

func (r *PinReaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.pins.DeleteCreatedBefore(ctx, r.now().UTC().Add(-r.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.PinsReapedTotal.Add(float64(n))
		r.log.Info("[pin_reaper] removed stale pins", zap.Int64("count", n))
	}
	return n, nil
}
