package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

// Reaper periodically reclaims expired nonces and the credentials and
// placeholder slots of abandoned registrations. The overlap guard is
// advisory: at-most-once nonce consumption is already enforced at the
// data layer, so a concurrent tick would simply find no matching rows.
type Reaper struct {
	store    model.AuthStore
	logger   *logger.Logger
	interval time.Duration

	now     func() time.Time
	running atomic.Bool
}

func NewReaper(store model.AuthStore, logger *logger.Logger, interval time.Duration) *Reaper {
	return &Reaper{store: store, logger: logger, interval: interval, now: time.Now}
}

// Run ticks at the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one sweep. A tick arriving while a sweep is still in flight
// is skipped, not queued.
func (r *Reaper) Tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer r.running.Store(false)

	reaped, err := r.store.SweepExpired(ctx, r.now())
	if err != nil {
		r.logger.Error("Reaper: sweep failed", "error", err.Error())
		return
	}
	if reaped > 0 {
		r.logger.Info("Reaper: reclaimed expired challenges", "count", reaped)
	}
}
