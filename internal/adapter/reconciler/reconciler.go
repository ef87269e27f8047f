package reconciler

import (
	"context"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port"
	"go.uber.org/zap"
)

// Reconciler periodically sweeps for orders left paid-but-unsettled
// by a settlement write failure. Gateway retries alone cannot heal
// those rows: the idempotency guard answers the retry before the
// settlement write is reattempted.
type Reconciler struct {
	logger   *zap.Logger
	interval time.Duration
}

func NewReconciler(conf *config.Settlement, log *zap.Logger) (*Reconciler, error) {
	return &Reconciler{
		logger:   log,
		interval: conf.ReconcileInterval,
	}, nil
}

// Schedule starts the sweep loop. It stops when ctx is cancelled.
func (r *Reconciler) Schedule(ctx context.Context, svc port.Service) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recovered, err := svc.ReconcileUnsettled(ctx)
				if err != nil {
					r.logger.Error("reconcile sweep failed", zap.Error(err))
					continue
				}
				if recovered > 0 {
					r.logger.Info("reconcile sweep recovered settlements",
						zap.Int("count", recovered))
				}
			}
		}
	}()
}
