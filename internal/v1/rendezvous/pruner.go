package rendezvous

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
)

// PruneInterval is the cadence of the background pruner (§4.8).
const PruneInterval = 30 * time.Second

// RunPruner calls PruneExpired on every tick until ctx is cancelled. It
// is meant to run in its own goroutine and never blocks shutdown: the
// caller cancels ctx and RunPruner returns immediately.
func RunPruner(ctx context.Context, r *Registry) {
	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := r.clock.NowMs()
			r.PruneExpired(now)
			logging.Info(ctx, "pruned expired rendezvous records", zap.Int64("now_ms", now))
		}
	}
}
