package service

import (
	"context"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/rl1809/velocity/internal/core/domain"
	"github.com/rl1809/velocity/internal/port"
)

// Replicator copies ledger changes into an OwnerMirror using a pool of workers.
type Replicator struct {
	mirror  port.OwnerMirror
	workers int
	timeout time.Duration
}

func NewReplicator(mirror port.OwnerMirror, workers int, timeout time.Duration) *Replicator {
	if workers < 1 {
		workers = 1
	}
	return &Replicator{
		mirror:  mirror,
		workers: workers,
		timeout: timeout,
	}
}

// Run blocks until changes is closed and every worker has drained it.
func (r *Replicator) Run(ctx context.Context, changes <-chan domain.OwnerChange) {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.workerLoop(slogctx.With(ctx, "worker", id), changes)
		}(i)
	}
	slogctx.Info(ctx, "replicator started", "workers", r.workers)

	wg.Wait()
	slogctx.Info(ctx, "replicator stopped")
}

func (r *Replicator) workerLoop(ctx context.Context, changes <-chan domain.OwnerChange) {
	for change := range changes {
		saveCtx, cancel := context.WithTimeout(ctx, r.timeout)

		if err := r.mirror.SaveOwner(saveCtx, change); err != nil {
			slogctx.Error(ctx, "failed to mirror owner",
				"owner_id", change.Owner.ID, "revision", change.Revision, "error", err)
		} else {
			slogctx.Debug(ctx, "mirrored owner",
				"owner_id", change.Owner.ID, "revision", change.Revision)
		}

		cancel()
	}
}
