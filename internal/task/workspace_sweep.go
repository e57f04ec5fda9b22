package task

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultWorkspaceIdleTimeout is how long a browser workspace survives without a request.
const DefaultWorkspaceIdleTimeout = 30 * time.Minute

// WorkspaceSweeper drops workspaces last used before a cutoff and reports how many it dropped.
type WorkspaceSweeper interface {
	SweepIdle(cutoff time.Time) int
}

// WorkspaceSweepJob discards idle console workspaces together with their forms and notifications.
type WorkspaceSweepJob struct {
	sweeper     WorkspaceSweeper
	clock       clockwork.Clock
	idleTimeout time.Duration
	logger      *zap.Logger
}

func NewWorkspaceSweepJob(sweeper WorkspaceSweeper, clk clockwork.Clock, idleTimeout time.Duration, logger *zap.Logger) *WorkspaceSweepJob {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultWorkspaceIdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceSweepJob{
		sweeper:     sweeper,
		clock:       clk,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Run sweeps once.
func (job *WorkspaceSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cutoff := job.clock.Now().Add(-job.idleTimeout)
	if swept := job.sweeper.SweepIdle(cutoff); swept > 0 {
		job.logger.Info("workspaces_swept", zap.Int("count", swept), zap.Time("cutoff", cutoff))
	}
	return nil
}
