// Package sweep builds cubes for units that became complete without an
// explicit build request, on a cron schedule.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
)

// #region types

// Builder is the slice of the pipeline the sweeper drives.
type Builder interface {
	PendingUnits(ctx context.Context) ([]string, error)
	BuildCube(ctx context.Context, seuID string) (orchestrator.BuildCubeResponse, error)
}

// Result tallies one sweep pass.
type Result struct {
	Pending  int `json:"pending"`
	Built    int `json:"built"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Sweeper runs RunOnce on a cron schedule. Overlapping ticks are skipped.
type Sweeper struct {
	builder  Builder
	logger   *zap.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	entryID cron.EntryID
}

// #endregion types

// #region lifecycle

// New creates a Sweeper. The schedule uses standard five-field cron syntax
// or a descriptor such as "@every 1m".
func New(b Builder, schedule string, logger *zap.Logger) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{builder: b, logger: logger.Named("sweep"), schedule: schedule}, nil
}

// Start schedules the sweep. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	runCtx, cancel := context.WithCancel(ctx)
	id, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(runCtx); err != nil && runCtx.Err() == nil {
			s.logger.Warn("sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron, s.cancel, s.entryID = c, cancel, id
	c.Start()
	s.logger.Info("sweep started", zap.String("schedule", s.schedule))
	return nil
}

// Stop cancels any in-flight pass and waits for it to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	s.logger.Info("sweep stopped")
}

// Next reports when the next pass is due. The zero time means the sweeper is
// not running.
func (s *Sweeper) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// #endregion lifecycle

// #region run

// RunOnce builds every pending unit in order. A unit whose cube fails eval is
// counted as rejected; other per-unit failures are counted and logged, and
// the pass continues. Only listing failures and cancellation abort the pass.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ids, err := s.builder.PendingUnits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list pending units: %w", err)
	}

	res := Result{Pending: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		resp, err := s.builder.BuildCube(ctx, id)
		switch {
		case err == nil:
			res.Built++
			s.logger.Debug("cube built",
				zap.String("seu_id", id), zap.String("mode", string(resp.Cube.M.CognitiveMode)))
		case errors.Is(err, orchestrator.ErrCubeRejected):
			res.Rejected++
			s.logger.Warn("cube rejected", zap.String("seu_id", id), zap.Error(err))
		default:
			res.Failed++
			s.logger.Warn("cube build failed", zap.String("seu_id", id), zap.Error(err))
		}
	}

	if res.Pending > 0 {
		s.logger.Info("sweep pass",
			zap.Int("pending", res.Pending), zap.Int("built", res.Built),
			zap.Int("rejected", res.Rejected), zap.Int("failed", res.Failed))
	}
	return res, nil
}

// #endregion run
