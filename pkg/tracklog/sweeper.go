package tracklog

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/hugoworkshops/workshopbot/pkg/logger"
)

// Sweeper runs retention sweeps on a cron schedule.
type Sweeper struct {
	store         *Store
	cronExpr      string
	retentionDays int
	cron          *gronx.Gronx
}

// NewSweeper validates the cron expression and builds a sweeper.
func NewSweeper(store *Store, cronExpr string, retentionDays int) (*Sweeper, error) {
	cron := gronx.New()
	if !cron.IsValid(cronExpr) {
		return nil, &InvalidCronError{Expr: cronExpr}
	}
	return &Sweeper{
		store:         store,
		cronExpr:      cronExpr,
		retentionDays: retentionDays,
		cron:          cron,
	}, nil
}

// InvalidCronError reports a bad sweep schedule.
type InvalidCronError struct {
	Expr string
}

func (e *InvalidCronError) Error() string {
	return "invalid sweep cron expression: " + e.Expr
}

// Run checks the schedule once a minute and sweeps when due. Blocks until
// the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	logger.InfoCF("tracklog", "Retention sweeper started", map[string]any{
		"cron":           s.cronExpr,
		"retention_days": s.retentionDays,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.cron.IsDue(s.cronExpr, time.Now())
			if err != nil || !due {
				continue
			}
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	nowMS := time.Now().UnixMilli()
	retentionMS := int64(s.retentionDays) * 24 * int64(time.Hour/time.Millisecond)
	removed, err := s.store.Sweep(ctx, nowMS, retentionMS)
	if err != nil {
		logger.ErrorCF("tracklog", "Retention sweep failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.InfoCF("tracklog", "Retention sweep completed", map[string]any{
		"rows_removed": removed,
	})
}
