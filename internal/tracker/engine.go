package tracker

import (
	"context"
	"time"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/exchange"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/notify"
	"portfolio-tracker-go/internal/scheduler"
	"portfolio-tracker-go/internal/store"
	"portfolio-tracker-go/internal/trailing"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Engine ties the scheduler and the trailing-stop reconciler into one
// periodic loop over all configured platforms.
type Engine struct {
	logger     *zap.Logger
	cfg        *config.Config
	gateways   map[string]exchange.Gateway
	cache      *scheduler.Cache
	sched      *scheduler.Scheduler
	reconciler *trailing.Reconciler

	balances *store.Repository[models.Balance]
	trades   *store.Repository[models.Trade]
	orders   *store.Repository[models.OpenOrder]
	marks    *store.Repository[models.HighWaterMark]
	stamps   *store.Repository[models.UpdateStamp]
}

// NewEngine wires the engine over the given platform gateways. Platforms
// missing credentials should already be filtered out of the map.
func NewEngine(
	logger *zap.Logger,
	cfg *config.Config,
	db *gorm.DB,
	gateways map[string]exchange.Gateway,
	notifier notify.Notifier,
) *Engine {
	e := &Engine{
		logger:   logger,
		cfg:      cfg,
		gateways: gateways,
		cache:    scheduler.NewCache(nil),
		balances: store.NewRepository[models.Balance](db),
		trades:   store.NewRepository[models.Trade](db),
		orders:   store.NewRepository[models.OpenOrder](db),
		marks:    store.NewRepository[models.HighWaterMark](db),
		stamps:   store.NewRepository[models.UpdateStamp](db),
	}

	e.sched = scheduler.NewScheduler(logger, cfg.Scheduler, e.stamps, e.cache, notifier, nil)
	e.registerFetchers()

	e.reconciler = trailing.NewReconciler(logger, cfg, gateways, e.balances, e.marks)
	return e
}

// Run starts the engine's main loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Tracking.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting tracker loop",
		zap.Duration("interval", interval),
		zap.Int("platforms", len(e.gateways)),
	)

	// First pass immediately so a fresh start does not wait a full tick.
	e.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping tracker engine...")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick refreshes stale data concurrently across platforms, then runs one
// reconciliation pass over every held position.
func (e *Engine) tick(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for name := range e.gateways {
		platform := name
		g.Go(func() error {
			for _, category := range scheduler.AllCategories() {
				if err := e.sched.RefreshIfStale(gctx, category, platform); err != nil {
					// One platform's failure must not stall the others.
					e.logger.Warn("Refresh skipped",
						zap.String("platform", platform),
						zap.String("category", category.String()),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("Refresh pass aborted", zap.Error(err))
		return
	}

	results := e.reconciler.Reconcile(ctx, nil)

	var raised, unchanged, failed int
	for _, res := range results {
		switch res.Outcome {
		case trailing.OutcomeRaised:
			raised++
		case trailing.OutcomeUnchanged:
			unchanged++
		case trailing.OutcomeFailed:
			failed++
		}
	}
	e.logger.Info("Tick complete",
		zap.Int("pairs", len(results)),
		zap.Int("raised", raised),
		zap.Int("unchanged", unchanged),
		zap.Int("failed", failed),
	)
}
