package trailing

import (
	"context"
	"fmt"
	"sync"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/exchange"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/store"

	"go.uber.org/zap"
)

// defaultStopDistancePct is used when a platform has no configured stop
// distance.
const defaultStopDistancePct = 0.05

// Outcome is the terminal state of one (asset, platform) evaluation.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeRaised
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRaised:
		return "raised"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pair selects one asset on one platform.
type Pair struct {
	Asset    string `json:"asset"`
	Platform string `json:"platform"`
}

// PairResult is the typed outcome of one pair's reconciliation. Err is set
// only when Outcome is OutcomeFailed.
type PairResult struct {
	Pair
	Outcome       Outcome `json:"outcome"`
	HighWaterMark float64 `json:"high_water_mark"`
	Err           error   `json:"-"`
}

// Reconciler compares live prices against persisted high-water marks and
// replaces protective stop orders as prices rise. State is partitioned by
// (asset, platform), so pairs are evaluated concurrently.
type Reconciler struct {
	logger   *zap.Logger
	cfg      *config.Config
	gateways map[string]exchange.Gateway
	balances *store.Repository[models.Balance]
	marks    *store.Repository[models.HighWaterMark]
}

// NewReconciler creates a reconciler over the given platform gateways.
func NewReconciler(
	logger *zap.Logger,
	cfg *config.Config,
	gateways map[string]exchange.Gateway,
	balances *store.Repository[models.Balance],
	marks *store.Repository[models.HighWaterMark],
) *Reconciler {
	return &Reconciler{
		logger:   logger,
		cfg:      cfg,
		gateways: gateways,
		balances: balances,
		marks:    marks,
	}
}

// Reconcile evaluates the selected pairs and returns one result per pair.
// A nil selection means every (asset, platform) with a non-zero balance.
// One pair failing never prevents the others from being processed.
func (r *Reconciler) Reconcile(ctx context.Context, pairs []Pair) []PairResult {
	if pairs == nil {
		var err error
		pairs, err = r.activePairs(ctx)
		if err != nil {
			r.logger.Error("Could not list pairs with balance", zap.Error(err))
			return nil
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	results := make(chan PairResult, len(pairs))

	for _, p := range pairs {
		wg.Add(1)
		go func(pair Pair) {
			defer wg.Done()
			results <- r.reconcilePair(ctx, pair)
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]PairResult, 0, len(pairs))
	for res := range results {
		if res.Outcome == OutcomeFailed {
			r.logger.Error("Reconciliation failed for pair",
				zap.String("asset", res.Asset),
				zap.String("platform", res.Platform),
				zap.Error(res.Err),
			)
		} else {
			r.logger.Debug("Reconciled pair",
				zap.String("asset", res.Asset),
				zap.String("platform", res.Platform),
				zap.String("outcome", res.Outcome.String()),
				zap.Float64("high_water_mark", res.HighWaterMark),
			)
		}
		out = append(out, res)
	}
	return out
}

// activePairs lists every (asset, platform) holding a non-zero balance on
// a platform we have a gateway for.
func (r *Reconciler) activePairs(ctx context.Context) ([]Pair, error) {
	balances, err := r.balances.FetchByFilter(ctx, "amount > ?", 0)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	pairs := make([]Pair, 0, len(balances))
	for _, b := range balances {
		if _, ok := r.gateways[b.Platform]; !ok {
			continue
		}
		if b.Asset == r.cfg.Tracking.QuoteCurrency {
			continue
		}
		pairs = append(pairs, Pair{Asset: b.Asset, Platform: b.Platform})
	}
	return pairs, nil
}

// reconcilePair runs the strictly sequential per-pair cycle: fetch state,
// compare against the mark, then cancel-before-place so the position is
// never left with two competing stops.
func (r *Reconciler) reconcilePair(ctx context.Context, p Pair) PairResult {
	fail := func(op string, err error) PairResult {
		return PairResult{Pair: p, Outcome: OutcomeFailed, Err: fmt.Errorf("%s: %w", op, err)}
	}

	gw, ok := r.gateways[p.Platform]
	if !ok {
		return fail("resolve gateway", fmt.Errorf("no gateway for platform %q", p.Platform))
	}

	balance, err := r.balances.FetchOne(ctx, "asset = ? AND platform = ?", p.Asset, p.Platform)
	if err != nil {
		return fail("fetch balance", err)
	}
	if balance == nil || balance.Amount <= 0 {
		return PairResult{Pair: p, Outcome: OutcomeUnchanged}
	}

	mark, err := r.marks.FetchOne(ctx, "asset = ? AND platform = ?", p.Asset, p.Platform)
	if err != nil {
		return fail("fetch high-water mark", err)
	}
	var highest float64
	if mark != nil {
		highest = mark.HighestPrice
	}

	symbol := exchange.FormatSymbol(gw.Style(), p.Asset, r.cfg.Tracking.QuoteCurrency)
	ticker, err := gw.FetchTicker(ctx, symbol)
	if err != nil {
		return fail("fetch ticker", err)
	}

	// Monotonicity guard: an equal or lower price is a no-op, never an
	// error.
	if ticker.Last <= highest {
		return PairResult{Pair: p, Outcome: OutcomeUnchanged, HighWaterMark: highest}
	}

	if err := gw.CancelOrders(ctx, symbol); err != nil {
		return fail("cancel stale stops", err)
	}

	stopPrice := ticker.Last * (1 - r.stopDistancePct(p.Platform))
	if _, err := gw.PlaceStopOrder(ctx, symbol, exchange.OrderSideSell, balance.Amount, stopPrice); err != nil {
		return fail("place stop order", err)
	}

	doc := &models.HighWaterMark{Asset: p.Asset, Platform: p.Platform, HighestPrice: ticker.Last}
	err = r.marks.Upsert(ctx, []string{"asset", "platform"}, []string{"highest_price", "updated_at"}, doc)
	if err != nil {
		return fail("persist high-water mark", err)
	}

	r.logger.Info("Raised trailing stop",
		zap.String("asset", p.Asset),
		zap.String("platform", p.Platform),
		zap.Float64("previous_high", highest),
		zap.Float64("new_high", ticker.Last),
		zap.Float64("stop_price", stopPrice),
		zap.Float64("amount", balance.Amount),
	)

	return PairResult{Pair: p, Outcome: OutcomeRaised, HighWaterMark: ticker.Last}
}

func (r *Reconciler) stopDistancePct(platform string) float64 {
	pct := r.cfg.Platforms[platform].StopDistancePct
	if pct <= 0 || pct >= 1 {
		return defaultStopDistancePct
	}
	return pct
}
