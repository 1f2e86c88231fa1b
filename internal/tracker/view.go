package tracker

import (
	"context"
	"fmt"
	"sort"

	"portfolio-tracker-go/internal/portfolio"
)

// positionsCacheKey caches the computed valuation of the whole portfolio.
const positionsCacheKey = "positions"

// Position is the valuation of one asset: its balance across platforms,
// the aggregated cost basis, realized sales and the current take-profit
// ladder.
type Position struct {
	Asset     string              `json:"asset"`
	Balance   float64             `json:"balance"`
	CostBasis portfolio.CostBasis `json:"cost_basis"`
	TotalSold float64             `json:"total_sold"`
	Ladder    portfolio.Ladder    `json:"ladder"`
}

// Positions values every held asset, serving from the cache when fresh
// and recomputing from the store otherwise. An unknown configured
// strategy is a configuration error and is returned, not defaulted.
func (e *Engine) Positions(ctx context.Context) ([]Position, error) {
	if cached, _, ok := e.cache.Get(positionsCacheKey); ok {
		if positions, ok := cached.([]Position); ok {
			return positions, nil
		}
	}

	balances, err := e.balances.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	held := make(map[string]float64)
	for _, b := range balances {
		if b.Asset == e.cfg.Tracking.QuoteCurrency || b.Amount <= 0 {
			continue
		}
		held[b.Asset] += b.Amount
	}

	assets := make([]string, 0, len(held))
	for asset := range held {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	positions := make([]Position, 0, len(assets))
	for _, asset := range assets {
		trades, err := e.trades.FetchByFilter(ctx, "base = ?", asset)
		if err != nil {
			return nil, fmt.Errorf("fetch trades for %s: %w", asset, err)
		}

		strat, err := portfolio.ParseStrategy(e.cfg.Tracking.StrategyFor(asset))
		if err != nil {
			return nil, fmt.Errorf("strategy for %s: %w", asset, err)
		}

		basis := portfolio.ComputeCostBasis(asset, trades)
		sold := portfolio.ComputeTotalSold(asset, trades)
		ladder := portfolio.BuildLadder(portfolio.LadderInput{
			Asset:             asset,
			Balance:           held[asset],
			MaxExposure:       e.cfg.Tracking.MaxExposureFor(asset),
			Multiplier:        strat.Multiplier(),
			TotalBought:       basis.TotalBoughtValue,
			TotalSold:         sold,
			AverageEntryPrice: basis.AverageEntryPrice,
		})

		positions = append(positions, Position{
			Asset:     asset,
			Balance:   held[asset],
			CostBasis: basis,
			TotalSold: sold,
			Ladder:    ladder,
		})
	}

	e.cache.Set(positionsCacheKey, positions, e.cfg.Scheduler.IntervalFor("balances"))
	return positions, nil
}
