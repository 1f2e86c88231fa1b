package tracker

import (
	"context"
	"fmt"

	"portfolio-tracker-go/internal/exchange"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/scheduler"
)

// registerFetchers binds every refresh category to its fetch-and-persist
// routine. The scheduler owns staleness, retries and stamping; these
// routines only move data from a gateway into the store.
func (e *Engine) registerFetchers() {
	e.sched.Register(scheduler.CategoryBalances, e.refreshBalances)
	e.sched.Register(scheduler.CategoryTrades, e.refreshTrades)
	e.sched.Register(scheduler.CategoryOrders, e.refreshOrders)
	e.sched.Register(scheduler.CategoryTickers, e.refreshTickers)
}

func (e *Engine) gateway(platform string) (exchange.Gateway, error) {
	gw, ok := e.gateways[platform]
	if !ok {
		return nil, fmt.Errorf("no gateway for platform %q", platform)
	}
	return gw, nil
}

// heldAssets lists the assets with a non-zero stored balance on a
// platform, excluding the quote currency itself.
func (e *Engine) heldAssets(ctx context.Context, platform string) ([]string, error) {
	balances, err := e.balances.FetchByFilter(ctx, "platform = ? AND amount > ?", platform, 0)
	if err != nil {
		return nil, err
	}
	assets := make([]string, 0, len(balances))
	for _, b := range balances {
		if b.Asset == e.cfg.Tracking.QuoteCurrency {
			continue
		}
		assets = append(assets, b.Asset)
	}
	return assets, nil
}

// refreshBalances replaces the platform's stored balance snapshot.
func (e *Engine) refreshBalances(ctx context.Context, platform string) (any, error) {
	gw, err := e.gateway(platform)
	if err != nil {
		return nil, err
	}
	raw, err := gw.FetchBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	docs := make([]*models.Balance, 0, len(raw))
	payload := make([]models.Balance, 0, len(raw))
	for _, b := range raw {
		doc := models.Balance{Asset: b.Asset, Platform: platform, Amount: b.Amount}
		docs = append(docs, &doc)
		payload = append(payload, doc)
	}
	if err := e.balances.Replace(ctx, docs, "platform = ?", platform); err != nil {
		return nil, err
	}
	return payload, nil
}

// refreshTrades pulls the trade history for every held asset. History is
// replaced per (platform, asset) so assets sold off elsewhere keep their
// records.
func (e *Engine) refreshTrades(ctx context.Context, platform string) (any, error) {
	gw, err := e.gateway(platform)
	if err != nil {
		return nil, err
	}
	assets, err := e.heldAssets(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("list held assets: %w", err)
	}

	quote := e.cfg.Tracking.QuoteCurrency
	total := 0
	for _, asset := range assets {
		symbol := exchange.FormatSymbol(gw.Style(), asset, quote)
		records, err := gw.FetchMyTrades(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("fetch trades for %s: %w", symbol, err)
		}
		docs := make([]*models.Trade, 0, len(records))
		for _, rec := range records {
			docs = append(docs, &models.Trade{
				Base:          asset,
				Quote:         quote,
				Side:          rec.Side,
				Price:         rec.Price,
				Amount:        rec.Amount,
				Fee:           rec.Fee,
				FeeCurrency:   rec.FeeCurrency,
				EquivalentUSD: rec.Price * rec.Amount,
				Platform:      platform,
				Timestamp:     rec.Timestamp,
			})
		}
		err = e.trades.Replace(ctx, docs, "platform = ? AND base = ?", platform, asset)
		if err != nil {
			return nil, err
		}
		total += len(docs)
	}
	return total, nil
}

// refreshOrders snapshots the resting orders for every held asset.
func (e *Engine) refreshOrders(ctx context.Context, platform string) (any, error) {
	gw, err := e.gateway(platform)
	if err != nil {
		return nil, err
	}
	assets, err := e.heldAssets(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("list held assets: %w", err)
	}

	quote := e.cfg.Tracking.QuoteCurrency
	var payload []models.OpenOrder
	for _, asset := range assets {
		symbol := exchange.FormatSymbol(gw.Style(), asset, quote)
		orders, err := gw.FetchOpenOrders(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("fetch open orders for %s: %w", symbol, err)
		}
		docs := make([]*models.OpenOrder, 0, len(orders))
		for _, o := range orders {
			doc := models.OpenOrder{
				Platform:  platform,
				Symbol:    symbol,
				OrderID:   o.ID,
				Side:      o.Side,
				Type:      o.Type,
				Amount:    o.Amount,
				StopPrice: o.StopPrice,
			}
			docs = append(docs, &doc)
			payload = append(payload, doc)
		}
		err = e.orders.Replace(ctx, docs, "platform = ? AND symbol = ?", platform, symbol)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// refreshTickers fetches the latest prices for every held asset. Tickers
// are ephemeral, so the payload only lives in the cache.
func (e *Engine) refreshTickers(ctx context.Context, platform string) (any, error) {
	gw, err := e.gateway(platform)
	if err != nil {
		return nil, err
	}
	assets, err := e.heldAssets(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("list held assets: %w", err)
	}

	quote := e.cfg.Tracking.QuoteCurrency
	prices := make(map[string]float64, len(assets))
	for _, asset := range assets {
		symbol := exchange.FormatSymbol(gw.Style(), asset, quote)
		ticker, err := gw.FetchTicker(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("fetch ticker for %s: %w", symbol, err)
		}
		prices[symbol] = ticker.Last
	}
	return prices, nil
}
