package trailing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/exchange"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type placedOrder struct {
	Symbol    string
	Side      string
	Amount    float64
	StopPrice float64
}

// fakeGateway is an in-memory Gateway with scripted prices and failure
// injection. Reconciliation fans out over goroutines, so it is locked.
type fakeGateway struct {
	mu          sync.Mutex
	name        string
	tickers     map[string]float64
	tickerErr   error
	cancelErr   error
	placeErr    error
	cancelCalls []string
	placed      []placedOrder
}

var _ exchange.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) Name() string                { return g.name }
func (g *fakeGateway) Style() exchange.SymbolStyle { return exchange.SymbolStyleCompact }

func (g *fakeGateway) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tickerErr != nil {
		return nil, g.tickerErr
	}
	last, ok := g.tickers[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return &exchange.Ticker{Symbol: symbol, Last: last}, nil
}

func (g *fakeGateway) FetchBalances(ctx context.Context) ([]exchange.AssetBalance, error) {
	return nil, nil
}

func (g *fakeGateway) FetchMyTrades(ctx context.Context, symbol string) ([]exchange.TradeRecord, error) {
	return nil, nil
}

func (g *fakeGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}

func (g *fakeGateway) CancelOrders(ctx context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelCalls = append(g.cancelCalls, symbol)
	return nil
}

func (g *fakeGateway) PlaceStopOrder(ctx context.Context, symbol, side string, amount, stopPrice float64) (*exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	g.placed = append(g.placed, placedOrder{Symbol: symbol, Side: side, Amount: amount, StopPrice: stopPrice})
	return &exchange.Order{ID: "1", Symbol: symbol, Side: side, Amount: amount, StopPrice: stopPrice}, nil
}

type reconcilerFixture struct {
	reconciler *Reconciler
	balances   *store.Repository[models.Balance]
	marks      *store.Repository[models.HighWaterMark]
	gateways   map[string]exchange.Gateway
}

func newReconcilerFixture(t *testing.T, gateways map[string]exchange.Gateway) *reconcilerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Balance{}, &models.HighWaterMark{}))

	cfg := &config.Config{
		Tracking: config.Tracking{QuoteCurrency: "USDT"},
		Platforms: map[string]config.Platform{
			"binance": {StopDistancePct: 0.04},
			"kraken":  {StopDistancePct: 0.04},
		},
	}

	f := &reconcilerFixture{
		balances: store.NewRepository[models.Balance](db),
		marks:    store.NewRepository[models.HighWaterMark](db),
		gateways: gateways,
	}
	f.reconciler = NewReconciler(zap.NewNop(), cfg, gateways, f.balances, f.marks)
	return f
}

func (f *reconcilerFixture) seedBalance(t *testing.T, asset, platform string, amount float64) {
	t.Helper()
	require.NoError(t, f.balances.Insert(context.Background(),
		&models.Balance{Asset: asset, Platform: platform, Amount: amount}))
}

func (f *reconcilerFixture) seedMark(t *testing.T, asset, platform string, price float64) {
	t.Helper()
	require.NoError(t, f.marks.Insert(context.Background(),
		&models.HighWaterMark{Asset: asset, Platform: platform, HighestPrice: price}))
}

func (f *reconcilerFixture) markFor(t *testing.T, asset, platform string) float64 {
	t.Helper()
	mark, err := f.marks.FetchOne(context.Background(), "asset = ? AND platform = ?", asset, platform)
	require.NoError(t, err)
	if mark == nil {
		return 0
	}
	return mark.HighestPrice
}

func resultFor(results []PairResult, asset, platform string) *PairResult {
	for i := range results {
		if results[i].Asset == asset && results[i].Platform == platform {
			return &results[i]
		}
	}
	return nil
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("UnchangedWhenPriceBelowMark", func(t *testing.T) {
		gw := &fakeGateway{name: "binance", tickers: map[string]float64{"BTCUSDT": 49000}}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "BTC", "binance", 0.5)
		f.seedMark(t, "BTC", "binance", 50000)

		results := f.reconciler.Reconcile(ctx, []Pair{{Asset: "BTC", Platform: "binance"}})

		require.Len(t, results, 1)
		assert.Equal(t, OutcomeUnchanged, results[0].Outcome)
		assert.Empty(t, gw.cancelCalls)
		assert.Empty(t, gw.placed)
		assert.Equal(t, 50000.0, f.markFor(t, "BTC", "binance"))
	})

	t.Run("RaisedReplacesStopAndPersistsMark", func(t *testing.T) {
		gw := &fakeGateway{name: "binance", tickers: map[string]float64{"BTCUSDT": 52000}}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "BTC", "binance", 0.5)
		f.seedMark(t, "BTC", "binance", 50000)

		results := f.reconciler.Reconcile(ctx, []Pair{{Asset: "BTC", Platform: "binance"}})

		require.Len(t, results, 1)
		assert.Equal(t, OutcomeRaised, results[0].Outcome)
		assert.Equal(t, 52000.0, results[0].HighWaterMark)

		// Exactly one bunched cancel followed by one full-balance stop.
		require.Len(t, gw.cancelCalls, 1)
		assert.Equal(t, "BTCUSDT", gw.cancelCalls[0])
		require.Len(t, gw.placed, 1)
		assert.Equal(t, exchange.OrderSideSell, gw.placed[0].Side)
		assert.Equal(t, 0.5, gw.placed[0].Amount)
		assert.InDelta(t, 52000*0.96, gw.placed[0].StopPrice, 1e-6)

		assert.Equal(t, 52000.0, f.markFor(t, "BTC", "binance"))
	})

	t.Run("FirstSightingCreatesMark", func(t *testing.T) {
		gw := &fakeGateway{name: "binance", tickers: map[string]float64{"ETHUSDT": 3000}}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "ETH", "binance", 2)

		results := f.reconciler.Reconcile(ctx, []Pair{{Asset: "ETH", Platform: "binance"}})

		require.Len(t, results, 1)
		assert.Equal(t, OutcomeRaised, results[0].Outcome)
		assert.Equal(t, 3000.0, f.markFor(t, "ETH", "binance"))
	})

	t.Run("OneFailingPairDoesNotAffectOthers", func(t *testing.T) {
		healthy := &fakeGateway{name: "binance", tickers: map[string]float64{"BTCUSDT": 52000}}
		broken := &fakeGateway{name: "kraken", tickerErr: errors.New("rate limited")}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": healthy, "kraken": broken})
		f.seedBalance(t, "BTC", "binance", 0.5)
		f.seedBalance(t, "BTC", "kraken", 0.2)
		f.seedMark(t, "BTC", "binance", 50000)

		results := f.reconciler.Reconcile(ctx, []Pair{
			{Asset: "BTC", Platform: "binance"},
			{Asset: "BTC", Platform: "kraken"},
		})

		require.Len(t, results, 2)

		ok := resultFor(results, "BTC", "binance")
		require.NotNil(t, ok)
		assert.Equal(t, OutcomeRaised, ok.Outcome)

		failed := resultFor(results, "BTC", "kraken")
		require.NotNil(t, failed)
		assert.Equal(t, OutcomeFailed, failed.Outcome)
		assert.ErrorContains(t, failed.Err, "fetch ticker")
	})

	t.Run("MarkIsMonotonicAcrossFluctuations", func(t *testing.T) {
		gw := &fakeGateway{name: "binance", tickers: map[string]float64{"BTCUSDT": 52000}}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "BTC", "binance", 0.5)

		pairs := []Pair{{Asset: "BTC", Platform: "binance"}}
		for _, price := range []float64{52000, 51000, 53000, 48000, 53000} {
			gw.mu.Lock()
			gw.tickers["BTCUSDT"] = price
			gw.mu.Unlock()
			f.reconciler.Reconcile(ctx, pairs)
		}

		assert.Equal(t, 53000.0, f.markFor(t, "BTC", "binance"))
		// Two raises: 52000 and 53000; equal or lower prices are no-ops.
		assert.Len(t, gw.placed, 2)
	})

	t.Run("NilSelectionCoversNonZeroBalances", func(t *testing.T) {
		gw := &fakeGateway{name: "binance", tickers: map[string]float64{
			"BTCUSDT": 52000,
			"ETHUSDT": 3000,
		}}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "BTC", "binance", 0.5)
		f.seedBalance(t, "ETH", "binance", 2)
		f.seedBalance(t, "USDT", "binance", 1000) // quote currency, skipped
		f.seedBalance(t, "BTC", "kraken", 0.1)    // no gateway, skipped

		results := f.reconciler.Reconcile(ctx, nil)

		require.Len(t, results, 2)
		assert.NotNil(t, resultFor(results, "BTC", "binance"))
		assert.NotNil(t, resultFor(results, "ETH", "binance"))
	})

	t.Run("CancelFailureMarksPairFailedWithoutPlacing", func(t *testing.T) {
		gw := &fakeGateway{
			name:      "binance",
			tickers:   map[string]float64{"BTCUSDT": 52000},
			cancelErr: errors.New("api error"),
		}
		f := newReconcilerFixture(t, map[string]exchange.Gateway{"binance": gw})
		f.seedBalance(t, "BTC", "binance", 0.5)
		f.seedMark(t, "BTC", "binance", 50000)

		results := f.reconciler.Reconcile(ctx, []Pair{{Asset: "BTC", Platform: "binance"}})

		require.Len(t, results, 1)
		assert.Equal(t, OutcomeFailed, results[0].Outcome)
		assert.ErrorContains(t, results[0].Err, "cancel stale stops")
		// No new stop was placed and the mark stays put.
		assert.Empty(t, gw.placed)
		assert.Equal(t, 50000.0, f.markFor(t, "BTC", "binance"))
	})
}
