package portfolio

import (
	"math"
	"testing"

	"portfolio-tracker-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func buyTrade(base string, amount, price, fee float64, feeCurrency string) models.Trade {
	return models.Trade{
		Base:          base,
		Quote:         "USDT",
		Side:          models.TradeSideBuy,
		Price:         price,
		Amount:        amount,
		Fee:           fee,
		FeeCurrency:   feeCurrency,
		EquivalentUSD: price * amount,
		Platform:      "binance",
	}
}

func sellTrade(base string, amount, price, fee float64, feeCurrency string) models.Trade {
	t := buyTrade(base, amount, price, fee, feeCurrency)
	t.Side = models.TradeSideSell
	return t
}

func TestComputeCostBasis(t *testing.T) {
	t.Run("SingleBuy", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, 0, "USDT"),
		}

		basis := ComputeCostBasis("BTC", trades)

		assert.Equal(t, 1.0, basis.TotalAmountBought)
		assert.Equal(t, 20000.0, basis.TotalBoughtValue)
		assert.Equal(t, 20000.0, basis.AverageEntryPrice)
	})

	t.Run("IgnoresOtherAssetsAndSells", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, 0, "USDT"),
			buyTrade("ETH", 10, 1500, 0, "USDT"),
			sellTrade("BTC", 0.5, 25000, 0, "USDT"),
		}

		basis := ComputeCostBasis("BTC", trades)

		assert.Equal(t, 1.0, basis.TotalAmountBought)
		assert.Equal(t, 20000.0, basis.TotalBoughtValue)
	})

	t.Run("FeeInQuoteCurrencyAddedDirectly", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, 15, "USDT"),
		}

		basis := ComputeCostBasis("BTC", trades)

		assert.Equal(t, 20015.0, basis.TotalBoughtValue)
	})

	t.Run("FeeInBaseCurrencyConvertedAtTradePrice", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, 0.001, "BTC"),
		}

		basis := ComputeCostBasis("BTC", trades)

		// 0.001 BTC * 20000 = 20 USDT of fees.
		assert.Equal(t, 20020.0, basis.TotalBoughtValue)
	})

	t.Run("NonPositiveFeeAndPriceTreatedAsZero", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, -3, "USDT"),
			buyTrade("BTC", 1, -100, 5, "BTC"),
			buyTrade("BTC", 1, math.NaN(), 5, "BTC"),
		}

		basis := ComputeCostBasis("BTC", trades)

		// Second and third trades contribute no value: price is invalid,
		// and a base-currency fee cannot be converted without one.
		assert.Equal(t, 3.0, basis.TotalAmountBought)
		assert.Equal(t, 20000.0, basis.TotalBoughtValue)
	})

	t.Run("RoundsRunningTotalAfterEveryFoldStep", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 0.3, 11111.111, 0, "USDT"), // 3333.3333 -> 3333.33
			buyTrade("BTC", 0.3, 11111.111, 0, "USDT"), // 6666.6633 -> 6666.66
		}

		basis := ComputeCostBasis("BTC", trades)

		// A single final rounding would give 6666.67; the per-step fold
		// gives 6666.66.
		assert.Equal(t, 6666.66, basis.TotalBoughtValue)
	})

	t.Run("NoBuysYieldsZeroAverage", func(t *testing.T) {
		basis := ComputeCostBasis("BTC", []models.Trade{sellTrade("BTC", 1, 20000, 0, "USDT")})

		assert.Equal(t, 0.0, basis.TotalAmountBought)
		assert.Equal(t, 0.0, basis.AverageEntryPrice)
	})

	t.Run("AverageTimesAmountMatchesValue", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 0.7, 19234.55, 12.5, "USDT"),
			buyTrade("BTC", 1.2, 21876.21, 0.0004, "BTC"),
			buyTrade("BTC", 0.05, 30100.99, 1, "USDT"),
		}

		basis := ComputeCostBasis("BTC", trades)

		assert.Greater(t, basis.TotalAmountBought, 0.0)
		assert.InDelta(t, basis.TotalBoughtValue, basis.AverageEntryPrice*basis.TotalAmountBought, 0.01)
	})
}

func TestComputeTotalSold(t *testing.T) {
	t.Run("SumsSellSideOnly", func(t *testing.T) {
		trades := []models.Trade{
			buyTrade("BTC", 1, 20000, 0, "USDT"),
			sellTrade("BTC", 0.5, 24000, 0, "USDT"),
			sellTrade("BTC", 0.1, 26000, 0, "USDT"),
			sellTrade("ETH", 2, 1500, 0, "USDT"),
		}

		assert.Equal(t, 14600.0, ComputeTotalSold("BTC", trades))
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		assert.Equal(t, 0.0, ComputeTotalSold("BTC", nil))
	})
}
