package portfolio

import (
	"math"

	"portfolio-tracker-go/internal/models"

	"github.com/shopspring/decimal"
)

// CostBasis is the aggregated buy side of one asset's trade history.
type CostBasis struct {
	TotalAmountBought float64 `json:"total_amount_bought"`
	TotalBoughtValue  float64 `json:"total_bought_value"`
	AverageEntryPrice float64 `json:"average_entry_price"`
}

// round2 rounds a quote-currency figure to two decimal places.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// sanitize treats non-positive and non-numeric values as zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return v
}

// feeInQuote converts a trade's fee into quote-currency terms. A fee paid
// in the quote currency counts as-is; anything else is assumed to be paid
// in the base currency and converted at the trade price.
func feeInQuote(t models.Trade) float64 {
	fee := sanitize(t.Fee)
	if fee == 0 {
		return 0
	}
	if t.FeeCurrency == t.Quote {
		return fee
	}
	price := sanitize(t.Price)
	if price == 0 {
		return 0
	}
	return fee * price
}

// ComputeCostBasis reduces an asset's buy trades into total amount, total
// value and weighted average entry price. The running value total is
// rounded to two decimals after every fold step, not once at the end.
func ComputeCostBasis(asset string, trades []models.Trade) CostBasis {
	var amount, value float64
	for _, t := range trades {
		if t.Side != models.TradeSideBuy || t.Base != asset {
			continue
		}
		price := sanitize(t.Price)
		qty := sanitize(t.Amount)
		value = round2(value + price*qty + feeInQuote(t))
		amount += qty
	}

	basis := CostBasis{
		TotalAmountBought: amount,
		TotalBoughtValue:  value,
	}
	if amount > 0 {
		basis.AverageEntryPrice = value / amount
	}
	return basis
}

// ComputeTotalSold reduces an asset's sell trades into total sold value in
// quote-currency terms, with the same per-step rounding and fee conversion
// as the buy side.
func ComputeTotalSold(asset string, trades []models.Trade) float64 {
	var value float64
	for _, t := range trades {
		if t.Side != models.TradeSideSell || t.Base != asset {
			continue
		}
		price := sanitize(t.Price)
		qty := sanitize(t.Amount)
		value = round2(value + price*qty + feeInQuote(t))
	}
	return value
}
