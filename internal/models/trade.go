package models

import "gorm.io/gorm"

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade represents one executed trade pulled from an exchange's history.
// Records are immutable once stored; the engine only ever reads them.
type Trade struct {
	gorm.Model
	Base          string  `json:"base" gorm:"index:idx_trade_base_platform"`
	Quote         string  `json:"quote"`
	Side          string  `json:"side"` // "buy" or "sell"
	Price         float64 `json:"price"`
	Amount        float64 `json:"amount"`
	Fee           float64 `json:"fee"`
	FeeCurrency   string  `json:"fee_currency"`
	EquivalentUSD float64 `json:"equivalent_usd"`
	Platform      string  `json:"platform" gorm:"index:idx_trade_base_platform"`
	Timestamp     int64   `json:"timestamp"`
}
