package models

import "gorm.io/gorm"

// OpenOrder is a snapshot of a resting order on an exchange, refreshed by
// the scheduler. The reconciler treats stop-type orders as protective.
type OpenOrder struct {
	gorm.Model
	Platform  string  `json:"platform" gorm:"index:idx_order_platform_symbol"`
	Symbol    string  `json:"symbol" gorm:"index:idx_order_platform_symbol"`
	OrderID   string  `json:"order_id"`
	Side      string  `json:"side"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	StopPrice float64 `json:"stop_price"`
}
