package models

import "gorm.io/gorm"

// Balance is the last known free balance of one asset on one platform.
type Balance struct {
	gorm.Model
	Asset    string  `json:"asset" gorm:"uniqueIndex:idx_balance_asset_platform"`
	Platform string  `json:"platform" gorm:"uniqueIndex:idx_balance_asset_platform"`
	Amount   float64 `json:"amount"`
}
