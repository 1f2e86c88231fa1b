package models

import "gorm.io/gorm"

// HighWaterMark is the highest price observed for an asset on a platform
// since trailing-stop tracking began. The reconciler only ever raises it;
// lowering requires an explicit external reset.
type HighWaterMark struct {
	gorm.Model
	Asset        string  `json:"asset" gorm:"uniqueIndex:idx_hwm_asset_platform"`
	Platform     string  `json:"platform" gorm:"uniqueIndex:idx_hwm_asset_platform"`
	HighestPrice float64 `json:"highest_price"`
}
