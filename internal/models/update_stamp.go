package models

import "gorm.io/gorm"

// UpdateStamp records when a data category was last refreshed, optionally
// scoped to one platform. Written only by the scheduler after a successful
// fetch-and-persist.
type UpdateStamp struct {
	gorm.Model
	Category    string `json:"category" gorm:"uniqueIndex:idx_stamp_category_platform"`
	Platform    string `json:"platform" gorm:"uniqueIndex:idx_stamp_category_platform"`
	RefreshedAt int64  `json:"refreshed_at"`
}
