package models

import (
	"time"

	"gorm.io/datatypes"
)

// PostSnapshot records the number of posts created in the ISO week containing
// CapturedDate and the change against the week before. A nil PercentageChange
// means the previous week had nothing to compare against.
type PostSnapshot struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CapturedDate     datatypes.Date `gorm:"index;not null" json:"captured_date"`
	PostCount        int64          `gorm:"not null;default:0" json:"post_count"`
	PercentageChange *float64       `json:"percentage_change"`
	CreatedAt        time.Time      `json:"created_at"`
}

// LikeSnapshot is the per-author variant: likes received by UserID's posts.
type LikeSnapshot struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"index;not null" json:"user_id"`
	CapturedDate     datatypes.Date `gorm:"index;not null" json:"captured_date"`
	LikeCount        int64          `gorm:"not null;default:0" json:"like_count"`
	PercentageChange *float64       `json:"percentage_change"`
	CreatedAt        time.Time      `json:"created_at"`
}
