package models

import "time"

// Follow is a directed edge from FollowerID to FolloweeID.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:1" json:"follower_id"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_pair,priority:2;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
