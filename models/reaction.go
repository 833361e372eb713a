package models

import "time"

// Reaction is a user's like on any registered target kind. A (user, target)
// pair holds at most one row; toggling off hard-deletes it.
type Reaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_reaction_author_target,priority:1" json:"user_id"`
	TargetType string    `gorm:"size:16;not null;uniqueIndex:idx_reaction_author_target,priority:2;index:idx_reaction_target,priority:1" json:"target_type"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_reaction_author_target,priority:3;index:idx_reaction_target,priority:2" json:"target_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
