package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// MaxCommentLength bounds comment content, counted in runes.
const MaxCommentLength = 4000

// ErrSelfParent is returned when a comment is saved as a reply to itself.
var ErrSelfParent = errors.New("comment cannot reply to itself")

// Comment is a reply to a post, optionally threaded under another comment of
// the same post. Removing a parent removes its replies.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Parent    *Comment  `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// IsReply reports whether the comment is threaded under another one.
func (c *Comment) IsReply() bool { return c.ParentID != nil }

func (c *Comment) BeforeSave(tx *gorm.DB) error {
	if c.ParentID != nil && c.ID != 0 && *c.ParentID == c.ID {
		return ErrSelfParent
	}
	return nil
}
