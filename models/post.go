package models

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Post status values.
const (
	StatusPublished  = "PUB"
	StatusDraft      = "DRF"
	StatusModeration = "MOD"
)

const (
	maxSlugLength   = 100
	slugBaseLength  = maxSlugLength - 5 // room for "-NNNN"
	maxSlugAttempts = 50
	runesPerMinute  = 200
)

// ErrSlugExhausted is returned when no free slug was found for a title.
var ErrSlugExhausted = errors.New("could not allocate a unique slug")

// slugSuffix returns the random four digit suffix appended to generated slugs.
var slugSuffix = func() int { return 1000 + rand.Intn(9000) }

// Post represents a blog article created by a user.
type Post struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	Title           string     `gorm:"size:500;not null" json:"title"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Slug            string     `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Status          string     `gorm:"size:3;not null;default:DRF;index" json:"status"`
	ReadingDuration int        `gorm:"not null;default:1" json:"reading_duration"`
	PubDate         *time.Time `gorm:"index" json:"pub_date"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	User            User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Tags            []Tag      `gorm:"many2many:post_tags;" json:"tags"`
}

// PostViewer marks that a signed-in user has opened a post. One row per pair.
type PostViewer struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidStatus reports whether s is one of the known post statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPublished, StatusDraft, StatusModeration:
		return true
	}
	return false
}

// ReadingMinutes estimates reading time from the content length.
func ReadingMinutes(content string) int {
	if n := utf8.RuneCountInString(content) / runesPerMinute; n > 1 {
		return n
	}
	return 1
}

// BeforeCreate fills in the slug when absent, re-rolling the suffix on collision.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Slug != "" {
		return nil
	}
	base := slugBase(p.Title)
	db := tx.Session(&gorm.Session{NewDB: true})
	for i := 0; i < maxSlugAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, slugSuffix())
		var n int64
		if err := db.Model(&Post{}).Where("slug = ?", candidate).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			p.Slug = candidate
			return nil
		}
	}
	return ErrSlugExhausted
}

// BeforeSave keeps derived fields in sync with content and status.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.ReadingDuration = ReadingMinutes(p.Content)
	if p.Status == StatusPublished && p.PubDate == nil {
		now := time.Now()
		p.PubDate = &now
	}
	return nil
}

func slugBase(title string) string {
	s := slug.Make(title)
	if len(s) > slugBaseLength {
		s = strings.TrimRight(s[:slugBaseLength], "-")
	}
	if s == "" {
		s = "post"
	}
	return s
}
