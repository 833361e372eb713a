package models

import (
	"strings"

	"gorm.io/gorm"
)

// TagPrefix is the marker every stored tag name starts with.
const TagPrefix = "#"

// Tag labels posts. TagName is unique and always starts with TagPrefix.
type Tag struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	TagName string `gorm:"size:79;not null;uniqueIndex" json:"tag_name"`
}

// NormalizeTagName trims the input and adds the leading marker when it is missing.
func NormalizeTagName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, TagPrefix) {
		return name
	}
	return TagPrefix + name
}

// BeforeSave normalizes the name on both create and update.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	t.TagName = NormalizeTagName(t.TagName)
	return nil
}
