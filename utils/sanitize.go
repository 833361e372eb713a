package utils

import "github.com/microcosm-cc/bluemonday"

var (
	ugcPolicy   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps the safe subset of user HTML used in post and comment bodies.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// StripTags removes all markup, for single-line fields such as titles and bios.
func StripTags(input string) string {
	return plainPolicy.Sanitize(input)
}
