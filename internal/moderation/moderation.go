// Package moderation screens chat names and messages before they are posted.
package moderation

import (
	"errors"
	"strings"
)

var (
	// ErrBannedName is returned when a display name contains a banned word.
	ErrBannedName = errors.New("that name is not allowed in chat")
	// ErrBannedMessage is returned when a message contains a banned word.
	ErrBannedMessage = errors.New("that message contains banned words")
)

// DefaultBannedWords are matched as lower-case substrings.
var DefaultBannedWords = []string{"nigg", "fagg", "spic", "kike", "chink", "coon", "retard"}

// Filter rejects names and messages that contain banned substrings, then
// consults an optional scripted rule.
type Filter struct {
	words []string
	rule  *Rule
}

// NewFilter creates a filter over words. A nil slice selects
// DefaultBannedWords; an empty non-nil slice disables word matching.
func NewFilter(words []string, rule *Rule) *Filter {
	if words == nil {
		words = DefaultBannedWords
	}
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Filter{words: lowered, rule: rule}
}

// Contains reports whether text contains any banned word, ignoring case.
func (f *Filter) Contains(text string) bool {
	normalized := strings.ToLower(text)
	for _, w := range f.words {
		if strings.Contains(normalized, w) {
			return true
		}
	}
	return false
}

// Check validates a sender name and message body.
func (f *Filter) Check(name, message string) error {
	if f.Contains(name) {
		return ErrBannedName
	}
	if f.Contains(message) {
		return ErrBannedMessage
	}
	if f.rule != nil {
		return f.rule.Check(name, message)
	}
	return nil
}
