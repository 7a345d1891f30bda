package models

import "strings"

// Counter categories. Emoji usage is tracked per token under the
// "emoji:" prefix (e.g. "emoji:😀", "emoji::)", "emoji:custom_name").
const (
	CategoryCharRepetition  = "char_repetition"
	CategoryKeyboardMashing = "keyboard_mashing"
	CategoryCapsSpam        = "caps_spam"
	CategoryDuplicate       = "duplicate_message"
	CategoryExcessiveLength = "excessive_length"

	EmojiCategoryPrefix = "emoji:"
)

var spamCategories = map[string]struct{}{
	CategoryCharRepetition:  {},
	CategoryKeyboardMashing: {},
	CategoryCapsSpam:        {},
	CategoryDuplicate:       {},
	CategoryExcessiveLength: {},
}

func IsSpamCategory(category string) bool {
	_, ok := spamCategories[category]
	return ok
}

func IsEmojiCategory(category string) bool {
	return strings.HasPrefix(category, EmojiCategoryPrefix)
}

func EmojiCategory(token string) string {
	return EmojiCategoryPrefix + token
}
