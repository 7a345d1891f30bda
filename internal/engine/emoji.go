package engine

import "regexp"

// Emoji extraction mirrors three token sources: unicode emoji runes,
// classic text emoticons, and platform custom emoji of the form
// <:name:id> / <a:name:id>. Tokens repeat once per occurrence so callers
// can count them directly.

type emoticonPattern struct {
	re         *regexp.Regexp
	normalized string
}

var emoticonPatterns = []emoticonPattern{
	{regexp.MustCompile(`:-?\)`), ":)"},
	{regexp.MustCompile(`:-?D`), ":D"},
	{regexp.MustCompile(`=\)`), "=)"},
	{regexp.MustCompile(`=D`), "=D"},
	{regexp.MustCompile(`:3`), ":3"},
	{regexp.MustCompile(`\^_\^`), "^_^"},
	{regexp.MustCompile(`\^-\^`), "^-^"},
	{regexp.MustCompile(`:>`), ":>"},
	{regexp.MustCompile(`:-?\(`), ":("},
	{regexp.MustCompile(`:'\(`), ":("},
	{regexp.MustCompile(`=\(`), "=("},
	{regexp.MustCompile(`;-?\)`), ";)"},
	{regexp.MustCompile(`;-?D`), ";D"},
	{regexp.MustCompile(`:[Oo]`), ":O"},
	{regexp.MustCompile(`o_O|O_o`), "o_O"},
	{regexp.MustCompile(`<3`), "<3"},
	{regexp.MustCompile(`:-?\|`), ":|"},
	{regexp.MustCompile(`:-?/`), ":/"},
	{regexp.MustCompile(`:-?\\`), `:\`},
	{regexp.MustCompile(`-_-`), "-_-"},
	{regexp.MustCompile(`>:-?\(`), ">:("},
	{regexp.MustCompile(`>:-?\)`), ">:)"},
	{regexp.MustCompile(`[Xx]D`), "XD"},
	{regexp.MustCompile(`uwu`), "uwu"},
	{regexp.MustCompile(`owo`), "owo"},
	{regexp.MustCompile(`>w<`), ">w<"},
}

var customEmojiRe = regexp.MustCompile(`<a?:(\w+):\d+>`)

// emojiRune reports whether r falls in one of the common emoji blocks.
func emojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport
		return true
	case r >= 0x1F900 && r <= 0x1FAFF: // supplemental symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols & dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	}
	return false
}

// ExtractEmojiTokens returns every emoji-like token in the message, one
// entry per occurrence.
func ExtractEmojiTokens(content string) []string {
	var tokens []string

	for _, r := range content {
		if emojiRune(r) {
			tokens = append(tokens, string(r))
		}
	}

	// Custom emoji are stripped before emoticon matching so that the
	// ":name:" body cannot also match a text emoticon.
	stripped := content
	for _, match := range customEmojiRe.FindAllStringSubmatch(content, -1) {
		tokens = append(tokens, match[1])
	}
	stripped = customEmojiRe.ReplaceAllString(stripped, "")

	for _, p := range emoticonPatterns {
		n := len(p.re.FindAllString(stripped, -1))
		for i := 0; i < n; i++ {
			tokens = append(tokens, p.normalized)
		}
	}

	return tokens
}
