package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmojiTokens_Unicode(t *testing.T) {
	tokens := ExtractEmojiTokens("hi 😀 bye 🚀")
	assert.Equal(t, []string{"😀", "🚀"}, tokens)
}

func TestExtractEmojiTokens_CustomEmoji(t *testing.T) {
	tokens := ExtractEmojiTokens("<:pog:1234567> and <a:wave:999>")
	assert.Equal(t, []string{"pog", "wave"}, tokens)
}

func TestExtractEmojiTokens_Emoticons(t *testing.T) {
	tokens := ExtractEmojiTokens("ok :) fine :D")
	assert.Contains(t, tokens, ":)")
	assert.Contains(t, tokens, ":D")
}

func TestExtractEmojiTokens_RepeatsCountPerOccurrence(t *testing.T) {
	tokens := ExtractEmojiTokens("😀😀😀")
	assert.Len(t, tokens, 3)
}

func TestExtractEmojiTokens_CustomEmojiBodyNotDoubleCounted(t *testing.T) {
	// The ":name:" body of a custom emoji must not also match emoticons.
	tokens := ExtractEmojiTokens("<:o3o:123>")
	assert.Equal(t, []string{"o3o"}, tokens)
}

func TestExtractEmojiTokens_PlainText(t *testing.T) {
	assert.Empty(t, ExtractEmojiTokens("just a plain sentence"))
}
