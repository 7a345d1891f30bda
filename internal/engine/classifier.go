package engine

import (
	"math"
	"strings"
	"unicode"
)

// Pattern classifiers are pure functions over message text. They hold no
// state and never retain the message after returning.

const (
	repetitionRunLen   = 4
	mashingMinLen      = 5
	mashingVowelRatio  = 0.3
	mashingEntropyBits = 3.5
	capsMinLetters     = 10
	capsRatio          = 0.7
	excessiveMinLen    = 500
)

var keyboardRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}

// RepetitionInfo describes a char_repetition hit: which characters were
// repeated and how many qualifying runs were found.
type RepetitionInfo struct {
	Chars []rune
	Runs  int
}

// DetectCharRepetition reports any case-insensitive run of four or more
// identical characters.
func DetectCharRepetition(content string) (bool, RepetitionInfo) {
	var info RepetitionInfo
	seen := make(map[rune]struct{})

	runes := []rune(strings.ToLower(content))
	runLen := 1
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && runes[i] == runes[i-1] {
			runLen++
			continue
		}
		if runLen >= repetitionRunLen {
			info.Runs++
			if _, ok := seen[runes[i-1]]; !ok {
				seen[runes[i-1]] = struct{}{}
				info.Chars = append(info.Chars, runes[i-1])
			}
		}
		runLen = 1
	}

	return info.Runs > 0, info
}

// DetectCapsSpam reports text whose alphabetic length exceeds ten with at
// least 70% uppercase letters. Punctuation and spaces are ignored.
func DetectCapsSpam(content string) bool {
	letters := 0
	capitals := 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				capitals++
			}
		}
	}
	if letters <= capsMinLetters {
		return false
	}
	return float64(capitals)/float64(letters) >= capsRatio
}

// DetectKeyboardMashing flags probable keyboard mashing. Low vowel
// fraction alone has false positives (acronyms, short words), so it is
// gated on length and combined with either a keyboard-row run or high
// character entropy.
func DetectKeyboardMashing(content string) bool {
	stripped := strings.ReplaceAll(content, " ", "")
	runes := []rune(strings.ToLower(stripped))
	if len(runes) < mashingMinLen {
		return false
	}

	letters := 0
	vowels := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if strings.ContainsRune("aeiou", r) {
				vowels++
			}
		}
	}
	if letters == 0 {
		return false
	}
	if float64(vowels)/float64(letters) > mashingVowelRatio {
		return false
	}

	return hasKeyboardRun(string(runes), 4) || charEntropy(runes) > mashingEntropyBits
}

func hasKeyboardRun(text string, runLen int) bool {
	if len(text) < runLen {
		return false
	}
	for i := 0; i+runLen <= len(text); i++ {
		sub := text[i : i+runLen]
		for _, row := range keyboardRows {
			if strings.Contains(row, sub) || strings.Contains(reverse(row), sub) {
				return true
			}
		}
	}
	return false
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// charEntropy returns the Shannon entropy of the rune distribution in
// bits per character.
func charEntropy(runes []rune) float64 {
	if len(runes) == 0 {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range runes {
		freq[r]++
	}
	total := float64(len(runes))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// DetectExcessiveLength flags messages of 500+ characters that consist of
// a detectably repeated sub-pattern. Legitimately long prose is not
// flagged.
func DetectExcessiveLength(content string) bool {
	if len(content) < excessiveMinLen {
		return false
	}

	// Full periodicity: content is some unit repeated end to end.
	if periodic(content) {
		return true
	}

	// Chunk repetition: a short leading chunk that covers at least half
	// of the text when counted non-overlapping.
	for _, size := range []int{4, 8, 16, 32} {
		if len(content) < size*2 {
			break
		}
		needle := content[:size]
		if strings.Count(content, needle)*size >= len(content)/2 {
			return true
		}
	}
	return false
}

// periodic reports whether s equals a proper substring repeated. Uses the
// doubled-string rotation property.
func periodic(s string) bool {
	if len(s) < 2 {
		return false
	}
	doubled := (s + s)[1 : 2*len(s)-1]
	return strings.Contains(doubled, s)
}
