package detector

import (
	"regexp"
	"strings"
	"unicode"
)

// Link and custom-emoji shapes are fixed; compiled once at init
var (
	linkPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|discord(?:\.gg|app\.com/invite)/\S+)`)

	customEmojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)
)

// CountLinks counts URL-like substrings: http(s) URLs, www. hosts and
// invite-style links
func CountLinks(content string) int {
	return len(linkPattern.FindAllStringIndex(content, -1))
}

// CountEmojis counts emoji tokens: custom `<:name:id>` emoji plus
// unicode emoji glyphs
func CountEmojis(content string) int {
	count := len(customEmojiPattern.FindAllStringIndex(content, -1))

	// Strip custom emoji so their ids aren't scanned rune by rune
	stripped := customEmojiPattern.ReplaceAllString(content, "")
	for _, r := range stripped {
		if isEmojiRune(r) {
			count++
		}
	}
	return count
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, transport, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r == 0x2764 || r == 0x2B50:
		return true
	case unicode.Is(unicode.Sk, r) && r >= 0x1F000:
		return true
	}
	return false
}

// SameContent compares message contents case-insensitively, ignoring
// surrounding whitespace
func SameContent(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
