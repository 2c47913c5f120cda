package registry

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// Pinyinize renders a security name as full pinyin and first-letter initials,
// e.g. "贵州茅台" -> ("guizhoumaotai", "gzmt"). Non-Han runes (digits, latin
// letters in ETF names) pass through lowercased; whitespace is dropped.
func Pinyinize(name string) (full, initials string) {
	args := pinyin.NewArgs()
	args.Fallback = func(r rune, a pinyin.Args) []string {
		if unicode.IsSpace(r) {
			return nil
		}
		return []string{strings.ToLower(string(r))}
	}

	var fullB, initB strings.Builder
	for _, syllables := range pinyin.Pinyin(name, args) {
		if len(syllables) == 0 {
			continue
		}
		s := syllables[0]
		fullB.WriteString(s)
		initB.WriteRune([]rune(s)[0])
	}
	return fullB.String(), initB.String()
}
