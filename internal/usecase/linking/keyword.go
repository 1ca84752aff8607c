package linking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keyword matches a keyword or phrase case-insensitively on word boundaries.
// Word characters are Unicode letters, digits, combining marks and '_', so
// "café" matches in "Best café" and "caf" does not.
type Keyword struct {
	re *regexp.Regexp
}

// CompileKeyword prepares keyword for matching. It returns false for a blank keyword.
func CompileKeyword(keyword string) (*Keyword, bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, false
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword))
	if err != nil {
		return nil, false
	}
	return &Keyword{re: re}, true
}

// FindIndex returns the byte offsets of the first whole-word occurrence in
// text, or nil.
func (k *Keyword) FindIndex(text string) []int {
	for start := 0; start <= len(text); {
		loc := k.re.FindStringIndex(text[start:])
		if loc == nil {
			return nil
		}
		s, e := start+loc[0], start+loc[1]
		if atBoundary(text, s) && atBoundary(text, e) {
			return []int{s, e}
		}
		_, size := utf8.DecodeRuneInString(text[s:])
		if size == 0 {
			return nil
		}
		start = s + size
	}
	return nil
}

// atBoundary reports whether i sits between a word and a non-word rune.
func atBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
