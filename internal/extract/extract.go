// Package extract splits free-form chat text into hashtag tokens and a
// tag-stripped body. Tags are returned without the leading hash, in first
// occurrence order, with duplicates preserved.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// tagRE matches a hash-prefixed word token. Both the ASCII '#' and the
// full-width '＃' emitted by Japanese IMEs are accepted, and the token body
// may contain any Unicode letter or digit (Go's \w is ASCII-only).
var tagRE = regexp.MustCompile(`[#＃]([\p{L}\p{N}_]+)`)

// Tags extracts the hashtag tokens from text and returns them together with
// the body, i.e. text with every tag occurrence removed and whitespace
// collapsed to single spaces.
//
// Tag tokens are width-folded (full-width alphanumerics become ASCII) so that
// "＃ｔａｓｋ" and "#task" compare equal downstream; the body keeps the
// author's original characters.
func Tags(text string) (tags []string, body string) {
	matches := tagRE.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil, Collapse(text)
	}

	tags = make([]string, 0, len(matches))
	var b strings.Builder
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m[0]])
		tags = append(tags, width.Fold.String(text[m[2]:m[3]]))
		prev = m[1]
	}
	b.WriteString(text[prev:])
	return tags, Collapse(b.String())
}

// Collapse trims s and squeezes internal whitespace runs to a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HasTag reports whether tags contains want, comparing width-folded forms so
// callers may configure the tag in either half- or full-width characters.
func HasTag(tags []string, want string) bool {
	if want == "" {
		return false
	}
	want = width.Fold.String(want)
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
