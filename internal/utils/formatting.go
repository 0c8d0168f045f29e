package utils

import (
	"regexp"
	"unicode/utf8"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func StripANSI(input string) string {
	return ansiRe.ReplaceAllString(input, "")
}

// VisibleWidth counts runes once color codes are removed.
func VisibleWidth(s string) int {
	return utf8.RuneCountInString(StripANSI(s))
}

func GetMaxWidth(lines []string) int {
	maxWidth := 0
	for _, line := range lines {
		if w := VisibleWidth(line); w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}
