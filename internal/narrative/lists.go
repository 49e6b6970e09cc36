package narrative

import (
	"regexp"
	"strings"
)

var listPrefix = regexp.MustCompile(`^\s*(?:[-•*▪◦]+|\(?\d{1,2}[.)]|[a-zA-Z][.)](?:\s))\s*`)

// SplitList turns a bulleted or numbered block into items. Unmarked
// continuation lines are joined onto the previous item; a block with no
// list markers at all is split on sentences ending in a line break.
func SplitList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if listPrefix.MatchString(trimmed) {
			item := strings.TrimSpace(listPrefix.ReplaceAllString(trimmed, ""))
			if item != "" {
				items = append(items, item)
			}
			continue
		}
		if len(items) > 0 && startsLowercase(trimmed) {
			items[len(items)-1] += " " + trimmed
			continue
		}
		items = append(items, trimmed)
	}
	return items
}

func startsLowercase(s string) bool {
	for _, r := range s {
		return r >= 'a' && r <= 'z'
	}
	return false
}
