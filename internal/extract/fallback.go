package extract

import (
	"regexp"
	"strings"
)

var (
	numberedRe  = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)
	bulletRe    = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+)$`)
	userStoryRe = regexp.MustCompile(`(?i)as an? [^.\n]+?,? I want [^.\n]+? so that [^.\n]+`)
)

// FallbackItems recovers plain-text items when no JSON could be extracted:
// numbered list entries, then bullet entries. Checkbox bullets keep only the
// text after the marker. Returns nil when neither pattern matches.
func FallbackItems(raw string) []string {
	var items []string
	for _, m := range numberedRe.FindAllStringSubmatch(raw, -1) {
		if item := cleanItem(m[1]); item != "" {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		return items
	}
	for _, m := range bulletRe.FindAllStringSubmatch(raw, -1) {
		if item := cleanItem(m[1]); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// FallbackStories pulls "As a ... I want ... so that ..." sentences out of
// free text. Used when a story generation response carries no JSON at all.
func FallbackStories(raw string) []string {
	var stories []string
	for _, m := range userStoryRe.FindAllString(raw, -1) {
		stories = append(stories, strings.TrimSpace(m))
	}
	return stories
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[ ] ")
	s = strings.TrimPrefix(s, "[x] ")
	s = strings.Trim(s, "*_`")
	return strings.TrimSpace(s)
}
