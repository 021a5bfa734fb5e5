package ai

import (
	"regexp"
	"strings"
)

// FallbackCategory is returned when the model's answer names no known category.
const FallbackCategory = "others"

var tokenRegex = regexp.MustCompile(`[a-z0-9]+(?:[-_][a-z0-9]+)*`)

// ParseCategory maps a free-text model answer onto one of slugs. An exact answer wins, then the
// first slug mentioned as a whole token, then FallbackCategory.
func ParseCategory(text string, slugs []string) string {
	known := make(map[string]string, len(slugs))
	for _, s := range slugs {
		known[strings.ToLower(strings.TrimSpace(s))] = s
	}
	clean := strings.ToLower(strings.TrimSpace(text))
	clean = strings.Trim(clean, "`\"'. \n\t")
	if s, ok := known[clean]; ok {
		return s
	}
	for _, tok := range tokenRegex.FindAllString(clean, -1) {
		if s, ok := known[tok]; ok {
			return s
		}
	}
	return FallbackCategory
}
