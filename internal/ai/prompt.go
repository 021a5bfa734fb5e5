package ai

import "strings"

const basePrompt = `You sort items posted on a free community giveaway board into categories.
Read the title and description and answer with exactly one category slug from the list below.
Answer with the slug only: no explanation, punctuation, quotes or line breaks.
If nothing fits, answer "others".

Categories:`

func categoryPrompt(slugs []string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	for _, s := range slugs {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}
