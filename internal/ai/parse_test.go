package ai

import "testing"

func TestParseCategory(t *testing.T) {
	slugs := []string{"furniture", "kitchen", "baby-kids", "others"}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact", "furniture", "furniture"},
		{"quoted", "`kitchen`", "kitchen"},
		{"upper with period", "Kitchen.", "kitchen"},
		{"hyphenated in sentence", "I think baby-kids fits best", "baby-kids"},
		{"unknown", "electronics", FallbackCategory},
		{"empty", "", FallbackCategory},
		{"partial word only", "furnitures", FallbackCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCategory(tt.input, slugs); got != tt.want {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
		})
	}
}
