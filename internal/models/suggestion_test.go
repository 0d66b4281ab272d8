package models

import (
	"strings"
	"testing"
)

func TestParseSuggestionType(t *testing.T) {
	tests := []struct {
		raw     string
		want    SuggestionType
		wantErr bool
	}{
		{"", SuggestRefactor, false},
		{"refactor", SuggestRefactor, false},
		{"optimize", SuggestOptimize, false},
		{"document", SuggestDocument, false},
		{"style", SuggestStyle, false},
		{"security", SuggestSecurity, false},
		{"REFACTOR", "", true},
		{"delete-everything", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSuggestionType(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSuggestionType(%q): expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSuggestionType(%q) failed: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSuggestionType(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPromptsAreDistinct(t *testing.T) {
	seen := make(map[string]SuggestionType)
	for _, s := range SuggestionTypes {
		p := s.Prompt()
		if p == "" {
			t.Errorf("%s: empty prompt", s)
		}
		if prev, ok := seen[p]; ok {
			t.Errorf("%s and %s share a prompt", s, prev)
		}
		seen[p] = s
	}
	if !strings.Contains(SuggestSecurity.Prompt(), "security") {
		t.Error("security prompt does not mention security")
	}
}
