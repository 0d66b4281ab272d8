package models

import "fmt"

// SuggestionType selects which instruction the refactor agent receives.
// It is a closed enum; ParseSuggestionType rejects anything else so the
// prompt dispatch below is exhaustive.
type SuggestionType string

const (
	SuggestRefactor SuggestionType = "refactor"
	SuggestOptimize SuggestionType = "optimize"
	SuggestDocument SuggestionType = "document"
	SuggestStyle    SuggestionType = "style"
	SuggestSecurity SuggestionType = "security"
)

// SuggestionTypes lists all valid suggestion types.
var SuggestionTypes = []SuggestionType{
	SuggestRefactor,
	SuggestOptimize,
	SuggestDocument,
	SuggestStyle,
	SuggestSecurity,
}

// ParseSuggestionType validates a raw tag. Empty defaults to refactor.
func ParseSuggestionType(raw string) (SuggestionType, error) {
	if raw == "" {
		return SuggestRefactor, nil
	}
	s := SuggestionType(raw)
	switch s {
	case SuggestRefactor, SuggestOptimize, SuggestDocument, SuggestStyle, SuggestSecurity:
		return s, nil
	}
	return "", fmt.Errorf("invalid suggestion_type %q, must be one of %v", raw, SuggestionTypes)
}

// Prompt returns the instruction text sent to the agent for this type.
func (s SuggestionType) Prompt() string {
	switch s {
	case SuggestOptimize:
		return "Optimize this code for performance, efficiency, and best practices. Suggest improvements for speed, memory usage, and algorithm efficiency."
	case SuggestDocument:
		return "Add comprehensive documentation to this code. Include docstrings, comments, and type hints to improve code readability and maintainability."
	case SuggestStyle:
		return "Improve the code style and formatting according to the language's style conventions. Focus on naming conventions, spacing, and overall code aesthetics."
	case SuggestSecurity:
		return "Review this code for security vulnerabilities and suggest improvements. Focus on input validation, error handling, and secure coding practices."
	default:
		return "Refactor this code by extracting reusable components into utility modules. Focus on code organization and modularity."
	}
}
