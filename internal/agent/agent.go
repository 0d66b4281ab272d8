package agent

import (
	"context"

	"github.com/renaissancebro/refactor-agent/internal/models"
)

// Invoker sends code plus a suggestion type to the refactor agent and
// returns its structured result. Implementations own their own timeouts;
// callers must not hold any store lock across Invoke.
type Invoker interface {
	Invoke(ctx context.Context, code string, suggestion models.SuggestionType, language string) (*models.RefactorResult, error)
}

// systemPrompt is the agent's standing instruction.
const systemPrompt = `You are a professional software refactor agent. When given source code, you:
1. Identify reusable components and group them logically
2. Extract them to proper utility modules
3. Generate clean import statements for main files
4. Return a preview-only output as a dictionary of files`

// buildMessage assembles the per-request instruction around the code.
func buildMessage(code string, suggestion models.SuggestionType, language string) string {
	return suggestion.Prompt() + `

Return the structured JSON output with these exact keys:
- 'refactored_main': The improved version of the original file
- 'backup_file': The old code to be saved to a separate file
- 'utility_modules': Dictionary of extracted utility modules (filename -> code)

Code to improve:
` + "```" + language + "\n" + code + "\n```"
}
