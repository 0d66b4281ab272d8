package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/renaissancebro/refactor-agent/internal/agent"
	"github.com/renaissancebro/refactor-agent/internal/models"
)

var languageByExt = map[string]string{
	".py":   "python",
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".rb":   "ruby",
	".java": "java",
	".rs":   "rust",
}

func newRefactorCmd(a *app) *cobra.Command {
	var (
		suggestionFlag string
		preview        bool
		noBackup       bool
		logDir         string
	)

	cmd := &cobra.Command{
		Use:   "refactor <file>",
		Short: "Refactor a source file in place using the model",
		Long: `Reads the file, sends it to the model with the chosen suggestion
type, and rewrites it with the result. Extracted utility modules are written
to a utils/ directory next to the file. The original content is saved to a
.backup file unless --no-backup is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.openAIKey() == "" {
				return fmt.Errorf("OPENAI_API_KEY is not set")
			}

			path := args[0]
			code, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			suggestion, err := models.ParseSuggestionType(suggestionFlag)
			if err != nil {
				return err
			}
			language := languageByExt[strings.ToLower(filepath.Ext(path))]
			if language == "" {
				language = "python"
			}

			inv, err := agent.NewOpenAIAgent(agent.OpenAIConfig{
				APIKey:  a.openAIKey(),
				Model:   a.openAIModel(),
				BaseURL: a.openAIBaseURL(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Refactoring %s (%s, %s)...\n", path, language, suggestion)
			start := time.Now()
			result, err := inv.Invoke(cmd.Context(), string(code), suggestion, language)
			elapsed := time.Since(start)

			entry := refactorLogEntry{
				Timestamp:      time.Now().Format(time.RFC3339),
				SessionID:      uuid.New().String(),
				OriginalFile:   path,
				SuggestionType: string(suggestion),
				Language:       language,
				InputBytes:     len(code),
				ResponseTimeMS: elapsed.Milliseconds(),
				Preview:        preview,
			}

			if err != nil {
				entry.Error = err.Error()
				writeRefactorLog(cmd, logDir, entry)
				return fmt.Errorf("refactor failed: %w", err)
			}

			entry.Success = true
			entry.OutputBytes = len(result.RefactoredMain)
			for name := range result.UtilityModules {
				entry.UtilityModules = append(entry.UtilityModules, name)
			}

			if preview {
				fmt.Fprintln(cmd.OutOrStdout(), "--- refactored main (preview) ---")
				fmt.Fprintln(cmd.OutOrStdout(), result.RefactoredMain)
				for name, content := range result.UtilityModules {
					fmt.Fprintf(cmd.OutOrStdout(), "--- utils/%s (preview) ---\n", name)
					fmt.Fprintln(cmd.OutOrStdout(), content)
				}
				writeRefactorLog(cmd, logDir, entry)
				return nil
			}

			if !noBackup {
				backup := path + ".backup"
				if err := os.WriteFile(backup, code, 0o644); err != nil {
					return fmt.Errorf("failed to write backup: %w", err)
				}
				entry.BackupFile = backup
				fmt.Fprintf(cmd.OutOrStdout(), "Backup saved to %s\n", backup)
			}

			if err := os.WriteFile(path, []byte(result.RefactoredMain), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			if len(result.UtilityModules) > 0 {
				utilsDir := filepath.Join(filepath.Dir(path), "utils")
				if err := os.MkdirAll(utilsDir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", utilsDir, err)
				}
				for name, content := range result.UtilityModules {
					// The model names modules; keep only the base name so it
					// cannot write outside utils/.
					target := filepath.Join(utilsDir, filepath.Base(name))
					if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
						return fmt.Errorf("failed to write %s: %w", target, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s\n", target)
				}
			}

			writeRefactorLog(cmd, logDir, entry)
			fmt.Fprintf(cmd.OutOrStdout(), "Done in %s\n", elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&suggestionFlag, "type", "t", "refactor",
		"Suggestion type: refactor, optimize, document, style, security")
	cmd.Flags().BoolVar(&preview, "preview", false, "Print the result without touching any files")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip writing the .backup file")
	cmd.Flags().StringVar(&logDir, "log-dir", "refactor_logs", "Directory for per-run JSON logs")

	return cmd
}

type refactorLogEntry struct {
	Timestamp      string   `json:"timestamp"`
	SessionID      string   `json:"session_id"`
	OriginalFile   string   `json:"original_file"`
	SuggestionType string   `json:"suggestion_type"`
	Language       string   `json:"language"`
	InputBytes     int      `json:"input_bytes"`
	OutputBytes    int      `json:"output_bytes"`
	UtilityModules []string `json:"utility_modules,omitempty"`
	BackupFile     string   `json:"backup_file,omitempty"`
	ResponseTimeMS int64    `json:"response_time_ms"`
	Preview        bool     `json:"preview"`
	Success        bool     `json:"success"`
	Error          string   `json:"error,omitempty"`
}

// writeRefactorLog is best-effort: a failed log write never fails the run.
func writeRefactorLog(cmd *cobra.Command, dir string, entry refactorLogEntry) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to create log dir: %v\n", err)
		return
	}
	name := filepath.Join(dir, time.Now().Format("2006-01-02_150405")+"_"+entry.SessionID[:8]+".json")
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to write log: %v\n", err)
	}
}
