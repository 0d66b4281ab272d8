package models

// RefactorResult is the structured reply the agent returns: the rewritten
// main file, extracted utility modules keyed by filename, and the original
// code preserved as a backup.
type RefactorResult struct {
	RefactoredMain string            `json:"refactored_main"`
	UtilityModules map[string]string `json:"utility_modules,omitempty"`
	BackupFile     string            `json:"backup_file,omitempty"`
}
