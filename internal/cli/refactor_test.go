package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newModelServer serves a canned chat-completion reply.
func newModelServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRefactorCommandRewritesFile(t *testing.T) {
	reply := "```json\n" + `{
		"refactored_main": "from utils.helpers import greet\n\ngreet()",
		"utility_modules": {"helpers.py": "def greet(): print('hi')"}
	}` + "\n```"
	server := newModelServer(t, reply)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	dir := t.TempDir()
	target := filepath.Join(dir, "main.py")
	if err := os.WriteFile(target, []byte("print('hi')"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	logDir := filepath.Join(dir, "logs")

	out, err := runCLI(t, "refactor", target, "--log-dir", logDir)
	if err != nil {
		t.Fatalf("refactor command failed: %v\n%s", err, out)
	}

	// Main rewritten.
	content, _ := os.ReadFile(target)
	if !strings.Contains(string(content), "from utils.helpers import greet") {
		t.Errorf("file not rewritten: %q", content)
	}

	// Backup holds the original.
	backup, err := os.ReadFile(target + ".backup")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "print('hi')" {
		t.Errorf("backup content wrong: %q", backup)
	}

	// Utility module extracted next to the file.
	helper, err := os.ReadFile(filepath.Join(dir, "utils", "helpers.py"))
	if err != nil {
		t.Fatalf("utility module missing: %v", err)
	}
	if !strings.Contains(string(helper), "def greet") {
		t.Errorf("utility module content wrong: %q", helper)
	}

	// One JSON log per run.
	logs, _ := filepath.Glob(filepath.Join(logDir, "*.json"))
	if len(logs) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(logs))
	}
	var entry refactorLogEntry
	data, _ := os.ReadFile(logs[0])
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("bad log JSON: %v", err)
	}
	if !entry.Success || entry.SuggestionType != "refactor" || entry.Language != "python" {
		t.Errorf("log entry wrong: %+v", entry)
	}
}

func TestRefactorCommandPreviewTouchesNothing(t *testing.T) {
	reply := "```json\n{\"refactored_main\": \"x = 1\"}\n```"
	server := newModelServer(t, reply)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	dir := t.TempDir()
	target := filepath.Join(dir, "main.py")
	if err := os.WriteFile(target, []byte("print('hi')"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	out, err := runCLI(t, "refactor", target, "--preview", "--log-dir", filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("refactor --preview failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "x = 1") {
		t.Errorf("preview output missing result: %q", out)
	}

	content, _ := os.ReadFile(target)
	if string(content) != "print('hi')" {
		t.Errorf("preview rewrote the file: %q", content)
	}
	if _, err := os.Stat(target + ".backup"); !os.IsNotExist(err) {
		t.Error("preview created a backup")
	}
}

func TestRefactorCommandNoBackup(t *testing.T) {
	reply := "```json\n{\"refactored_main\": \"x = 1\"}\n```"
	server := newModelServer(t, reply)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	dir := t.TempDir()
	target := filepath.Join(dir, "main.py")
	if err := os.WriteFile(target, []byte("print('hi')"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := runCLI(t, "refactor", target, "--no-backup", "--log-dir", filepath.Join(dir, "logs")); err != nil {
		t.Fatalf("refactor --no-backup failed: %v", err)
	}
	if _, err := os.Stat(target + ".backup"); !os.IsNotExist(err) {
		t.Error("--no-backup still wrote a backup")
	}
}

func TestRefactorCommandRejectsBadType(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := t.TempDir()
	target := filepath.Join(dir, "main.py")
	if err := os.WriteFile(target, []byte("print('hi')"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := runCLI(t, "refactor", target, "--type", "rewrite-in-rust"); err == nil {
		t.Fatal("expected an error for an invalid suggestion type")
	}
}

func TestRefactorCommandRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := runCLI(t, "refactor", "whatever.py"); err == nil {
		t.Fatal("expected an error without OPENAI_API_KEY")
	}
}
