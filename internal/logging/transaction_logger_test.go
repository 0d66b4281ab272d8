package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, maxSize int64, maxFiles int) (*TransactionLogger, string) {
	t.Helper()
	dir := t.TempDir()
	template := filepath.Join(dir, "transactions-%s.jsonl")
	l, err := NewTransactionLogger(template, maxSize, maxFiles, 100, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewTransactionLogger failed: %v", err)
	}
	return l, dir
}

func readAllEntries(t *testing.T, dir string) []TransactionLog {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "transactions-*.jsonl"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}

	var entries []TransactionLog
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var entry TransactionLog
			if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
				t.Errorf("bad JSONL line in %s: %v", path, err)
				continue
			}
			entries = append(entries, entry)
		}
		f.Close()
	}
	return entries
}

func TestTransactionLoggerWritesEntries(t *testing.T) {
	l, dir := newTestLogger(t, 1<<20, 3)

	l.Log(TransactionLog{
		Origin:         "api",
		SessionID:      "s1",
		SuggestionType: "refactor",
		Language:       "python",
		InputBytes:     100,
		OutputBytes:    120,
		Success:        true,
	})
	l.Log(TransactionLog{
		Origin:         "cli",
		SuggestionType: "optimize",
		Language:       "go",
		Success:        false,
		Error:          "model API returned status 429",
	})

	l.Shutdown()

	entries := readAllEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byOrigin := make(map[string]TransactionLog)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
		byOrigin[e.Origin] = e
	}
	if byOrigin["api"].SessionID != "s1" || !byOrigin["api"].Success {
		t.Errorf("api entry mangled: %+v", byOrigin["api"])
	}
	if byOrigin["cli"].Error != "model API returned status 429" {
		t.Errorf("cli entry mangled: %+v", byOrigin["cli"])
	}
}

func TestTransactionLoggerRotates(t *testing.T) {
	// Tiny max size so every entry forces a rotation.
	l, dir := newTestLogger(t, 64, 10)

	for i := 0; i < 5; i++ {
		l.Log(TransactionLog{Origin: "api", SuggestionType: "refactor", Language: "python"})
	}
	l.Shutdown()

	// Rotated files share a name within the same second, so the file count is
	// timing-dependent. What must hold is that no entry is lost.
	if got := len(readAllEntries(t, dir)); got != 5 {
		t.Errorf("expected all 5 entries to survive rotation, got %d", got)
	}
}

func TestTransactionLoggerShutdownIsIdempotent(t *testing.T) {
	l, _ := newTestLogger(t, 1<<20, 3)
	l.Shutdown()
	l.Shutdown()
}
