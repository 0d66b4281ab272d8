package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TransactionLog is the persisted record of one completed refactor call:
// what came in, what went out, when, and whether it arrived via the CLI or
// the API. Code content is recorded by reference and size, not inlined.
type TransactionLog struct {
	Timestamp      time.Time `json:"timestamp"`
	Origin         string    `json:"origin"` // cli or api
	SessionID      string    `json:"session_id,omitempty"`
	APIKeyHash     string    `json:"api_key_hash,omitempty"`
	OriginalFile   string    `json:"original_file,omitempty"` // CLI only
	SuggestionType string    `json:"suggestion_type"`
	Language       string    `json:"language"`
	InputBytes     int       `json:"input_bytes"`
	OutputBytes    int       `json:"output_bytes"`
	UtilityModules []string  `json:"utility_modules,omitempty"`
	BackupFile     string    `json:"backup_file,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}

// TransactionLogger appends TransactionLog entries as JSON lines,
// asynchronously and with size-based rotation. Entries are dropped rather
// than blocking the request path when the buffer is full.
type TransactionLogger struct {
	fileTemplate  string // e.g. "/var/log/refactor-agent/transactions-%s.jsonl"
	maxSize       int64
	maxFiles      int
	flushInterval time.Duration

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	logCh  chan TransactionLog
	doneCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewTransactionLogger opens the first log file and starts the writer
// goroutine.
func NewTransactionLogger(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*TransactionLogger, error) {
	l := &TransactionLogger{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		logCh:         make(chan TransactionLog, bufferSize),
		doneCh:        make(chan struct{}),
	}
	if err := l.openFile(); err != nil {
		return nil, err
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *TransactionLogger) newFileName() string {
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf(l.fileTemplate, timestamp)
}

func (l *TransactionLogger) openFile() error {
	l.currentFile = l.newFileName()
	dir := filepath.Dir(l.currentFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(l.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.currentSize = fi.Size()
	l.file = file
	l.writer = bufio.NewWriter(file)
	return nil
}

func (l *TransactionLogger) rotateIfNeeded(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentSize+int64(n) < l.maxSize {
		return nil
	}

	if err := l.writer.Flush(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return err
	}
	return l.openFile()
}

func (l *TransactionLogger) cleanupOldFiles() {
	pattern := fmt.Sprintf(l.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, err1 := os.Stat(matches[i])
		fj, err2 := os.Stat(matches[j])
		if err1 != nil || err2 != nil {
			return false
		}
		return fi.ModTime().Before(fj.ModTime())
	})

	excess := len(matches) - l.maxFiles
	for i := 0; i < excess; i++ {
		_ = os.Remove(matches[i])
	}
}

func (l *TransactionLogger) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.logCh:
			l.writeEntry(entry)
		case <-ticker.C:
			l.mu.Lock()
			_ = l.writer.Flush()
			l.mu.Unlock()
		case <-l.doneCh:
			// Drain remaining entries before exit.
			for {
				select {
				case entry := <-l.logCh:
					l.writeEntry(entry)
				default:
					l.mu.Lock()
					_ = l.writer.Flush()
					_ = l.file.Close()
					l.mu.Unlock()
					return
				}
			}
		}
	}
}

func (l *TransactionLogger) writeEntry(entry TransactionLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line := string(data) + "\n"
	n := len(line)

	if err := l.rotateIfNeeded(n); err == nil {
		l.cleanupOldFiles()
	}

	l.mu.Lock()
	_, _ = l.writer.WriteString(line)
	l.currentSize += int64(n)
	l.mu.Unlock()
}

// Log queues an entry. If the buffer is full the entry is dropped.
func (l *TransactionLogger) Log(entry TransactionLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	select {
	case l.logCh <- entry:
	default:
	}
}

// Shutdown drains the buffer, flushes, and closes the file.
func (l *TransactionLogger) Shutdown() {
	l.closeOnce.Do(func() {
		close(l.doneCh)
		l.wg.Wait()
	})
}
