package recorder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ConsoleLog is the append-mode sink for a page's console output. Writes are
// best-effort: a failing write drops the entry and logs at warn, at most once
// per minute.
type ConsoleLog struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	logger   *slog.Logger
	lastWarn time.Time
}

// OpenConsoleLog creates console-<ts>.log in the recording directory.
func (r *Recorder) OpenConsoleLog(ts int64) (*ConsoleLog, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("console-%d.log", ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &ConsoleLog{f: f, path: path, logger: r.logger}, nil
}

func (c *ConsoleLog) Path() string { return c.path }

// Write appends one console entry with an ISO timestamp and level tag.
// Errors and warnings also dump the stack when one was captured.
func (c *ConsoleLog) Write(level, text, stack string) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(level))
	b.WriteString("] ")
	b.WriteString(text)
	b.WriteByte('\n')
	if stack != "" && (level == "error" || level == "warn") {
		b.WriteString(stack)
		b.WriteByte('\n')
	}
	c.append(b.String())
}

// PageError appends an uncaught page exception.
func (c *ConsoleLog) PageError(text, stack string) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" [PAGE-ERROR] ")
	b.WriteString(text)
	b.WriteByte('\n')
	if stack != "" {
		b.WriteString(stack)
		b.WriteByte('\n')
	}
	c.append(b.String())
}

func (c *ConsoleLog) append(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return
	}
	if _, err := c.f.WriteString(line); err != nil {
		if time.Since(c.lastWarn) > time.Minute {
			c.lastWarn = time.Now()
			c.logger.Warn("console log write failed", "path", c.path, "error", err)
		}
	}
}

// Close flushes and closes the stream; further writes are dropped silently.
func (c *ConsoleLog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}
