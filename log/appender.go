package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogAppender is an output destination for completed log lines. A logger
// may fan out to any number of appenders.
type LogAppender interface {
	Write(p []byte) (n int, err error)
	// Refresh re-applies configuration, reopening files if needed.
	Refresh()
}

// ConsoleAppender writes log lines to stdout.
type ConsoleAppender struct {
	mu sync.Mutex
}

// NewConsoleAppender creates a stdout appender.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

func (a *ConsoleAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return os.Stdout.Write(p)
}

// Refresh is a no-op for the console.
func (a *ConsoleAppender) Refresh() {}

// FileAppender writes log lines to a file, rotating when the file grows
// past the configured size threshold.
type FileAppender struct {
	mu      sync.Mutex
	path    string
	splitMB int
	file    *os.File
	written int64
}

// NewFileAppender creates a file appender for the configured path.
// The directory is created on demand; open errors surface on first write.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	return &FileAppender{
		path:    cfg.LogPath,
		splitMB: cfg.FileSplitMB,
	}
}

func (a *FileAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		if err := a.open(); err != nil {
			return 0, err
		}
	}
	if a.splitMB > 0 && a.written+int64(len(p)) > int64(a.splitMB)*1024*1024 {
		a.rotate()
		if a.file == nil {
			if err := a.open(); err != nil {
				return 0, err
			}
		}
	}
	n, err := a.file.Write(p)
	a.written += int64(n)
	return n, err
}

// Refresh closes the current file so the next write reopens it.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
		a.written = 0
	}
}

func (a *FileAppender) open() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	a.file = f
	a.written = info.Size()
	return nil
}

func (a *FileAppender) rotate() {
	_ = a.file.Close()
	rotated := fmt.Sprintf("%s.%s", a.path, time.Now().Format("20060102-150405"))
	_ = os.Rename(a.path, rotated)
	a.file = nil
	a.written = 0
	_ = a.open()
}
